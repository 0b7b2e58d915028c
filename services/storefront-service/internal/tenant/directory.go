// Package tenant resolves storefront slugs and manages the tenant lifecycle.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/slug"
	"github.com/suteetoe/storefront/services/storefront-service/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// DefaultCategories seeds the menu sections of a new tenant.
var DefaultCategories = []string{"Burgers", "Pizzas", "Drinks", "Desserts", "Combos", "Sides"}

// Options configures a Directory.
type Options struct {
	TrialPeriod time.Duration
	Now         func() time.Time
}

// Directory is the tenant registry.
type Directory struct {
	gw    gateway.Gateway
	trial time.Duration
	now   func() time.Time
	log   *zap.Logger
}

func NewDirectory(gw gateway.Gateway, opts Options, log *zap.Logger) *Directory {
	if opts.TrialPeriod <= 0 {
		opts.TrialPeriod = 7 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{gw: gw, trial: opts.TrialPeriod, now: opts.Now, log: log}
}

// CreateInput describes a new tenant. An empty Slug is derived from Name.
type CreateInput struct {
	Name           string
	Slug           string
	WhatsAppNumber string
	AdminPassword  string
	Categories     []string
}

// ContactUpdate carries the optional contact fields of UpdateContact; nil leaves a field as is.
type ContactUpdate struct {
	Name           *string
	WhatsAppNumber *string
}

// Resolve finds a tenant by slug. The slug is normalized first, so lookups are
// case-insensitive.
func (d *Directory) Resolve(ctx context.Context, rawSlug string) (*model.Tenant, error) {
	s := slug.Normalize(rawSlug)
	if s == "" {
		return nil, apperr.NotFound("tenant")
	}
	return d.findOne(ctx, gateway.Filter{"slug": s})
}

// ResolveActive is Resolve for customer-facing reads: inactive tenants are reported as not
// found.
func (d *Directory) ResolveActive(ctx context.Context, rawSlug string) (*model.Tenant, error) {
	t, err := d.Resolve(ctx, rawSlug)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, apperr.NotFound("tenant")
	}
	return t, nil
}

// Lookup loads a tenant by id without a credential check. It backs internal reads only.
func (d *Directory) Lookup(ctx context.Context, tenantID string) (*model.Tenant, error) {
	if tenantID == "" {
		return nil, apperr.NotFound("tenant")
	}
	return d.findOne(ctx, gateway.Filter{"id": tenantID})
}

// Get returns a tenant to the master or to its own admin.
func (d *Directory) Get(ctx context.Context, grant authgate.Grant, tenantID string) (*model.Tenant, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	return d.Lookup(ctx, tenantID)
}

// List returns every tenant, newest first.
func (d *Directory) List(ctx context.Context, grant authgate.Grant) ([]model.Tenant, error) {
	if err := grant.Require(authgate.Master()); err != nil {
		return nil, err
	}
	var tenants []model.Tenant
	q := gateway.Query{OrderBy: "created_at", Desc: true}
	if err := d.gw.Fetch(ctx, gateway.Tenants, q, &tenants); err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return tenants, nil
}

// Create provisions an active tenant with a trial window. Slug uniqueness is decided by the
// storage unique index.
func (d *Directory) Create(ctx context.Context, grant authgate.Grant, in CreateInput) (*model.Tenant, error) {
	if err := grant.Require(authgate.Master()); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	raw := in.Slug
	if strings.TrimSpace(raw) == "" {
		raw = name
	}
	s := slug.Normalize(raw)
	if !slug.Valid(s) {
		return nil, apperr.Validation("slug", "slug must contain at least one letter or digit")
	}
	hash, err := authgate.HashSecret(in.AdminPassword)
	if err != nil {
		return nil, err
	}

	categories := cleanCategories(in.Categories)
	if len(categories) == 0 {
		categories = append([]string(nil), DefaultCategories...)
	}

	now := d.now()
	trialEnd := now.Add(d.trial)
	t := &model.Tenant{
		Slug:              s,
		Name:              name,
		WhatsAppNumber:    strings.TrimSpace(in.WhatsAppNumber),
		AdminPasswordHash: hash,
		Categories:        datatypes.JSONSlice[string](categories),
		Active:            true,
		TrialExpiresAt:    &trialEnd,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := d.gw.Insert(ctx, gateway.Tenants, t); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, apperr.WithMetadata(apperr.CodeConflict, "slug already taken", map[string]string{"slug": s})
		}
		return nil, fmt.Errorf("create tenant: %w", err)
	}

	prometheus.RecordTenantCreated()
	d.log.Info("Tenant created", zap.String("tenant_id", t.ID), zap.String("slug", t.Slug))
	return t, nil
}

// SetActive activates or deactivates a tenant.
func (d *Directory) SetActive(ctx context.Context, grant authgate.Grant, tenantID string, active bool) (*model.Tenant, error) {
	if err := grant.Require(authgate.Master()); err != nil {
		return nil, err
	}
	if err := d.update(ctx, tenantID, map[string]interface{}{"active": active}); err != nil {
		return nil, err
	}
	d.log.Info("Tenant activation changed", zap.String("tenant_id", tenantID), zap.Bool("active", active))
	return d.Lookup(ctx, tenantID)
}

// ExtendTrial moves the end of a tenant's trial window.
func (d *Directory) ExtendTrial(ctx context.Context, grant authgate.Grant, tenantID string, until time.Time) (*model.Tenant, error) {
	if err := grant.Require(authgate.Master()); err != nil {
		return nil, err
	}
	if until.IsZero() {
		return nil, apperr.Validation("trial_expires_at", "trial end is required")
	}
	if err := d.update(ctx, tenantID, map[string]interface{}{"trial_expires_at": until}); err != nil {
		return nil, err
	}
	return d.Lookup(ctx, tenantID)
}

// UpdateContact changes the display name and/or WhatsApp number.
func (d *Directory) UpdateContact(ctx context.Context, grant authgate.Grant, tenantID string, in ContactUpdate) (*model.Tenant, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("name", "name must not be empty")
		}
		fields["name"] = name
	}
	if in.WhatsAppNumber != nil {
		fields["whatsapp_number"] = strings.TrimSpace(*in.WhatsAppNumber)
	}
	if len(fields) == 0 {
		return d.Lookup(ctx, tenantID)
	}
	if err := d.update(ctx, tenantID, fields); err != nil {
		return nil, err
	}
	return d.Lookup(ctx, tenantID)
}

// SetCategories replaces the ordered menu sections of a tenant.
func (d *Directory) SetCategories(ctx context.Context, grant authgate.Grant, tenantID string, categories []string) (*model.Tenant, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	cleaned := cleanCategories(categories)
	if len(cleaned) == 0 {
		return nil, apperr.Validation("categories", "at least one category is required")
	}
	if err := d.update(ctx, tenantID, map[string]interface{}{"categories": datatypes.JSONSlice[string](cleaned)}); err != nil {
		return nil, err
	}
	return d.Lookup(ctx, tenantID)
}

// RotateAdminPassword replaces the stored admin password hash.
func (d *Directory) RotateAdminPassword(ctx context.Context, grant authgate.Grant, tenantID, newPassword string) error {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return err
	}
	hash, err := authgate.HashSecret(newPassword)
	if err != nil {
		return err
	}
	if err := d.update(ctx, tenantID, map[string]interface{}{"admin_password_hash": hash}); err != nil {
		return err
	}
	d.log.Info("Tenant admin password rotated", zap.String("tenant_id", tenantID))
	return nil
}

// Delete removes a tenant together with its products and orders in one transaction.
func (d *Directory) Delete(ctx context.Context, grant authgate.Grant, tenantID string) error {
	if err := grant.Require(authgate.Master()); err != nil {
		return err
	}
	if _, err := d.Lookup(ctx, tenantID); err != nil {
		return err
	}

	var products, orders int64
	err := d.gw.Transaction(ctx, func(tx gateway.Gateway) error {
		owned := gateway.Filter{"tenant_id": tenantID}
		var err error
		if products, err = tx.DeleteWhere(ctx, gateway.Products, owned); err != nil {
			return fmt.Errorf("delete tenant products: %w", err)
		}
		if orders, err = tx.DeleteWhere(ctx, gateway.Orders, owned); err != nil {
			return fmt.Errorf("delete tenant orders: %w", err)
		}
		n, err := tx.Delete(ctx, gateway.Tenants, tenantID)
		if err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		if n == 0 {
			return apperr.NotFound("tenant")
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.log.Info("Tenant deleted",
		zap.String("tenant_id", tenantID),
		zap.Int64("products", products),
		zap.Int64("orders", orders))
	return nil
}

func (d *Directory) findOne(ctx context.Context, filter gateway.Filter) (*model.Tenant, error) {
	var tenants []model.Tenant
	if err := d.gw.Fetch(ctx, gateway.Tenants, gateway.Query{Filter: filter, Limit: 1}, &tenants); err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	if len(tenants) == 0 {
		return nil, apperr.NotFound("tenant")
	}
	return &tenants[0], nil
}

func (d *Directory) update(ctx context.Context, tenantID string, fields map[string]interface{}) error {
	n, err := d.gw.Update(ctx, gateway.Tenants, tenantID, fields, nil)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("tenant")
	}
	return nil
}

// cleanCategories trims names and drops blanks and case-insensitive duplicates.
func cleanCategories(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
