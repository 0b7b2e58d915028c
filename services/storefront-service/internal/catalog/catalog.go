// Package catalog manages the products of each tenant and builds the public menu.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// OtherSection collects menu products whose category matches none of the tenant's sections.
const OtherSection = "Other"

// ExtraInput is an add-on as submitted by an admin; PriceDelta is parsed like a price.
type ExtraInput struct {
	ID         string
	Name       string
	PriceDelta string
}

// ProductInput holds the fields of a new product. Available defaults to true.
type ProductInput struct {
	Name        string
	Price       string
	Description string
	Image       string
	Category    string
	Available   *bool
	Extras      []ExtraInput
}

// ProductPatch is a partial update; nil fields are left unchanged.
type ProductPatch struct {
	Name        *string
	Price       *string
	Description *string
	Image       *string
	Category    *string
	Available   *bool
	Extras      *[]ExtraInput
}

// Section is one category of the public menu.
type Section struct {
	Category string          `json:"category"`
	Products []model.Product `json:"products"`
}

// Menu is the customer view of a storefront.
type Menu struct {
	Tenant   *model.Tenant `json:"tenant"`
	Sections []Section     `json:"sections"`
}

type Catalog struct {
	gw  gateway.Gateway
	dir *tenant.Directory
	log *zap.Logger
}

func New(gw gateway.Gateway, dir *tenant.Directory, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{gw: gw, dir: dir, log: log}
}

// List returns every product of the tenant, including unavailable ones.
func (c *Catalog) List(ctx context.Context, grant authgate.Grant, tenantID string) ([]model.Product, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	return c.products(ctx, gateway.Filter{"tenant_id": tenantID})
}

// Menu returns the available products of an active tenant grouped by the tenant's category
// order, with unmatched categories last under OtherSection.
func (c *Catalog) Menu(ctx context.Context, slug string) (*Menu, error) {
	t, err := c.dir.ResolveActive(ctx, slug)
	if err != nil {
		return nil, err
	}
	products, err := c.products(ctx, gateway.Filter{"tenant_id": t.ID, "available": true})
	if err != nil {
		return nil, err
	}
	return &Menu{Tenant: t, Sections: group(t.Categories, products)}, nil
}

func group(categories []string, products []model.Product) []Section {
	index := make(map[string]int, len(categories))
	sections := make([]Section, 0, len(categories)+1)
	for _, category := range categories {
		key := strings.ToLower(strings.TrimSpace(category))
		if _, dup := index[key]; dup || key == "" {
			continue
		}
		index[key] = len(sections)
		sections = append(sections, Section{Category: category})
	}

	var other []model.Product
	for _, p := range products {
		i, ok := index[strings.ToLower(strings.TrimSpace(p.Category))]
		if !ok {
			other = append(other, p)
			continue
		}
		sections[i].Products = append(sections[i].Products, p)
	}

	out := sections[:0]
	for _, s := range sections {
		if len(s.Products) > 0 {
			out = append(out, s)
		}
	}
	if len(other) > 0 {
		out = append(out, Section{Category: OtherSection, Products: other})
	}
	return out
}

// Get returns one product of the tenant.
func (c *Catalog) Get(ctx context.Context, grant authgate.Grant, tenantID, productID string) (*model.Product, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	return c.owned(ctx, tenantID, productID)
}

// PublicProduct returns a product a customer may add to a cart: it must be available and
// belong to tenantID.
func (c *Catalog) PublicProduct(ctx context.Context, tenantID, productID string) (*model.Product, error) {
	p, err := c.owned(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	if !p.Available {
		return nil, apperr.NotFound("product")
	}
	return p, nil
}

// Create adds a product to the tenant's catalog.
func (c *Catalog) Create(ctx context.Context, grant authgate.Grant, tenantID string, in ProductInput) (*model.Product, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	if _, err := c.dir.Lookup(ctx, tenantID); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	price, err := ParsePrice("price", in.Price)
	if err != nil {
		return nil, err
	}
	extras, err := parseExtras(in.Extras)
	if err != nil {
		return nil, err
	}
	available := true
	if in.Available != nil {
		available = *in.Available
	}

	p := &model.Product{
		TenantID:    tenantID,
		Name:        name,
		Price:       price,
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		Category:    strings.TrimSpace(in.Category),
		Available:   available,
		Extras:      extras,
	}
	if err := c.gw.Insert(ctx, gateway.Products, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	c.log.Info("Product created",
		zap.String("tenant_id", tenantID),
		zap.String("product_id", p.ID),
		zap.String("name", p.Name))
	return p, nil
}

// Update applies patch to a product of the tenant. Orders already placed keep their own
// snapshot of the product.
func (c *Catalog) Update(ctx context.Context, grant authgate.Grant, tenantID, productID string, patch ProductPatch) (*model.Product, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	if _, err := c.owned(ctx, tenantID, productID); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperr.Validation("name", "name is required")
		}
		fields["name"] = name
	}
	if patch.Price != nil {
		price, err := ParsePrice("price", *patch.Price)
		if err != nil {
			return nil, err
		}
		fields["price"] = price
	}
	if patch.Description != nil {
		fields["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Image != nil {
		fields["image"] = strings.TrimSpace(*patch.Image)
	}
	if patch.Category != nil {
		fields["category"] = strings.TrimSpace(*patch.Category)
	}
	if patch.Available != nil {
		fields["available"] = *patch.Available
	}
	if patch.Extras != nil {
		extras, err := parseExtras(*patch.Extras)
		if err != nil {
			return nil, err
		}
		fields["extras"] = extras
	}

	if len(fields) > 0 {
		n, err := c.gw.Update(ctx, gateway.Products, productID, fields, gateway.Filter{"tenant_id": tenantID})
		if err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		if n == 0 {
			return nil, apperr.NotFound("product")
		}
	}
	return c.owned(ctx, tenantID, productID)
}

// ToggleAvailability flips the available flag. The target is fixed by the first read; the
// write only applies while the flag still holds the opposite value. When the write matches
// nothing, a re-read that already shows the target counts as done.
func (c *Catalog) ToggleAvailability(ctx context.Context, grant authgate.Grant, tenantID, productID string) (*model.Product, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}

	p, err := c.owned(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	target := !p.Available

	for attempt := 0; attempt < 2; attempt++ {
		n, err := c.gw.Update(ctx, gateway.Products, productID,
			map[string]interface{}{"available": target},
			gateway.Filter{"tenant_id": tenantID, "available": !target})
		if err != nil {
			return nil, fmt.Errorf("toggle product: %w", err)
		}
		if p, err = c.owned(ctx, tenantID, productID); err != nil {
			return nil, err
		}
		if n == 1 || p.Available == target {
			c.log.Info("Product availability toggled",
				zap.String("tenant_id", tenantID),
				zap.String("product_id", productID),
				zap.Bool("available", target))
			return p, nil
		}
	}
	return nil, apperr.New(apperr.CodeConflict, "product was modified concurrently")
}

// Delete removes a product from the tenant's catalog.
func (c *Catalog) Delete(ctx context.Context, grant authgate.Grant, tenantID, productID string) error {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return err
	}
	n, err := c.gw.DeleteWhere(ctx, gateway.Products, gateway.Filter{"id": productID, "tenant_id": tenantID})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("product")
	}
	c.log.Info("Product deleted", zap.String("tenant_id", tenantID), zap.String("product_id", productID))
	return nil
}

// owned loads a product only if it belongs to tenantID; other tenants' products are
// reported as not found.
func (c *Catalog) owned(ctx context.Context, tenantID, productID string) (*model.Product, error) {
	if productID == "" {
		return nil, apperr.NotFound("product")
	}
	products, err := c.products(ctx, gateway.Filter{"id": productID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, apperr.NotFound("product")
	}
	return &products[0], nil
}

func (c *Catalog) products(ctx context.Context, filter gateway.Filter) ([]model.Product, error) {
	var products []model.Product
	q := gateway.Query{Filter: filter, OrderBy: "created_at"}
	if err := c.gw.Fetch(ctx, gateway.Products, q, &products); err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

func parseExtras(in []ExtraInput) (datatypes.JSONSlice[model.Extra], error) {
	extras := make(datatypes.JSONSlice[model.Extra], 0, len(in))
	for _, e := range in {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, apperr.Validation("extras.name", "extra name is required")
		}
		delta := decimal.Zero
		if strings.TrimSpace(e.PriceDelta) != "" {
			d, err := ParsePrice("extras.price_delta", e.PriceDelta)
			if err != nil {
				return nil, err
			}
			delta = d
		}
		id := strings.TrimSpace(e.ID)
		if id == "" {
			id = uuid.NewString()
		}
		extras = append(extras, model.Extra{ID: id, Name: name, PriceDelta: delta})
	}
	return extras, nil
}
