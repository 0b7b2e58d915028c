// Package authgate verifies platform-master and tenant-admin secrets and issues the scoped,
// expiring grants every privileged operation must present.
package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suteetoe/storefront/gomicro/jwtutil"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/slug"
	"github.com/suteetoe/storefront/services/storefront-service/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minSecretLength = 6
	// bcrypt only reads the first 72 bytes
	maxSecretLength = 72
)

// dummyHash keeps the cost of a failed lookup close to a failed comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("storefront-dummy-secret"), bcrypt.MinCost)

// HashSecret returns a salted bcrypt hash of secret.
func HashSecret(secret string) (string, error) {
	if err := ValidateSecret(secret); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hashed), nil
}

// ValidateSecret enforces the accepted secret length.
func ValidateSecret(secret string) error {
	if len(secret) < minSecretLength {
		return apperr.Validation("password", fmt.Sprintf("password must be at least %d characters", minSecretLength))
	}
	if len(secret) > maxSecretLength {
		return apperr.Validation("password", fmt.Sprintf("password must be at most %d bytes", maxSecretLength))
	}
	return nil
}

// Gate is the single authority for credential checks.
type Gate struct {
	gw         gateway.Gateway
	tokens     *jwtutil.JWTUtil
	masterHash []byte
	ttl        time.Duration
	now        func() time.Time
	log        *zap.Logger
}

// Options configures a Gate.
type Options struct {
	// MasterSecret is the raw operator secret or an existing bcrypt hash of it. Raw secrets
	// are hashed once here and not retained.
	MasterSecret string
	SigningKey   string
	TokenTTL     time.Duration
	Now          func() time.Time
}

// NewGate builds a Gate reading tenant credentials through gw.
func NewGate(gw gateway.Gateway, opts Options, log *zap.Logger) (*Gate, error) {
	if opts.MasterSecret == "" {
		return nil, errors.New("master secret is required")
	}
	if opts.SigningKey == "" {
		return nil, errors.New("signing key is required")
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 8 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	masterHash := []byte(opts.MasterSecret)
	if _, err := bcrypt.Cost(masterHash); err != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(opts.MasterSecret), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash master secret: %w", err)
		}
		masterHash = hashed
	}

	tokens := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey: opts.SigningKey,
		Issuer:     "storefront",
		TTL:        opts.TokenTTL,
	}).WithClock(opts.Now)

	return &Gate{
		gw:         gw,
		tokens:     tokens,
		masterHash: masterHash,
		ttl:        opts.TokenTTL,
		now:        opts.Now,
		log:        log,
	}, nil
}

// AuthenticateMaster checks the operator secret.
func (g *Gate) AuthenticateMaster(ctx context.Context, secret string) (Grant, error) {
	if bcrypt.CompareHashAndPassword(g.masterHash, []byte(secret)) != nil {
		g.fail(ctx, kindMaster)
		return Grant{}, apperr.Unauthorized()
	}
	return g.grant(Master(), "")
}

// AuthenticateTenantAdmin checks secret against the stored hash of tenantID's admin.
func (g *Gate) AuthenticateTenantAdmin(ctx context.Context, tenantID, secret string) (Grant, error) {
	return g.authenticateTenant(ctx, gateway.Filter{"id": tenantID}, secret)
}

// AuthenticateTenantAdminBySlug is AuthenticateTenantAdmin for callers that only know the
// storefront slug.
func (g *Gate) AuthenticateTenantAdminBySlug(ctx context.Context, tenantSlug, secret string) (Grant, error) {
	return g.authenticateTenant(ctx, gateway.Filter{"slug": slug.Normalize(tenantSlug)}, secret)
}

func (g *Gate) authenticateTenant(ctx context.Context, filter gateway.Filter, secret string) (Grant, error) {
	var tenants []model.Tenant
	if err := g.gw.Fetch(ctx, gateway.Tenants, gateway.Query{Filter: filter, Limit: 1}, &tenants); err != nil {
		return Grant{}, fmt.Errorf("load tenant credentials: %w", err)
	}

	hash := dummyHash
	if len(tenants) == 1 {
		hash = []byte(tenants[0].AdminPasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(secret)) != nil || len(tenants) != 1 {
		g.fail(ctx, kindTenantAdmin)
		return Grant{}, apperr.Unauthorized()
	}
	return g.grant(TenantAdmin(tenants[0].ID), "")
}

func (g *Gate) grant(scope Scope, tokenID string) (Grant, error) {
	return Grant{
		scope:     scope,
		tokenID:   tokenID,
		expiresAt: g.now().Add(g.ttl),
		now:       g.now,
	}, nil
}

func (g *Gate) fail(ctx context.Context, kind scopeKind) {
	prometheus.RecordAuthFailure(string(kind))
	g.log.Warn("Credential check failed", zap.String("scope", string(kind)))
}

// Issue serializes grant as a signed bearer token.
func (g *Gate) Issue(grant Grant) (string, time.Time, error) {
	if err := grant.Require(grant.scope); err != nil {
		return "", time.Time{}, err
	}
	return g.tokens.GenerateToken(string(grant.scope.kind), grant.scope.tenantID)
}

// Verify parses a bearer token back into a Grant.
func (g *Gate) Verify(token string) (Grant, error) {
	claims, err := g.tokens.ValidateToken(strings.TrimSpace(token))
	if err != nil {
		return Grant{}, apperr.Wrap(apperr.CodeUnauthorized, "invalid credentials", err)
	}

	var scope Scope
	switch scopeKind(claims.Scope) {
	case kindMaster:
		scope = Master()
	case kindTenantAdmin:
		if claims.TenantID == "" {
			return Grant{}, apperr.Unauthorized()
		}
		scope = TenantAdmin(claims.TenantID)
	default:
		return Grant{}, apperr.Unauthorized()
	}

	return Grant{
		scope:     scope,
		tokenID:   claims.ID,
		expiresAt: claims.ExpiresAt.Time,
		now:       g.now,
	}, nil
}

// VerifyToken adapts Verify to the bearer middleware.
func (g *Gate) VerifyToken(token string) (interface{}, error) {
	return g.Verify(token)
}
