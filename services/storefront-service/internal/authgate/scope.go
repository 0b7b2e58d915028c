package authgate

import (
	"fmt"
	"time"

	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
)

type scopeKind string

const (
	kindMaster      scopeKind = "master"
	kindTenantAdmin scopeKind = "tenant_admin"
)

// Scope names who an operation is reserved for.
type Scope struct {
	kind     scopeKind
	tenantID string
}

// Master is the platform operator scope.
func Master() Scope { return Scope{kind: kindMaster} }

// TenantAdmin is the admin scope of a single tenant.
func TenantAdmin(tenantID string) Scope { return Scope{kind: kindTenantAdmin, tenantID: tenantID} }

func (s Scope) String() string {
	if s.kind == kindTenantAdmin {
		return fmt.Sprintf("%s(%s)", s.kind, s.tenantID)
	}
	return string(s.kind)
}

// Grant is a verified, expiring credential. Only the Gate creates grants; the zero Grant
// satisfies nothing.
type Grant struct {
	scope     Scope
	tokenID   string
	expiresAt time.Time
	now       func() time.Time
}

func (g Grant) Scope() Scope { return g.scope }

func (g Grant) IsMaster() bool { return g.scope.kind == kindMaster }

// TenantID is empty for master grants.
func (g Grant) TenantID() string { return g.scope.tenantID }

func (g Grant) TokenID() string { return g.tokenID }

// Require checks that g is live and covers want. A master grant covers every scope.
// Expired or empty grants fail with Unauthorized, mismatched scopes with Forbidden.
func (g Grant) Require(want Scope) error {
	if g.scope.kind == "" || g.now == nil || !g.now().Before(g.expiresAt) {
		return apperr.Unauthorized()
	}
	if g.scope.kind == kindMaster {
		return nil
	}
	if want.kind == kindTenantAdmin && want.tenantID == g.scope.tenantID {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "operation not permitted")
}
