package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
)

type masterLoginRequest struct {
	Secret string `json:"secret" validate:"required"`
}

type tenantLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Scope     string    `json:"scope"`
	TenantID  string    `json:"tenant_id,omitempty"`
}

// LoginMaster exchanges the operator secret for a master token.
func (h *Handler) LoginMaster(c echo.Context) error {
	var req masterLoginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	g, err := h.gate.AuthenticateMaster(c.Request().Context(), req.Secret)
	if err != nil {
		return respondError(c, err)
	}
	return h.issue(c, g)
}

// LoginTenantAdmin exchanges a storefront admin password for a tenant token.
func (h *Handler) LoginTenantAdmin(c echo.Context) error {
	var req tenantLoginRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	g, err := h.gate.AuthenticateTenantAdminBySlug(c.Request().Context(), c.Param("slug"), req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return h.issue(c, g)
}

func (h *Handler) issue(c echo.Context, g authgate.Grant) error {
	token, expiresAt, err := h.gate.Issue(g)
	if err != nil {
		return respondError(c, err)
	}
	scope := "master"
	if !g.IsMaster() {
		scope = "tenant_admin"
	}
	return c.JSON(http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Scope:     scope,
		TenantID:  g.TenantID(),
	})
}
