package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
)

type createTenantRequest struct {
	Name           string   `json:"name" validate:"required,max=150"`
	Slug           string   `json:"slug" validate:"max=100"`
	WhatsAppNumber string   `json:"whatsapp_number" validate:"max=32"`
	AdminPassword  string   `json:"admin_password" validate:"required,min=6,max=72"`
	Categories     []string `json:"categories"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type trialRequest struct {
	TrialExpiresAt time.Time `json:"trial_expires_at" validate:"required"`
}

func (h *Handler) ListTenants(c echo.Context) error {
	tenants, err := h.tenants.List(c.Request().Context(), grant(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenants)
}

// CreateTenant provisions a storefront. A slug taken by another tenant answers 409.
func (h *Handler) CreateTenant(c echo.Context) error {
	var req createTenantRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.tenants.Create(c.Request().Context(), grant(c), tenant.CreateInput{
		Name:           req.Name,
		Slug:           req.Slug,
		WhatsAppNumber: req.WhatsAppNumber,
		AdminPassword:  req.AdminPassword,
		Categories:     req.Categories,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) SetTenantActive(c echo.Context) error {
	var req activeRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.tenants.SetActive(c.Request().Context(), grant(c), c.Param("tenantId"), *req.Active)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) ExtendTrial(c echo.Context) error {
	var req trialRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.tenants.ExtendTrial(c.Request().Context(), grant(c), c.Param("tenantId"), req.TrialExpiresAt)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// DeleteTenant removes a tenant with its products and orders.
func (h *Handler) DeleteTenant(c echo.Context) error {
	if err := h.tenants.Delete(c.Request().Context(), grant(c), c.Param("tenantId")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetStats(c echo.Context) error {
	s, err := h.stats.Collect(c.Request().Context(), grant(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}
