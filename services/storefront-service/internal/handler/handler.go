// Package handler exposes the storefront over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/gomicro/logger"
	"github.com/suteetoe/storefront/gomicro/middleware"
	"github.com/suteetoe/storefront/gomicro/validator"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/cart"
	"github.com/suteetoe/storefront/services/storefront-service/internal/catalog"
	"github.com/suteetoe/storefront/services/storefront-service/internal/order"
	"github.com/suteetoe/storefront/services/storefront-service/internal/stats"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
	"go.uber.org/zap"
)

// Handler serves every storefront route.
type Handler struct {
	gate    *authgate.Gate
	tenants *tenant.Directory
	catalog *catalog.Catalog
	carts   cart.Store
	orders  *order.Pipeline
	stats   *stats.Collector
}

// Deps are the services the handlers call into.
type Deps struct {
	Gate    *authgate.Gate
	Tenants *tenant.Directory
	Catalog *catalog.Catalog
	Carts   cart.Store
	Orders  *order.Pipeline
	Stats   *stats.Collector
}

func New(d Deps) *Handler {
	return &Handler{
		gate:    d.Gate,
		tenants: d.Tenants,
		catalog: d.Catalog,
		carts:   d.Carts,
		orders:  d.Orders,
		stats:   d.Stats,
	}
}

// Register mounts the API routes on e and installs the request validator.
func (h *Handler) Register(e *echo.Echo) {
	if e.Validator == nil {
		e.Validator = validator.NewValidator()
	}

	auth := e.Group("/auth")
	auth.POST("/master", h.LoginMaster)
	auth.POST("/tenants/:slug", h.LoginTenantAdmin)

	// Customer-facing storefront
	store := e.Group("/api/storefronts/:slug")
	store.GET("", h.GetStorefront)
	store.GET("/menu", h.GetMenu)
	store.GET("/cart", h.GetCart)
	store.DELETE("/cart", h.ClearCart)
	store.POST("/cart/items", h.AddCartItem)
	store.PATCH("/cart/items/:productId", h.UpdateCartItem)
	store.DELETE("/cart/items/:productId", h.RemoveCartItem)
	store.POST("/checkout", h.Checkout)

	bearer := middleware.BearerAuthMiddleware(h.gate)

	// Tenant admin
	admin := e.Group("/api/tenants/:tenantId", bearer)
	admin.GET("", h.GetTenant)
	admin.PATCH("/contact", h.UpdateContact)
	admin.PUT("/password", h.RotatePassword)
	admin.PUT("/categories", h.SetCategories)
	admin.GET("/products", h.ListProducts)
	admin.POST("/products", h.CreateProduct)
	admin.GET("/products/:productId", h.GetProduct)
	admin.PUT("/products/:productId", h.UpdateProduct)
	admin.DELETE("/products/:productId", h.DeleteProduct)
	admin.POST("/products/:productId/toggle", h.ToggleProduct)
	admin.GET("/orders", h.ListOrders)
	admin.GET("/orders/:orderId", h.GetOrder)
	admin.POST("/orders/:orderId/advance", h.AdvanceOrder)

	// Platform operator
	platform := e.Group("/api/platform", bearer)
	platform.GET("/tenants", h.ListTenants)
	platform.POST("/tenants", h.CreateTenant)
	platform.GET("/tenants/:tenantId", h.GetTenant)
	platform.PUT("/tenants/:tenantId/active", h.SetTenantActive)
	platform.PUT("/tenants/:tenantId/trial", h.ExtendTrial)
	platform.DELETE("/tenants/:tenantId", h.DeleteTenant)
	platform.GET("/stats", h.GetStats)
}

// Health reports liveness.
func Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// grant returns the credential verified by the bearer middleware.
func grant(c echo.Context) authgate.Grant {
	g, _ := c.Get(middleware.CredentialKey).(authgate.Grant)
	return g
}

// bind decodes the request into req and runs its validation rules.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "invalid request body", err)
	}
	if err := c.Validate(req); err != nil {
		var errs validator.Errors
		if errors.As(err, &errs) && len(errs) > 0 {
			return apperr.WithMetadata(apperr.CodeValidation, errs.Error(), map[string]string{"field": errs[0].Field})
		}
		return apperr.Wrap(apperr.CodeValidation, "invalid request", err)
	}
	return nil
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeConflict:          http.StatusConflict,
	apperr.CodeValidation:        http.StatusBadRequest,
	apperr.CodeInvalidTransition: http.StatusConflict,
	apperr.CodeUnauthorized:      http.StatusUnauthorized,
	apperr.CodeForbidden:         http.StatusForbidden,
	apperr.CodeTransient:         http.StatusServiceUnavailable,
}

// respondError writes err as a JSON error response.
func respondError(c echo.Context, err error) error {
	log := logger.FromEcho(c)

	var ae *apperr.Error
	if !errors.As(err, &ae) {
		log.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": apperr.CodeUnknown})
	}

	status, ok := statusByCode[ae.Code]
	if !ok {
		log.Error("Request failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error", "code": ae.Code})
	}

	body := echo.Map{"error": ae.Message, "code": ae.Code}
	switch ae.Code {
	case apperr.CodeUnauthorized, apperr.CodeForbidden:
		// never say which credential or scope failed
		body["error"] = "unauthorized"
		log.Warn("Request rejected", zap.String("code", string(ae.Code)))
	case apperr.CodeTransient:
		log.Error("Storage unavailable", zap.Error(err))
	default:
		if field := ae.Metadata["field"]; field != "" {
			body["field"] = field
		}
		if ae.Code == apperr.CodeInvalidTransition {
			body["from"] = ae.Metadata["from"]
			body["to"] = ae.Metadata["to"]
		}
		log.Info("Request failed", zap.String("code", string(ae.Code)), zap.String("error", ae.Message))
	}
	return c.JSON(status, body)
}
