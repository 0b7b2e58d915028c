package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/gomicro/logger"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/cart"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/notify"
	"github.com/suteetoe/storefront/services/storefront-service/internal/order"
	"github.com/suteetoe/storefront/services/storefront-service/prometheus"
	"go.uber.org/zap"
)

// CartSessionHeader carries the anonymous cart session id in both directions.
const CartSessionHeader = "X-Cart-Session"

type storefrontResponse struct {
	ID             string   `json:"id"`
	Slug           string   `json:"slug"`
	Name           string   `json:"name"`
	WhatsAppNumber string   `json:"whatsapp_number"`
	Categories     []string `json:"categories"`
}

func publicView(t *model.Tenant) storefrontResponse {
	return storefrontResponse{
		ID:             t.ID,
		Slug:           t.Slug,
		Name:           t.Name,
		WhatsAppNumber: t.WhatsAppNumber,
		Categories:     t.Categories,
	}
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0,lte=999"`
}

type updateItemRequest struct {
	Delta int `json:"delta" validate:"ne=0,gte=-999,lte=999"`
}

type checkoutRequest struct {
	CustomerName    string `json:"customer_name" validate:"max=150"`
	CustomerContact string `json:"customer_contact" validate:"max=64"`
	DeliveryMethod  string `json:"delivery_method"`
	TableNumber     string `json:"table_number" validate:"max=16"`
	PickupTime      string `json:"pickup_time" validate:"max=32"`
	Address         string `json:"address" validate:"max=500"`
	Notes           string `json:"notes" validate:"max=500"`
}

type checkoutResponse struct {
	Order        *model.Order `json:"order"`
	Summary      string       `json:"summary"`
	WhatsAppLink string       `json:"whatsapp_link,omitempty"`
}

// GetStorefront returns the public profile of an active tenant.
func (h *Handler) GetStorefront(c echo.Context) error {
	t, err := h.tenants.ResolveActive(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, publicView(t))
}

// GetMenu returns the available products grouped by category.
func (h *Handler) GetMenu(c echo.Context) error {
	menu, err := h.catalog.Menu(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"storefront": publicView(menu.Tenant),
		"sections":   menu.Sections,
	})
}

// session returns the caller's cart session id, issuing a new one when absent.
func session(c echo.Context) string {
	id := c.Request().Header.Get(CartSessionHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Response().Header().Set(CartSessionHeader, id)
	return id
}

// loadCart resolves the storefront and loads the session cart scoped to it.
func (h *Handler) loadCart(c echo.Context) (*model.Tenant, string, *cart.Cart, error) {
	ctx := c.Request().Context()
	t, err := h.tenants.ResolveActive(ctx, c.Param("slug"))
	if err != nil {
		return nil, "", nil, err
	}
	sid := session(c)
	crt, err := h.carts.Load(ctx, sid)
	if err != nil {
		return nil, "", nil, err
	}
	crt.Bind(t.ID)
	return t, sid, crt, nil
}

func (h *Handler) saveCart(c echo.Context, sid string, crt *cart.Cart, op string) error {
	if err := h.carts.Save(c.Request().Context(), sid, crt); err != nil {
		return respondError(c, err)
	}
	prometheus.RecordCartOperation(op)
	return c.JSON(http.StatusOK, crt)
}

func (h *Handler) GetCart(c echo.Context) error {
	_, _, crt, err := h.loadCart(c)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, crt)
}

func (h *Handler) ClearCart(c echo.Context) error {
	if _, err := h.tenants.ResolveActive(c.Request().Context(), c.Param("slug")); err != nil {
		return respondError(c, err)
	}
	if err := h.carts.Delete(c.Request().Context(), session(c)); err != nil {
		return respondError(c, err)
	}
	prometheus.RecordCartOperation("clear")
	return c.NoContent(http.StatusNoContent)
}

// AddCartItem adds an available product of this storefront to the cart.
func (h *Handler) AddCartItem(c echo.Context) error {
	var req addItemRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, sid, crt, err := h.loadCart(c)
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.catalog.PublicProduct(c.Request().Context(), t.ID, req.ProductID)
	if err != nil {
		return respondError(c, err)
	}

	crt.Add(*p)
	if req.Quantity > 1 {
		crt.SetQuantity(p.ID, req.Quantity-1)
	}
	return h.saveCart(c, sid, crt, "add")
}

// UpdateCartItem changes an item's quantity by delta; quantities reaching zero remove it.
func (h *Handler) UpdateCartItem(c echo.Context) error {
	var req updateItemRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	_, sid, crt, err := h.loadCart(c)
	if err != nil {
		return respondError(c, err)
	}
	if !crt.SetQuantity(c.Param("productId"), req.Delta) {
		return respondError(c, apperr.NotFound("cart item"))
	}
	return h.saveCart(c, sid, crt, "update")
}

func (h *Handler) RemoveCartItem(c echo.Context) error {
	_, sid, crt, err := h.loadCart(c)
	if err != nil {
		return respondError(c, err)
	}
	if !crt.Remove(c.Param("productId")) {
		return respondError(c, apperr.NotFound("cart item"))
	}
	return h.saveCart(c, sid, crt, "remove")
}

// Checkout submits the session cart as an order and empties the cart.
func (h *Handler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, sid, crt, err := h.loadCart(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	o, err := h.orders.Submit(ctx, t.ID, crt, order.CustomerMeta{
		Name:        req.CustomerName,
		Contact:     req.CustomerContact,
		Method:      model.DeliveryMethod(req.DeliveryMethod),
		TableNumber: req.TableNumber,
		PickupTime:  req.PickupTime,
		Address:     req.Address,
		Notes:       req.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}

	if err := h.carts.Delete(ctx, sid); err != nil {
		logger.FromEcho(c).Warn("Failed to clear cart after checkout",
			zap.String("order_id", o.ID),
			zap.Error(err))
	}

	summary := order.Summary(o, t)
	return c.JSON(http.StatusCreated, checkoutResponse{
		Order:        o,
		Summary:      summary,
		WhatsAppLink: notify.WhatsAppLink(t.WhatsAppNumber, summary),
	})
}
