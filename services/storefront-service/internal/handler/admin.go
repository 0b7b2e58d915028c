package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/catalog"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/order"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
)

type contactRequest struct {
	Name           *string `json:"name" validate:"omitempty,max=150"`
	WhatsAppNumber *string `json:"whatsapp_number" validate:"omitempty,max=32"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type categoriesRequest struct {
	Categories []string `json:"categories" validate:"required,min=1"`
}

type extraRequest struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta json.RawMessage `json:"price_delta"`
}

// productRequest accepts price as a JSON number or a string such as "12,50".
type productRequest struct {
	Name        *string         `json:"name" validate:"omitempty,max=150"`
	Price       json.RawMessage `json:"price"`
	Description *string         `json:"description"`
	Image       *string         `json:"image"`
	Category    *string         `json:"category" validate:"omitempty,max=100"`
	Available   *bool           `json:"available"`
	Extras      *[]extraRequest `json:"extras"`
}

type advanceRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderResponse struct {
	*model.Order
	NextStatuses []model.OrderStatus `json:"next_statuses"`
}

func orderView(o *model.Order) orderResponse {
	return orderResponse{Order: o, NextStatuses: order.NextStatuses(o.Status)}
}

// amountText turns a raw JSON amount into the text ParsePrice reads. A missing field yields
// nil.
func amountText(field string, raw json.RawMessage) (*string, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, apperr.Validation(field, field+" is not a valid amount")
		}
		return &text, nil
	}
	return &s, nil
}

func (r productRequest) extras() (*[]catalog.ExtraInput, error) {
	if r.Extras == nil {
		return nil, nil
	}
	out := make([]catalog.ExtraInput, 0, len(*r.Extras))
	for _, e := range *r.Extras {
		delta, err := amountText("extras.price_delta", e.PriceDelta)
		if err != nil {
			return nil, err
		}
		in := catalog.ExtraInput{ID: e.ID, Name: e.Name}
		if delta != nil {
			in.PriceDelta = *delta
		}
		out = append(out, in)
	}
	return &out, nil
}

func (r productRequest) input() (catalog.ProductInput, error) {
	in := catalog.ProductInput{Available: r.Available}
	if r.Name != nil {
		in.Name = *r.Name
	}
	price, err := amountText("price", r.Price)
	if err != nil {
		return in, err
	}
	if price != nil {
		in.Price = *price
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.Image != nil {
		in.Image = *r.Image
	}
	if r.Category != nil {
		in.Category = *r.Category
	}
	extras, err := r.extras()
	if err != nil {
		return in, err
	}
	if extras != nil {
		in.Extras = *extras
	}
	return in, nil
}

func (r productRequest) patch() (catalog.ProductPatch, error) {
	p := catalog.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Image:       r.Image,
		Category:    r.Category,
		Available:   r.Available,
	}
	price, err := amountText("price", r.Price)
	if err != nil {
		return p, err
	}
	p.Price = price
	if p.Extras, err = r.extras(); err != nil {
		return p, err
	}
	return p, nil
}

// GetTenant returns the full tenant record to its admin or the master.
func (h *Handler) GetTenant(c echo.Context) error {
	t, err := h.tenants.Get(c.Request().Context(), grant(c), c.Param("tenantId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateContact(c echo.Context) error {
	var req contactRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.tenants.UpdateContact(c.Request().Context(), grant(c), c.Param("tenantId"), tenant.ContactUpdate{
		Name:           req.Name,
		WhatsAppNumber: req.WhatsAppNumber,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) RotatePassword(c echo.Context) error {
	var req passwordRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	if err := h.tenants.RotateAdminPassword(c.Request().Context(), grant(c), c.Param("tenantId"), req.Password); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) SetCategories(c echo.Context) error {
	var req categoriesRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	t, err := h.tenants.SetCategories(c.Request().Context(), grant(c), c.Param("tenantId"), req.Categories)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ListProducts returns the full catalog, unavailable products included.
func (h *Handler) ListProducts(c echo.Context) error {
	products, err := h.catalog.List(c.Request().Context(), grant(c), c.Param("tenantId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c echo.Context) error {
	p, err := h.catalog.Get(c.Request().Context(), grant(c), c.Param("tenantId"), c.Param("productId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) CreateProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	in, err := req.input()
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.catalog.Create(c.Request().Context(), grant(c), c.Param("tenantId"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdateProduct applies the fields present in the body.
func (h *Handler) UpdateProduct(c echo.Context) error {
	var req productRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	patch, err := req.patch()
	if err != nil {
		return respondError(c, err)
	}
	p, err := h.catalog.Update(c.Request().Context(), grant(c), c.Param("tenantId"), c.Param("productId"), patch)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ToggleProduct(c echo.Context) error {
	p, err := h.catalog.ToggleAvailability(c.Request().Context(), grant(c), c.Param("tenantId"), c.Param("productId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProduct(c echo.Context) error {
	if err := h.catalog.Delete(c.Request().Context(), grant(c), c.Param("tenantId"), c.Param("productId")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListOrders returns the tenant's orders, newest first. ?status= narrows the list.
func (h *Handler) ListOrders(c echo.Context) error {
	orders, err := h.orders.ListForTenant(c.Request().Context(), grant(c), c.Param("tenantId"), model.OrderStatus(c.QueryParam("status")))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = orderView(&orders[i])
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.orders.Get(c.Request().Context(), grant(c), c.Param("tenantId"), c.Param("orderId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderView(o))
}

func (h *Handler) AdvanceOrder(c echo.Context) error {
	var req advanceRequest
	if err := bind(c, &req); err != nil {
		return respondError(c, err)
	}
	o, err := h.orders.Advance(c.Request().Context(), grant(c), c.Param("tenantId"), c.Param("orderId"), model.OrderStatus(req.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, orderView(o))
}
