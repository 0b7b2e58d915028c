// Package order turns carts into durable orders and moves them through fulfillment.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/cart"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/notify"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
	"github.com/suteetoe/storefront/services/storefront-service/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// CustomerMeta is what the customer fills in at checkout.
type CustomerMeta struct {
	Name        string
	Contact     string
	Method      model.DeliveryMethod
	TableNumber string
	PickupTime  string
	Address     string
	Notes       string
}

type Pipeline struct {
	gw       gateway.Gateway
	dir      *tenant.Directory
	notifier notify.Notifier
	now      func() time.Time
	log      *zap.Logger
}

// NewPipeline builds a Pipeline. A nil notifier disables the hand-off.
func NewPipeline(gw gateway.Gateway, dir *tenant.Directory, notifier notify.Notifier, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{gw: gw, dir: dir, notifier: notifier, now: time.Now, log: log}
}

const maxCustomerName = 150

// validate checks the checkout preconditions in order: items, customer name, then the
// detail required by the delivery method.
func validate(c *cart.Cart, meta CustomerMeta) error {
	if c == nil || c.IsEmpty() {
		return apperr.Validation("items", "cart is empty")
	}
	name := strings.TrimSpace(meta.Name)
	if name == "" {
		return apperr.Validation("customer_name", "customer name is required")
	}
	if utf8.RuneCountInString(name) > maxCustomerName {
		return apperr.Validation("customer_name", "customer name is too long")
	}

	var field, detail string
	switch meta.Method {
	case model.MethodDineIn:
		field, detail = "table_number", meta.TableNumber
	case model.MethodPickup:
		field, detail = "pickup_time", meta.PickupTime
	case model.MethodDelivery:
		field, detail = "address", meta.Address
	default:
		return apperr.Validation("delivery_method", fmt.Sprintf("unknown delivery method %q", meta.Method))
	}
	if strings.TrimSpace(detail) == "" {
		return apperr.Validation(field, fmt.Sprintf("%s is required for %s orders", field, meta.Method))
	}
	return nil
}

// Submit persists the cart as a pending order of tenantID. The order keeps a copy of every
// line and its total; later catalog edits never change it. Rejected submissions write
// nothing.
func (p *Pipeline) Submit(ctx context.Context, tenantID string, c *cart.Cart, meta CustomerMeta) (*model.Order, error) {
	if err := validate(c, meta); err != nil {
		return nil, err
	}
	if c.TenantID() != "" && c.TenantID() != tenantID {
		return nil, apperr.Validation("items", "cart belongs to another storefront")
	}
	if c.Subtotal().GreaterThan(model.MaxAmount) {
		return nil, apperr.Validation("items", "order total is too large")
	}
	t, err := p.dir.Lookup(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, apperr.NotFound("tenant")
	}

	lines := c.Items()
	items := make(datatypes.JSONSlice[model.OrderItem], 0, len(lines))
	for _, it := range lines {
		items = append(items, model.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			LineTotal: it.LineTotal(),
		})
	}

	now := p.now()
	o := &model.Order{
		TenantID:        tenantID,
		CustomerName:    strings.TrimSpace(meta.Name),
		CustomerContact: strings.TrimSpace(meta.Contact),
		Items:           items,
		Total:           c.Subtotal(),
		DeliveryMethod:  meta.Method,
		Status:          model.StatusPending,
		Notes:           strings.TrimSpace(meta.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	switch meta.Method {
	case model.MethodDineIn:
		o.TableNumber = strings.TrimSpace(meta.TableNumber)
	case model.MethodPickup:
		o.PickupTime = strings.TrimSpace(meta.PickupTime)
	case model.MethodDelivery:
		o.Address = strings.TrimSpace(meta.Address)
	}

	if err := p.gw.Insert(ctx, gateway.Orders, o); err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}

	prometheus.RecordOrderSubmitted(string(o.DeliveryMethod))
	p.log.Info("Order submitted",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", o.ID),
		zap.String("method", string(o.DeliveryMethod)),
		zap.String("total", o.Total.StringFixed(2)))

	p.handoff(ctx, o, t)
	return o, nil
}

// handoff is best effort: the order is already stored.
func (p *Pipeline) handoff(ctx context.Context, o *model.Order, t *model.Tenant) {
	if p.notifier == nil {
		return
	}
	summary := Summary(o, t)
	h := notify.Handoff{
		OrderID:      o.ID,
		TenantID:     t.ID,
		WhatsApp:     t.WhatsAppNumber,
		Summary:      summary,
		WhatsAppLink: notify.WhatsAppLink(t.WhatsAppNumber, summary),
		TenantSlug:   t.Slug,
		Method:       string(o.DeliveryMethod),
	}
	if err := p.notifier.Notify(ctx, h); err != nil {
		prometheus.RecordHandoffError()
		p.log.Warn("Order hand-off failed",
			zap.String("order_id", o.ID),
			zap.String("tenant_id", t.ID),
			zap.Error(err))
	}
}

// Advance moves an order to target. The write only applies while the order still has the
// status that was checked; after one lost race the caller gets a Conflict.
func (p *Pipeline) Advance(ctx context.Context, grant authgate.Grant, tenantID, orderID string, target model.OrderStatus) (*model.Order, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	if _, err := ParseStatus(string(target)); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		o, err := p.owned(ctx, tenantID, orderID)
		if err != nil {
			return nil, err
		}
		from := o.Status
		if IsTerminal(from) {
			return nil, invalidTransition(from, target, fmt.Sprintf("order is already %s", from))
		}
		if !CanTransition(from, target) {
			return nil, invalidTransition(from, target, fmt.Sprintf("cannot move order from %s to %s", from, target))
		}

		n, err := p.gw.Update(ctx, gateway.Orders, orderID,
			map[string]interface{}{"status": target, "updated_at": p.now()},
			gateway.Filter{"tenant_id": tenantID, "status": from})
		if err != nil {
			return nil, fmt.Errorf("advance order: %w", err)
		}
		if n == 1 {
			prometheus.RecordTransition(string(from), string(target))
			p.log.Info("Order status changed",
				zap.String("tenant_id", tenantID),
				zap.String("order_id", orderID),
				zap.String("from", string(from)),
				zap.String("status", string(target)))
			return p.owned(ctx, tenantID, orderID)
		}
		p.log.Debug("Order status changed concurrently, re-reading",
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt+1))
	}
	return nil, apperr.New(apperr.CodeConflict, "order was modified concurrently")
}

func invalidTransition(from, to model.OrderStatus, msg string) error {
	return apperr.WithMetadata(apperr.CodeInvalidTransition, msg,
		map[string]string{"from": string(from), "to": string(to)})
}

// ListForTenant returns the tenant's orders, newest first, optionally only those in status.
func (p *Pipeline) ListForTenant(ctx context.Context, grant authgate.Grant, tenantID string, status model.OrderStatus) ([]model.Order, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	filter := gateway.Filter{"tenant_id": tenantID}
	if status != "" {
		if _, err := ParseStatus(string(status)); err != nil {
			return nil, err
		}
		filter["status"] = status
	}

	var orders []model.Order
	q := gateway.Query{Filter: filter, OrderBy: "created_at", Desc: true}
	if err := p.gw.Fetch(ctx, gateway.Orders, q, &orders); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns one order of the tenant.
func (p *Pipeline) Get(ctx context.Context, grant authgate.Grant, tenantID, orderID string) (*model.Order, error) {
	if err := grant.Require(authgate.TenantAdmin(tenantID)); err != nil {
		return nil, err
	}
	return p.owned(ctx, tenantID, orderID)
}

func (p *Pipeline) owned(ctx context.Context, tenantID, orderID string) (*model.Order, error) {
	var orders []model.Order
	q := gateway.Query{Filter: gateway.Filter{"id": orderID, "tenant_id": tenantID}, Limit: 1}
	if err := p.gw.Fetch(ctx, gateway.Orders, q, &orders); err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("order")
	}
	return &orders[0], nil
}
