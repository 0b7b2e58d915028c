package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/suteetoe/storefront/gomicro/database"
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/cart"
	"github.com/suteetoe/storefront/services/storefront-service/internal/catalog"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
	"github.com/suteetoe/storefront/services/storefront-service/internal/notify"
	"github.com/suteetoe/storefront/services/storefront-service/internal/tenant"
)

type countingGateway struct {
	gateway.Gateway
	inserts int
	// race, when set, runs right before each guarded Update.
	race func()
}

func (g *countingGateway) Insert(ctx context.Context, c gateway.Collection, r gateway.Identified) error {
	g.inserts++
	return g.Gateway.Insert(ctx, c, r)
}

func (g *countingGateway) Update(ctx context.Context, c gateway.Collection, id string, fields map[string]interface{}, guard gateway.Filter) (int64, error) {
	if g.race != nil && len(guard) > 0 {
		g.race()
	}
	return g.Gateway.Update(ctx, c, id, fields, guard)
}

type recordingNotifier struct {
	handoffs []notify.Handoff
	err      error
}

func (n *recordingNotifier) Notify(_ context.Context, h notify.Handoff) error {
	n.handoffs = append(n.handoffs, h)
	return n.err
}

type fixture struct {
	gw       *countingGateway
	pipeline *Pipeline
	catalog  *catalog.Catalog
	notifier *recordingNotifier
	master   authgate.Grant
	admin    authgate.Grant
	burger   *model.Tenant
	classic  *model.Product
	soda     *model.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	inner := gateway.NewGormGateway(db, gateway.Options{Timeout: time.Second}, nil)
	if err := inner.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	gw := &countingGateway{Gateway: inner}

	gate, err := authgate.NewGate(gw, authgate.Options{MasterSecret: "operator-secret", SigningKey: "k"}, nil)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	master, err := gate.AuthenticateMaster(ctx, "operator-secret")
	if err != nil {
		t.Fatalf("master: %v", err)
	}
	dir := tenant.NewDirectory(gw, tenant.Options{}, nil)
	burger, err := dir.Create(ctx, master, tenant.CreateInput{
		Name:           "Burger House",
		WhatsAppNumber: "+55 11 99999-0000",
		AdminPassword:  "burger-pass",
	})
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	admin, err := gate.AuthenticateTenantAdmin(ctx, burger.ID, "burger-pass")
	if err != nil {
		t.Fatalf("admin: %v", err)
	}

	cat := catalog.New(gw, dir, nil)
	classic, err := cat.Create(ctx, admin, burger.ID, catalog.ProductInput{Name: "Classic Burger", Price: "12.00"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	soda, err := cat.Create(ctx, admin, burger.ID, catalog.ProductInput{Name: "Soda", Price: "5.00"})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}

	notifier := &recordingNotifier{}
	return &fixture{
		gw:       gw,
		pipeline: NewPipeline(gw, dir, notifier, nil),
		catalog:  cat,
		notifier: notifier,
		master:   master,
		admin:    admin,
		burger:   burger,
		classic:  classic,
		soda:     soda,
	}
}

func (f *fixture) cart() *cart.Cart {
	c := cart.New()
	c.Add(*f.classic)
	c.Add(*f.classic)
	c.Add(*f.soda)
	return c
}

// bulkCart holds two units of the most expensive price a product can have.
func (f *fixture) bulkCart() *cart.Cart {
	c := cart.New()
	c.Add(model.Product{ID: "banquet", TenantID: f.burger.ID, Name: "Banquet", Price: model.MaxAmount})
	c.SetQuantity("banquet", 1)
	return c
}

func (f *fixture) submit(t *testing.T) *model.Order {
	t.Helper()
	o, err := f.pipeline.Submit(context.Background(), f.burger.ID, f.cart(), CustomerMeta{
		Name:        "Ana",
		Method:      model.MethodDineIn,
		TableNumber: "7",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return o
}

func TestSubmitDineInOrder(t *testing.T) {
	f := newFixture(t)
	o := f.submit(t)

	if o.ID == "" || o.Status != model.StatusPending || o.TableNumber != "7" {
		t.Fatalf("unexpected order %+v", o)
	}
	if !o.Total.Equal(decimal.RequireFromString("29.00")) {
		t.Fatalf("expected total 29.00, got %s", o.Total)
	}
	if len(o.Items) != 2 || o.Items[0].Quantity != 2 || !o.Items[0].LineTotal.Equal(decimal.NewFromInt(24)) {
		t.Fatalf("unexpected items %+v", o.Items)
	}

	stored, err := f.pipeline.Get(context.Background(), f.admin, f.burger.ID, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.CustomerName != "Ana" || !stored.Total.Equal(o.Total) {
		t.Fatalf("unexpected stored order %+v", stored)
	}

	if len(f.notifier.handoffs) != 1 {
		t.Fatalf("expected one hand-off, got %d", len(f.notifier.handoffs))
	}
	h := f.notifier.handoffs[0]
	if h.OrderID != o.ID || h.TenantSlug != "burger-house" || h.Method != "dine-in" {
		t.Fatalf("unexpected hand-off %+v", h)
	}
	if !strings.HasPrefix(h.WhatsAppLink, "https://wa.me/5511999990000?text=") {
		t.Fatalf("unexpected link %q", h.WhatsAppLink)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name  string
		cart  *cart.Cart
		meta  CustomerMeta
		field string
	}{
		{"empty cart", cart.New(), CustomerMeta{Name: "Ana", Method: model.MethodDineIn, TableNumber: "7"}, "items"},
		{"empty cart wins over missing name", cart.New(), CustomerMeta{}, "items"},
		{"blank name", f.cart(), CustomerMeta{Name: "  ", Method: model.MethodPickup, PickupTime: "18:00"}, "customer_name"},
		{"dine-in without table", f.cart(), CustomerMeta{Name: "Ana", Method: model.MethodDineIn}, "table_number"},
		{"pickup without time", f.cart(), CustomerMeta{Name: "Ana", Method: model.MethodPickup}, "pickup_time"},
		{"delivery without address", f.cart(), CustomerMeta{Name: "Ana", Method: model.MethodDelivery, Address: " "}, "address"},
		{"unknown method", f.cart(), CustomerMeta{Name: "Ana", Method: "drone"}, "delivery_method"},
		{"name longer than the column", f.cart(), CustomerMeta{Name: strings.Repeat("a", 151), Method: model.MethodPickup, PickupTime: "18:00"}, "customer_name"},
		{"total beyond the money column", f.bulkCart(), CustomerMeta{Name: "Ana", Method: model.MethodPickup, PickupTime: "18:00"}, "items"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := f.gw.inserts
			_, err := f.pipeline.Submit(context.Background(), f.burger.ID, tc.cart, tc.meta)
			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Code != apperr.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if ae.Metadata["field"] != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, ae.Metadata["field"])
			}
			if f.gw.inserts != before {
				t.Fatal("rejected submission must not write")
			}
		})
	}
}

func TestSubmitRejectsOtherTenantsCart(t *testing.T) {
	f := newFixture(t)
	c := cart.New()
	c.Add(model.Product{ID: "x", TenantID: "someone-else", Name: "X", Price: decimal.NewFromInt(1)})

	_, err := f.pipeline.Submit(context.Background(), f.burger.ID, c, CustomerMeta{Name: "Ana", Method: model.MethodPickup, PickupTime: "18:00"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitSurvivesHandoffFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	o := f.submit(t)
	if _, err := f.pipeline.Get(context.Background(), f.admin, f.burger.ID, o.ID); err != nil {
		t.Fatalf("order must be stored despite hand-off failure: %v", err)
	}
}

func TestOrderIsImmutableAfterProductEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.submit(t)

	price := "99.00"
	name := "Deluxe Burger"
	if _, err := f.catalog.Update(ctx, f.admin, f.burger.ID, f.classic.ID, catalog.ProductPatch{Price: &price, Name: &name}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	stored, err := f.pipeline.Get(ctx, f.admin, f.burger.ID, o.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.Total.Equal(decimal.RequireFromString("29.00")) {
		t.Fatalf("total changed to %s", stored.Total)
	}
	if stored.Items[0].Name != "Classic Burger" || !stored.Items[0].UnitPrice.Equal(decimal.NewFromInt(12)) {
		t.Fatalf("item snapshot changed: %+v", stored.Items[0])
	}
}

func TestAdvanceThroughLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.submit(t)

	for _, next := range []model.OrderStatus{model.StatusPreparing, model.StatusReady} {
		got, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, next)
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		if got.Status != next {
			t.Fatalf("expected %s, got %s", next, got.Status)
		}
	}

	if _, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, model.StatusPending); !errors.Is(err, apperr.ErrInvalidTransition) {
		t.Fatalf("ready -> pending: expected invalid transition, got %v", err)
	}

	got, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, model.StatusDelivered)
	if err != nil || got.Status != model.StatusDelivered {
		t.Fatalf("ready -> delivered: %+v %v", got, err)
	}

	for _, target := range []model.OrderStatus{model.StatusCancelled, model.StatusPending, model.StatusReady} {
		if _, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, target); !errors.Is(err, apperr.ErrInvalidTransition) {
			t.Fatalf("delivered -> %s: expected invalid transition, got %v", target, err)
		}
	}

	_, err = f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, model.StatusCancelled)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Message != "order is already delivered" || ae.Metadata["from"] != "delivered" {
		t.Fatalf("expected terminal status error, got %v", err)
	}
}

func TestAdvanceScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.submit(t)

	if _, err := f.pipeline.Advance(ctx, f.admin, "other-tenant", o.ID, model.StatusPreparing); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := f.pipeline.Advance(ctx, f.master, "other-tenant", o.ID, model.StatusPreparing); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("order must not be reachable through another tenant, got %v", err)
	}
	if _, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, "cooking"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestAdvanceRereadsAfterLostRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.submit(t)

	raced := false
	f.gw.race = func() {
		if raced {
			return
		}
		raced = true
		if _, err := f.gw.Gateway.Update(ctx, gateway.Orders, o.ID, map[string]interface{}{"status": model.StatusPreparing}, nil); err != nil {
			t.Fatalf("race update: %v", err)
		}
	}

	got, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, model.StatusCancelled)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}
}

func TestAdvanceConflictsAfterSecondLostRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.submit(t)

	steps := []model.OrderStatus{model.StatusPreparing, model.StatusReady}
	f.gw.race = func() {
		if len(steps) == 0 {
			return
		}
		next := steps[0]
		steps = steps[1:]
		if _, err := f.gw.Gateway.Update(ctx, gateway.Orders, o.ID, map[string]interface{}{"status": next}, nil); err != nil {
			t.Fatalf("race update: %v", err)
		}
	}

	_, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, o.ID, model.StatusCancelled)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListForTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.pipeline.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	first := f.submit(t)
	second := f.submit(t)
	if _, err := f.pipeline.Advance(ctx, f.admin, f.burger.ID, first.ID, model.StatusPreparing); err != nil {
		t.Fatalf("advance: %v", err)
	}

	all, err := f.pipeline.ListForTenant(ctx, f.admin, f.burger.ID, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}

	pending, err := f.pipeline.ListForTenant(ctx, f.admin, f.burger.ID, model.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Fatalf("unexpected pending orders %+v", pending)
	}

	if _, err := f.pipeline.ListForTenant(ctx, f.admin, "other", ""); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
