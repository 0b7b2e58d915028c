// Package stats aggregates platform-wide figures for the operator.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/suteetoe/storefront/services/storefront-service/internal/authgate"
	"github.com/suteetoe/storefront/services/storefront-service/internal/gateway"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
)

var statuses = []model.OrderStatus{
	model.StatusPending,
	model.StatusPreparing,
	model.StatusReady,
	model.StatusDelivered,
	model.StatusCancelled,
}

type Stats struct {
	Tenants        int64                       `json:"tenants"`
	ActiveTenants  int64                       `json:"active_tenants"`
	TrialExpired   int64                       `json:"trial_expired"`
	Products       int64                       `json:"products"`
	Orders         int64                       `json:"orders"`
	OrdersByStatus map[model.OrderStatus]int64 `json:"orders_by_status"`
	// Revenue sums the totals of delivered orders.
	Revenue decimal.Decimal `json:"revenue"`
}

type Collector struct {
	gw  gateway.Gateway
	now func() time.Time
}

func NewCollector(gw gateway.Gateway) *Collector {
	return &Collector{gw: gw, now: time.Now}
}

// Collect computes the platform statistics. Master only.
func (c *Collector) Collect(ctx context.Context, grant authgate.Grant) (*Stats, error) {
	if err := grant.Require(authgate.Master()); err != nil {
		return nil, err
	}

	var tenants []model.Tenant
	if err := c.gw.Fetch(ctx, gateway.Tenants, gateway.Query{}, &tenants); err != nil {
		return nil, fmt.Errorf("load tenants: %w", err)
	}
	s := &Stats{
		Tenants:        int64(len(tenants)),
		OrdersByStatus: make(map[model.OrderStatus]int64, len(statuses)),
	}
	now := c.now()
	for _, t := range tenants {
		if t.Active {
			s.ActiveTenants++
		}
		if t.TrialExpired(now) {
			s.TrialExpired++
		}
	}

	var err error
	if s.Products, err = c.gw.Count(ctx, gateway.Products, nil); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	for _, st := range statuses {
		n, err := c.gw.Count(ctx, gateway.Orders, gateway.Filter{"status": st})
		if err != nil {
			return nil, fmt.Errorf("count %s orders: %w", st, err)
		}
		s.OrdersByStatus[st] = n
		s.Orders += n
	}

	var delivered []model.Order
	q := gateway.Query{Filter: gateway.Filter{"status": model.StatusDelivered}}
	if err := c.gw.Fetch(ctx, gateway.Orders, q, &delivered); err != nil {
		return nil, fmt.Errorf("load delivered orders: %w", err)
	}
	s.Revenue = decimal.Zero
	for _, o := range delivered {
		s.Revenue = s.Revenue.Add(o.Total)
	}
	return s, nil
}
