package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/suteetoe/storefront/gomicro/config"
)

var (
	// Order metrics
	OrdersSubmittedCounter    *prometheus.CounterVec
	OrderTransitionsCounter   *prometheus.CounterVec
	OrderHandoffErrorsCounter prometheus.Counter

	// Authentication metrics
	AuthFailuresCounter *prometheus.CounterVec

	// Tenant metrics
	TenantsCreatedCounter prometheus.Counter

	// Cart metrics
	CartOperationsCounter *prometheus.CounterVec

	initOnce sync.Once
)

// InitMetrics registers the storefront metrics under the configured prefix. Only the first
// call registers; later calls are no-ops.
func InitMetrics(config *config.Config) {
	initOnce.Do(func() {
		register(config.Metrics.Prefix)
	})
}

func register(prefix string) {
	OrdersSubmittedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_orders_submitted_total",
			Help: "Total number of submitted orders",
		},
		[]string{"method"},
	)

	OrderTransitionsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_order_status_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from", "to"},
	)

	OrderHandoffErrorsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_order_handoff_errors_total",
			Help: "Total number of orders whose hand-off to staff failed",
		},
	)

	AuthFailuresCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_auth_failures_total",
			Help: "Total number of rejected credentials",
		},
		[]string{"scope"},
	)

	TenantsCreatedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: prefix + "_tenants_created_total",
			Help: "Total number of provisioned tenants",
		},
	)

	CartOperationsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: prefix + "_cart_operations_total",
			Help: "Total number of cart operations",
		},
		[]string{"operation"},
	)
}

// The recorders below are safe to call before InitMetrics; unregistered metrics are skipped.

func RecordOrderSubmitted(method string) {
	if OrdersSubmittedCounter != nil {
		OrdersSubmittedCounter.WithLabelValues(method).Inc()
	}
}

func RecordTransition(from, to string) {
	if OrderTransitionsCounter != nil {
		OrderTransitionsCounter.WithLabelValues(from, to).Inc()
	}
}

func RecordHandoffError() {
	if OrderHandoffErrorsCounter != nil {
		OrderHandoffErrorsCounter.Inc()
	}
}

func RecordAuthFailure(scope string) {
	if AuthFailuresCounter != nil {
		AuthFailuresCounter.WithLabelValues(scope).Inc()
	}
}

func RecordTenantCreated() {
	if TenantsCreatedCounter != nil {
		TenantsCreatedCounter.Inc()
	}
}

func RecordCartOperation(operation string) {
	if CartOperationsCounter != nil {
		CartOperationsCounter.WithLabelValues(operation).Inc()
	}
}
