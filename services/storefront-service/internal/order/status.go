package order

import (
	"github.com/suteetoe/storefront/services/storefront-service/internal/apperr"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
)

// pending -> preparing -> ready -> delivered, with cancellation from any non-terminal state.
var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending:   {model.StatusPreparing, model.StatusCancelled},
	model.StatusPreparing: {model.StatusReady, model.StatusCancelled},
	model.StatusReady:     {model.StatusDelivered, model.StatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the legal targets of s; terminal statuses have none.
func NextStatuses(s model.OrderStatus) []model.OrderStatus {
	out := make([]model.OrderStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func IsTerminal(s model.OrderStatus) bool {
	return s == model.StatusDelivered || s == model.StatusCancelled
}

// ParseStatus validates a status name.
func ParseStatus(s string) (model.OrderStatus, error) {
	switch st := model.OrderStatus(s); st {
	case model.StatusPending, model.StatusPreparing, model.StatusReady, model.StatusDelivered, model.StatusCancelled:
		return st, nil
	}
	return "", apperr.Validation("status", "unknown order status "+s)
}
