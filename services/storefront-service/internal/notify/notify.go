// Package notify hands submitted orders over to vendor staff.
package notify

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Handoff is what staff receive for a new order.
type Handoff struct {
	OrderID      string `json:"order_id"`
	TenantID     string `json:"tenant_id"`
	WhatsApp     string `json:"whatsapp"`
	Summary      string `json:"summary"`
	WhatsAppLink string `json:"whatsapp_link,omitempty"`

	TenantSlug string `json:"-"`
	Method     string `json:"-"`
}

// Notifier delivers a hand-off. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, h Handoff) error
}

// WhatsAppLink builds a wa.me deep link that opens a chat with number prefilled with text.
// Non-digit characters of number are ignored; it returns "" when no digits remain.
func WhatsAppLink(number, text string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(text)
}

// LogNotifier writes hand-offs to the log.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(_ context.Context, h Handoff) error {
	n.log.Info("Order handed off",
		zap.String("order_id", h.OrderID),
		zap.String("tenant_id", h.TenantID),
		zap.String("whatsapp_link", h.WhatsAppLink))
	return nil
}

// Multi notifies every notifier in order and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, h Handoff) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
