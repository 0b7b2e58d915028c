package order

import (
	"fmt"
	"strings"

	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
)

// Summary renders the staff-facing text of an order. The output depends only on its
// arguments.
func Summary(o *model.Order, t *model.Tenant) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New order #%s - %s\n", shortID(o.ID), t.Name)
	fmt.Fprintf(&b, "Customer: %s\n", o.CustomerName)
	if o.CustomerContact != "" {
		fmt.Fprintf(&b, "Contact: %s\n", o.CustomerContact)
	}
	switch o.DeliveryMethod {
	case model.MethodDineIn:
		fmt.Fprintf(&b, "Dine-in, table %s\n", o.TableNumber)
	case model.MethodPickup:
		fmt.Fprintf(&b, "Pickup at %s\n", o.PickupTime)
	case model.MethodDelivery:
		fmt.Fprintf(&b, "Delivery to %s\n", o.Address)
	}

	b.WriteString("\n")
	for _, it := range o.Items {
		fmt.Fprintf(&b, "%dx %s — %s\n", it.Quantity, it.Name, it.LineTotal.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nTotal: %s", o.Total.StringFixed(2))

	if o.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", o.Notes)
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
