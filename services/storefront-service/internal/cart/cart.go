// Package cart holds a customer's pending selection before checkout. Cart is a pure reducer;
// persistence between requests lives behind Store.
package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/suteetoe/storefront/services/storefront-service/internal/model"
)

// MaxQuantity caps the units of a single line. Adds and increments beyond it saturate.
const MaxQuantity = 999

// Item is a product snapshot taken when it was first added, plus a quantity.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart maps product ids to items in insertion order. Every quantity is between 1 and
// MaxQuantity. A cart holds products of a single tenant.
type Cart struct {
	tenantID string
	items    []Item
}

func New() *Cart {
	return &Cart{}
}

// TenantID is empty until the first item is added or the cart is bound.
func (c *Cart) TenantID() string { return c.tenantID }

// Bind scopes the cart to tenantID, emptying it if it held another tenant's products. It
// reports whether the cart was reset.
func (c *Cart) Bind(tenantID string) bool {
	if c.tenantID == tenantID {
		return false
	}
	reset := len(c.items) > 0
	c.tenantID = tenantID
	c.items = nil
	return reset
}

// Add puts one unit of p in the cart. A product already present keeps its original snapshot.
func (c *Cart) Add(p model.Product) {
	c.Bind(p.TenantID)
	if i := c.index(p.ID); i >= 0 {
		if c.items[i].Quantity < MaxQuantity {
			c.items[i].Quantity++
		}
		return
	}
	c.items = append(c.items, Item{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Image:     p.Image,
		Quantity:  1,
	})
}

// SetQuantity changes the quantity of productID by delta; an item whose quantity drops to
// zero or below is removed and one pushed past MaxQuantity stops there. It reports whether
// the product was in the cart.
func (c *Cart) SetQuantity(productID string, delta int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	q := c.items[i].Quantity
	switch {
	case delta > MaxQuantity-q:
		q = MaxQuantity
	case delta < -q:
		q = 0
	default:
		q += delta
	}
	if q <= 0 {
		c.removeAt(i)
		return true
	}
	c.items[i].Quantity = q
	return true
}

// Remove drops productID from the cart.
func (c *Cart) Remove(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

// Clear empties the cart but keeps its tenant.
func (c *Cart) Clear() {
	c.items = nil
}

// Items returns a copy of the items in insertion order.
func (c *Cart) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Quantity returns the units of productID in the cart.
func (c *Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.items[i].Quantity
	}
	return 0
}

// Count is the total number of units.
func (c *Cart) Count() int {
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// Subtotal sums the snapshot prices, never live catalog prices.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c *Cart) index(productID string) int {
	for i, it := range c.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

type wireCart struct {
	TenantID string          `json:"tenant_id,omitempty"`
	Items    []Item          `json:"items"`
	Count    int             `json:"count"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func (c *Cart) MarshalJSON() ([]byte, error) {
	items := c.items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal(wireCart{
		TenantID: c.tenantID,
		Items:    items,
		Count:    c.Count(),
		Subtotal: c.Subtotal(),
	})
}

// UnmarshalJSON restores a cart, dropping lines that would break the quantity range and
// unique product invariants.
func (c *Cart) UnmarshalJSON(data []byte) error {
	var w wireCart
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.tenantID = w.TenantID
	c.items = nil
	for _, it := range w.Items {
		if it.Quantity <= 0 || it.Quantity > MaxQuantity || it.ProductID == "" || c.index(it.ProductID) >= 0 {
			continue
		}
		c.items = append(c.items, it)
	}
	return nil
}
