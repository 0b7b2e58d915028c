// Package gateway is the persistence boundary of the storefront: generic CRUD over the
// tenants, products and orders collections.
package gateway

import "context"

// Collection names a stored record set.
type Collection string

const (
	Tenants  Collection = "tenants"
	Products Collection = "products"
	Orders   Collection = "orders"
)

// Filter is a conjunction of column equality predicates.
type Filter map[string]interface{}

// Query selects records from a collection.
type Query struct {
	Filter  Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Identified records get their id assigned by the gateway on insert.
type Identified interface {
	GetID() string
	SetID(id string)
}

// Gateway is the storage contract consumed by the ordering core. Implementations bound every
// call with a timeout and report failures with apperr codes: NotFound, Conflict (unique
// constraint violations) and Transient (timeouts, lost connections).
type Gateway interface {
	// Fetch loads matching records into dest, a pointer to a slice of the collection's model.
	Fetch(ctx context.Context, c Collection, q Query, dest interface{}) error
	// Insert stores record, assigning its id when empty.
	Insert(ctx context.Context, c Collection, record Identified) error
	// Update applies fields to the record with id, only while guard still matches.
	// It returns the number of records changed.
	Update(ctx context.Context, c Collection, id string, fields map[string]interface{}, guard Filter) (int64, error)
	// Delete removes the record with id and returns the number removed.
	Delete(ctx context.Context, c Collection, id string) (int64, error)
	// DeleteWhere removes every record matching filter.
	DeleteWhere(ctx context.Context, c Collection, filter Filter) (int64, error)
	// Count returns the number of records matching filter.
	Count(ctx context.Context, c Collection, filter Filter) (int64, error)
	// Transaction runs fn with a gateway whose writes commit atomically when fn returns nil.
	Transaction(ctx context.Context, fn func(tx Gateway) error) error
}
