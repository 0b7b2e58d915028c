package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// OrderStatus is a step of the fulfillment state machine.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// DeliveryMethod says how the customer receives the order.
type DeliveryMethod string

const (
	MethodDineIn   DeliveryMethod = "dine-in"
	MethodPickup   DeliveryMethod = "pickup"
	MethodDelivery DeliveryMethod = "delivery"
)

// OrderItem is the frozen copy of a cart line taken at submission.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Order is immutable after submission except for Status.
type Order struct {
	ID              string                         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID        string                         `json:"tenant_id" gorm:"type:varchar(36);index:idx_orders_tenant_created,priority:1;not null"`
	CustomerName    string                         `json:"customer_name" gorm:"type:varchar(150);not null"`
	CustomerContact string                         `json:"customer_contact,omitempty" gorm:"type:varchar(64)"`
	Items           datatypes.JSONSlice[OrderItem] `json:"items" gorm:"not null"`
	Total           decimal.Decimal                `json:"total" gorm:"type:numeric(12,2);not null"`
	DeliveryMethod  DeliveryMethod                 `json:"delivery_method" gorm:"type:varchar(16);not null"`
	TableNumber     string                         `json:"table_number,omitempty" gorm:"type:varchar(16)"`
	PickupTime      string                         `json:"pickup_time,omitempty" gorm:"type:varchar(32)"`
	Address         string                         `json:"address,omitempty" gorm:"type:text"`
	Status          OrderStatus                    `json:"status" gorm:"type:varchar(16);index;not null"`
	Notes           string                         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time                      `json:"created_at" gorm:"index:idx_orders_tenant_created,priority:2"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) GetID() string   { return o.ID }
func (o *Order) SetID(id string) { o.ID = id }

// All returns every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{&Tenant{}, &Product{}, &Order{}}
}
