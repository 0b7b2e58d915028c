package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MaxAmount is the largest value the numeric(12,2) money columns hold.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Extra is an optional add-on offered with a product.
type Extra struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// Product belongs to exactly one tenant for its whole life.
type Product struct {
	ID          string                     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	TenantID    string                     `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	Name        string                     `json:"name" gorm:"type:varchar(150);not null"`
	Price       decimal.Decimal            `json:"price" gorm:"type:numeric(12,2);not null"`
	Description string                     `json:"description" gorm:"type:text"`
	Image       string                     `json:"image" gorm:"type:text"`
	Category    string                     `json:"category" gorm:"type:varchar(100);index"`
	Available   bool                       `json:"available" gorm:"not null"`
	Extras      datatypes.JSONSlice[Extra] `json:"extras"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

func (Product) TableName() string { return "products" }

func (p *Product) GetID() string   { return p.ID }
func (p *Product) SetID(id string) { p.ID = id }
