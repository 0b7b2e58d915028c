package model

import (
	"time"

	"gorm.io/datatypes"
)

// Tenant is one vendor's storefront, addressed publicly by its slug.
type Tenant struct {
	ID                string                      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Slug              string                      `json:"slug" gorm:"type:varchar(100);uniqueIndex;not null"`
	Name              string                      `json:"name" gorm:"type:varchar(150);not null"`
	WhatsAppNumber    string                      `json:"whatsapp_number" gorm:"column:whatsapp_number;type:varchar(32)"`
	AdminPasswordHash string                      `json:"-" gorm:"column:admin_password_hash;type:varchar(100);not null"`
	Categories        datatypes.JSONSlice[string] `json:"categories,omitempty"`
	Active            bool                        `json:"active" gorm:"not null"`
	TrialExpiresAt    *time.Time                  `json:"trial_expires_at,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
	UpdatedAt         time.Time                   `json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) GetID() string   { return t.ID }
func (t *Tenant) SetID(id string) { t.ID = id }

// TrialExpired reports whether the tenant's trial window has passed at now.
func (t Tenant) TrialExpired(now time.Time) bool {
	return t.TrialExpiresAt != nil && !now.Before(*t.TrialExpiresAt)
}
