package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is the canonical seller listing. QuantityAvailable is owned by the
// inventory ledger: the only writer on the settlement path is the conditional
// decrement, and the column never goes negative.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SellerID          uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index"`
	Name              string    `gorm:"column:name;not null"`
	PriceCents        int64     `gorm:"column:price_cents;not null"`
	QuantityAvailable int       `gorm:"column:quantity_available;not null;default:0"`
	PayoutRecipientID *string   `gorm:"column:payout_recipient_id"`
	IsActive          bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
