package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
)

// PaymentIntent freezes a cart at the moment a gateway payment is created.
// The line snapshot and commission rate are captured here so that webhook
// processing is immune to concurrent catalog or rate mutation.
type PaymentIntent struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Gateway           enums.Gateway       `gorm:"column:gateway;not null;index:idx_payment_intents_gateway_ref,unique"`
	GatewayRef        string              `gorm:"column:gateway_ref;not null;index:idx_payment_intents_gateway_ref,unique"`
	BuyerID           uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	Status            enums.IntentStatus  `gorm:"column:status;not null;default:'created'"`
	CommissionPercent decimal.Decimal     `gorm:"column:commission_percent;type:numeric(5,2);not null"`
	TotalCents        int64               `gorm:"column:total_cents;not null"`
	Currency          enums.Currency      `gorm:"column:currency;not null;default:'BRL'"`
	Lines             []PaymentIntentLine `gorm:"foreignKey:IntentID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentIntentLine is one frozen cart line. Unit price is the server-side
// price at intent creation, never the client-supplied one.
type PaymentIntentLine struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	IntentID          uuid.UUID `gorm:"column:intent_id;type:uuid;not null;index"`
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	SellerID          uuid.UUID `gorm:"column:seller_id;type:uuid;not null"`
	PayoutRecipientID string    `gorm:"column:payout_recipient_id;not null"`
	Qty               int       `gorm:"column:qty;not null"`
	UnitPriceCents    int64     `gorm:"column:unit_price_cents;not null"`
	TotalCents        int64     `gorm:"column:total_cents;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
