package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
)

// Sale is the durable record of one settled product line. The unique index on
// (gateway, gateway_transaction_id, product_id) is the idempotency key that
// makes duplicate webhook delivery a no-op; it must be enforced by the
// database, not by a read-then-insert.
type Sale struct {
	ID                   uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID            uuid.UUID          `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_sales_idempotency_key,priority:3"`
	BuyerID              uuid.UUID          `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID             uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	Qty                  int                `gorm:"column:qty;not null"`
	TotalCents           int64              `gorm:"column:total_cents;not null"`
	CommissionPercent    decimal.Decimal    `gorm:"column:commission_percent;type:numeric(5,2);not null"`
	SellerAmountCents    int64              `gorm:"column:seller_amount_cents;not null"`
	Gateway              enums.Gateway      `gorm:"column:gateway;not null;uniqueIndex:idx_sales_idempotency_key,priority:1"`
	GatewayTransactionID string             `gorm:"column:gateway_transaction_id;not null;uniqueIndex:idx_sales_idempotency_key,priority:2"`
	GatewayStatus        string             `gorm:"column:gateway_status;not null"`
	PayoutStatus         enums.PayoutStatus `gorm:"column:payout_status;not null;default:'pending'"`
	CreatedAt            time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// SaleIdempotencyConstraint names the unique index guarding duplicate settlement.
const SaleIdempotencyConstraint = "idx_sales_idempotency_key"
