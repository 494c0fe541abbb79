package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CommissionRate is an admin-managed platform commission percentage.
// The settlement path only ever reads these rows.
type CommissionRate struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Percent     decimal.Decimal `gorm:"column:percent;type:numeric(5,2);not null"`
	Active      bool            `gorm:"column:active;not null;default:false"`
	EffectiveAt time.Time       `gorm:"column:effective_at;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}
