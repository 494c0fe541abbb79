package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
)

// SettlementAlert is the operator reconciliation queue. A row here means the
// gateway reported money moved but the order could not be finalized, and a
// human has to act (usually a refund).
type SettlementAlert struct {
	ID                   uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	IntentID             *uuid.UUID        `gorm:"column:intent_id;type:uuid"`
	Gateway              enums.Gateway     `gorm:"column:gateway;not null"`
	GatewayTransactionID string            `gorm:"column:gateway_transaction_id;not null"`
	Reason               enums.AlertReason `gorm:"column:reason;not null"`
	Details              json.RawMessage   `gorm:"column:details;type:jsonb"`
	ResolvedAt           *time.Time        `gorm:"column:resolved_at"`
	CreatedAt            time.Time         `gorm:"column:created_at;autoCreateTime"`
}
