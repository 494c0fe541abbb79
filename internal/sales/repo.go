package sales

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
)

// ErrDuplicateSettlement reports that sale rows for this transaction already
// exist. It is an expected outcome of webhook redelivery, not a failure.
var ErrDuplicateSettlement = errors.New("sales already recorded for transaction")

// Repository is the durable, idempotent record of completed line-item sales.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// CreateAll inserts every sale row or none. A unique violation on the
	// (gateway, transaction, product) idempotency key surfaces as
	// ErrDuplicateSettlement so callers can treat redelivery as a no-op.
	CreateAll(ctx context.Context, rows []models.Sale) error
	ExistsForTransaction(ctx context.Context, gateway enums.Gateway, transactionID string) (bool, error)
	ListByTransaction(ctx context.Context, gateway enums.Gateway, transactionID string) ([]models.Sale, error)
	MarkPayoutPaid(ctx context.Context, saleID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a sales repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAll(ctx context.Context, rows []models.Sale) error {
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no sale rows to create")
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		if db.IsUniqueViolation(err, models.SaleIdempotencyConstraint) {
			return ErrDuplicateSettlement
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert sale rows")
	}
	return nil
}

func (r *repository) ExistsForTransaction(ctx context.Context, gateway enums.Gateway, transactionID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("gateway = ? AND gateway_transaction_id = ?", gateway, transactionID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByTransaction(ctx context.Context, gateway enums.Gateway, transactionID string) ([]models.Sale, error) {
	var rows []models.Sale
	err := r.db.WithContext(ctx).
		Where("gateway = ? AND gateway_transaction_id = ?", gateway, transactionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkPayoutPaid(ctx context.Context, saleID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND payout_status = ?", saleID, enums.PayoutStatusPending).
		Update("payout_status", enums.PayoutStatusPaid)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark payout paid")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "sale not found or payout already marked paid")
	}
	return nil
}
