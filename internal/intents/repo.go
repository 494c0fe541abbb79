package intents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
)

// Repository persists payment intents and their frozen line snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, intent *models.PaymentIntent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error)
	FindByGatewayRef(ctx context.Context, gateway enums.Gateway, ref string) (*models.PaymentIntent, error)
	// UpdateStatus moves the intent to the given status unless it is already
	// terminal; terminal states never regress.
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.IntentStatus) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an intent repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, intent *models.PaymentIntent) error {
	if intent == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "intent required")
	}
	if intent.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}
	if len(intent.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "intent requires at least one line")
	}
	return r.db.WithContext(ctx).Create(intent).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&intent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) FindByGatewayRef(ctx context.Context, gateway enums.Gateway, ref string) (*models.PaymentIntent, error) {
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway ref required")
	}
	var intent models.PaymentIntent
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("gateway = ? AND gateway_ref = ?", gateway, ref).
		First(&intent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &intent, nil
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.IntentStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid intent status")
	}
	res := r.db.WithContext(ctx).
		Model(&models.PaymentIntent{}).
		Where("id = ? AND status NOT IN ?", id, []enums.IntentStatus{
			enums.IntentStatusSettled,
			enums.IntentStatusRejected,
		}).
		Update("status", status)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "update intent status")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "intent missing or already terminal")
	}
	return nil
}
