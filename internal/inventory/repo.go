package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
)

// Repository is the exclusive owner of product stock counts on the
// settlement path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// TryDecrement atomically subtracts qty from the product's available
	// quantity. It reports false when stock would go negative; that is an
	// expected outcome, not an error.
	TryDecrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Available(ctx context.Context, productID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) TryDecrement(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	if productID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	// Single conditional update; the row lock lives only for this statement.
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity_available >= ?", productID, qty).
		UpdateColumn("quantity_available", gorm.Expr("quantity_available - ?", qty))
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Select("quantity_available").
		First(&product, "id = ?", productID).Error; err != nil {
		return 0, err
	}
	return product.QuantityAvailable, nil
}
