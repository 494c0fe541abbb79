package commission

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/internal/repo"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
)

// Repository reads admin-managed commission rates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// FindActiveRate returns the most recently effective active rate at the
	// given instant, or nil when none exists.
	FindActiveRate(ctx context.Context, asOf time.Time) (*models.CommissionRate, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindActiveRate(ctx context.Context, asOf time.Time) (*models.CommissionRate, error) {
	var rate models.CommissionRate
	err := r.DB(ctx).
		Where("active = ? AND effective_at <= ?", true, asOf).
		Order("effective_at DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}
