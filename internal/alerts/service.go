package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/internal/repo"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

// Service is the operator reconciliation queue. Settlement failures after a
// confirmed charge land here and are never silently dropped.
type Service interface {
	Raise(ctx context.Context, input RaiseInput) (*models.SettlementAlert, error)
	ListUnresolved(ctx context.Context) ([]models.SettlementAlert, error)
	Resolve(ctx context.Context, alertID uuid.UUID) error
}

// RaiseInput captures the data an alert requires.
type RaiseInput struct {
	IntentID             *uuid.UUID
	Gateway              enums.Gateway
	GatewayTransactionID string
	Reason               enums.AlertReason
	Details              json.RawMessage
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires an alerts service with the provided repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("alerts repository required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Raise(ctx context.Context, input RaiseInput) (*models.SettlementAlert, error) {
	if !input.Gateway.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid gateway")
	}
	if input.GatewayTransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway transaction id required")
	}
	if !input.Reason.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid alert reason")
	}

	alert := &models.SettlementAlert{
		IntentID:             input.IntentID,
		Gateway:              input.Gateway,
		GatewayTransactionID: input.GatewayTransactionID,
		Reason:               input.Reason,
		Details:              input.Details,
	}
	if err := s.repo.Create(ctx, alert); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist settlement alert")
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"gateway":        input.Gateway.String(),
			"transaction_id": input.GatewayTransactionID,
			"reason":         input.Reason.String(),
		})
		s.logg.Error(ctx, "settlement requires manual reconciliation",
			pkgerrors.New(pkgerrors.CodeUnreconciledCharge, "charge confirmed but settlement failed"))
	}
	return alert, nil
}

func (s *service) ListUnresolved(ctx context.Context) ([]models.SettlementAlert, error) {
	return s.repo.ListUnresolved(ctx)
}

func (s *service) Resolve(ctx context.Context, alertID uuid.UUID) error {
	if alertID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "alert id required")
	}
	return s.repo.Resolve(ctx, alertID, time.Now().UTC())
}

// Repository manages persistence for settlement alerts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, alert *models.SettlementAlert) error
	ListUnresolved(ctx context.Context) ([]models.SettlementAlert, error)
	Resolve(ctx context.Context, alertID uuid.UUID, at time.Time) error
}

type repository struct {
	repo.Base
}

// NewRepository returns an alerts repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) Create(ctx context.Context, alert *models.SettlementAlert) error {
	return r.DB(ctx).Create(alert).Error
}

func (r *repository) ListUnresolved(ctx context.Context) ([]models.SettlementAlert, error) {
	var rows []models.SettlementAlert
	err := r.DB(ctx).
		Where("resolved_at IS NULL").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Resolve(ctx context.Context, alertID uuid.UUID, at time.Time) error {
	res := r.DB(ctx).
		Model(&models.SettlementAlert{}).
		Where("id = ? AND resolved_at IS NULL", alertID).
		Update("resolved_at", at)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "resolve alert")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "alert missing or already resolved")
	}
	return nil
}
