package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/internal/alerts"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/intents"
	"github.com/viniciusprado/bazarlivre-backend/internal/inventory"
	"github.com/viniciusprado/bazarlivre-backend/internal/sales"
	"github.com/viniciusprado/bazarlivre-backend/internal/split"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
	"github.com/viniciusprado/bazarlivre-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Orchestrator applies one canonical payment outcome to the ledger. Every
// entry point that learns a payment's fate funnels through Settle: webhooks,
// capture endpoints, and reconciliation polls alike.
type Orchestrator interface {
	Settle(ctx context.Context, outcome *gateway.PaymentOutcome) error
}

type orchestrator struct {
	tx        txRunner
	intents   intents.Repository
	inventory inventory.Repository
	sales     sales.Repository
	alerts    alerts.Service
	metrics   *metrics.SettlementMetrics
	logger    *logger.Logger
}

// New builds the settlement orchestrator.
func New(
	tx txRunner,
	intentRepo intents.Repository,
	inventoryRepo inventory.Repository,
	salesRepo sales.Repository,
	alertSvc alerts.Service,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Orchestrator, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if intentRepo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if inventoryRepo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if salesRepo == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if alertSvc == nil {
		return nil, fmt.Errorf("alerts service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &orchestrator{
		tx:        tx,
		intents:   intentRepo,
		inventory: inventoryRepo,
		sales:     salesRepo,
		alerts:    alertSvc,
		metrics:   settlementMetrics,
		logger:    logg,
	}, nil
}

// stockShortage aborts the settlement transaction when any line cannot be
// decremented; carrying it as an error rolls back the decrements that did
// succeed.
type stockShortage struct {
	shorts []shortLine
}

type shortLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Qty       int       `json:"qty"`
}

func (e *stockShortage) Error() string {
	return fmt.Sprintf("insufficient stock on %d line(s)", len(e.shorts))
}

func (o *orchestrator) Settle(ctx context.Context, outcome *gateway.PaymentOutcome) error {
	if outcome == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "outcome required")
	}
	if !outcome.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown outcome status")
	}
	if outcome.TransactionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	ctx = o.logger.WithGateway(ctx, outcome.Gateway.String())
	ctx = o.logger.WithField(ctx, "transaction_id", outcome.TransactionID)

	if outcome.Status == enums.OutcomePending {
		o.logger.Info(ctx, "payment still pending, nothing to settle")
		return nil
	}

	intent, err := o.resolveIntent(ctx, outcome)
	if err != nil {
		return err
	}
	if intent == nil {
		return o.handleUnknownIntent(ctx, outcome)
	}
	ctx = o.logger.WithIntentID(ctx, intent.ID.String())

	if intent.Status.IsTerminal() {
		o.logger.Info(ctx, "intent already terminal, ignoring redelivery")
		o.metrics.IncSettlement(outcome.Gateway.String(), "duplicate")
		return nil
	}

	switch outcome.Status {
	case enums.OutcomeFailed, enums.OutcomeCancelled:
		return o.reject(ctx, intent, outcome)
	case enums.OutcomeApproved:
		return o.settleApproved(ctx, intent, outcome)
	}
	return nil
}

// resolveIntent finds the frozen snapshot for the outcome, preferring the
// embedded intent id and falling back to the gateway's own reference.
func (o *orchestrator) resolveIntent(ctx context.Context, outcome *gateway.PaymentOutcome) (*models.PaymentIntent, error) {
	if outcome.IntentID != uuid.Nil {
		intent, err := o.intents.FindByID(ctx, outcome.IntentID)
		if err != nil {
			return nil, err
		}
		if intent != nil {
			return intent, nil
		}
	}
	return o.intents.FindByGatewayRef(ctx, outcome.Gateway, outcome.TransactionID)
}

// handleUnknownIntent records an approved charge that matches nothing we
// sold. The money moved, so it must land in the reconciliation queue rather
// than vanish into a rejected webhook.
func (o *orchestrator) handleUnknownIntent(ctx context.Context, outcome *gateway.PaymentOutcome) error {
	if outcome.Status != enums.OutcomeApproved {
		o.logger.Info(ctx, "ignoring non-approved outcome for unknown intent")
		return nil
	}
	_, err := o.alerts.Raise(ctx, alerts.RaiseInput{
		Gateway:              outcome.Gateway,
		GatewayTransactionID: outcome.TransactionID,
		Reason:               enums.AlertReasonUnknownIntent,
		Details:              outcome.Raw,
	})
	if err != nil {
		return err
	}
	o.metrics.IncAlert(outcome.Gateway.String(), enums.AlertReasonUnknownIntent.String())
	return nil
}

func (o *orchestrator) reject(ctx context.Context, intent *models.PaymentIntent, outcome *gateway.PaymentOutcome) error {
	if err := o.intents.UpdateStatus(ctx, intent.ID, enums.IntentStatusRejected); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			o.logger.Info(ctx, "intent reached terminal state concurrently")
			return nil
		}
		return err
	}
	o.metrics.IncSettlement(outcome.Gateway.String(), "rejected")
	o.logger.Info(ctx, fmt.Sprintf("intent rejected after %s outcome", outcome.Status))
	return nil
}

func (o *orchestrator) settleApproved(ctx context.Context, intent *models.PaymentIntent, outcome *gateway.PaymentOutcome) error {
	started := time.Now()
	if outcome.AmountCents > 0 && outcome.AmountCents != intent.TotalCents {
		ctx = o.logger.WithFields(ctx, map[string]any{
			"charged_cents": outcome.AmountCents,
			"intent_cents":  intent.TotalCents,
		})
		o.logger.Warn(ctx, "charged amount differs from intent total")
	}

	var alreadySettled bool
	err := o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		salesRepo := o.sales.WithTx(tx)
		inventoryRepo := o.inventory.WithTx(tx)
		intentRepo := o.intents.WithTx(tx)

		exists, err := salesRepo.ExistsForTransaction(ctx, outcome.Gateway, outcome.TransactionID)
		if err != nil {
			return err
		}
		if exists {
			alreadySettled = true
			return nil
		}

		var shorts []shortLine
		for _, line := range intent.Lines {
			ok, err := inventoryRepo.TryDecrement(ctx, line.ProductID, line.Qty)
			if err != nil {
				return err
			}
			if !ok {
				shorts = append(shorts, shortLine{ProductID: line.ProductID, Qty: line.Qty})
			}
		}
		if len(shorts) > 0 {
			return &stockShortage{shorts: shorts}
		}

		result, err := split.Compute(intent.Lines, intent.CommissionPercent)
		if err != nil {
			return err
		}

		rows := buildSaleRows(intent, outcome, result)
		if err := salesRepo.CreateAll(ctx, rows); err != nil {
			return err
		}
		return intentRepo.UpdateStatus(ctx, intent.ID, enums.IntentStatusSettled)
	})

	switch {
	case err == nil && alreadySettled:
		o.logger.Info(ctx, "transaction already settled, ignoring redelivery")
		o.metrics.IncSettlement(outcome.Gateway.String(), "duplicate")
		return nil
	case err == nil:
		o.metrics.IncSettlement(outcome.Gateway.String(), "settled")
		o.metrics.ObserveSettlementDuration(outcome.Gateway.String(), time.Since(started))
		o.logger.Info(ctx, "settlement recorded")
		return nil
	case errors.Is(err, sales.ErrDuplicateSettlement):
		// Lost the race to a concurrent delivery; its transaction owns the
		// sale rows and our decrements were rolled back.
		o.logger.Info(ctx, "concurrent settlement won, ignoring redelivery")
		o.metrics.IncSettlement(outcome.Gateway.String(), "duplicate")
		return nil
	}

	var short *stockShortage
	if errors.As(err, &short) {
		return o.rejectStockShort(ctx, intent, outcome, short)
	}
	if typed := pkgerrors.As(err); typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
		// Non-retryable settlement failure after a confirmed charge: park it
		// for an operator instead of making the provider redeliver forever.
		return o.raiseSettlementError(ctx, intent, outcome, typed)
	}
	return err
}

// rejectStockShort handles an approved charge that lost the inventory race.
// No line settles, the intent is rejected, and an operator alert carries the
// refund work.
func (o *orchestrator) rejectStockShort(ctx context.Context, intent *models.PaymentIntent, outcome *gateway.PaymentOutcome, short *stockShortage) error {
	if err := o.intents.UpdateStatus(ctx, intent.ID, enums.IntentStatusRejected); err != nil {
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			return err
		}
	}

	details, _ := json.Marshal(map[string]any{
		"short_lines":   short.shorts,
		"charged_cents": outcome.AmountCents,
	})
	if _, err := o.alerts.Raise(ctx, alerts.RaiseInput{
		IntentID:             &intent.ID,
		Gateway:              outcome.Gateway,
		GatewayTransactionID: outcome.TransactionID,
		Reason:               enums.AlertReasonStockShort,
		Details:              details,
	}); err != nil {
		return err
	}
	o.metrics.IncSettlement(outcome.Gateway.String(), "stock_short")
	o.metrics.IncAlert(outcome.Gateway.String(), enums.AlertReasonStockShort.String())
	return nil
}

func (o *orchestrator) raiseSettlementError(ctx context.Context, intent *models.PaymentIntent, outcome *gateway.PaymentOutcome, cause *pkgerrors.Error) error {
	details, _ := json.Marshal(map[string]any{
		"error": cause.Error(),
	})
	if _, err := o.alerts.Raise(ctx, alerts.RaiseInput{
		IntentID:             &intent.ID,
		Gateway:              outcome.Gateway,
		GatewayTransactionID: outcome.TransactionID,
		Reason:               enums.AlertReasonSettlementError,
		Details:              details,
	}); err != nil {
		return err
	}
	o.metrics.IncSettlement(outcome.Gateway.String(), "error")
	o.metrics.IncAlert(outcome.Gateway.String(), enums.AlertReasonSettlementError.String())
	return nil
}

// buildSaleRows turns the frozen snapshot plus the computed split into one
// sale row per line. Per-seller amounts are distributed across that seller's
// lines proportionally, with the final line absorbing the rounding remainder
// so the rows sum exactly to the seller's allocation.
func buildSaleRows(intent *models.PaymentIntent, outcome *gateway.PaymentOutcome, result *split.Result) []models.Sale {
	lineAmounts := distributeSellerAmounts(intent.Lines, result)

	rows := make([]models.Sale, 0, len(intent.Lines))
	for i, line := range intent.Lines {
		rows = append(rows, models.Sale{
			ProductID:            line.ProductID,
			BuyerID:              intent.BuyerID,
			SellerID:             line.SellerID,
			Qty:                  line.Qty,
			TotalCents:           line.TotalCents,
			CommissionPercent:    intent.CommissionPercent,
			SellerAmountCents:    lineAmounts[i],
			Gateway:              outcome.Gateway,
			GatewayTransactionID: outcome.TransactionID,
			GatewayStatus:        outcome.Status.String(),
			PayoutStatus:         enums.PayoutStatusPending,
		})
	}
	return rows
}

func distributeSellerAmounts(lines []models.PaymentIntentLine, result *split.Result) []int64 {
	type sellerState struct {
		revenue   int64
		remaining int64
		lastIndex int
	}
	states := make(map[uuid.UUID]*sellerState, len(result.Sellers))
	for _, allocation := range result.Sellers {
		states[allocation.SellerID] = &sellerState{remaining: allocation.AmountCents}
	}
	for i, line := range lines {
		if state, ok := states[line.SellerID]; ok {
			state.revenue += line.TotalCents
			state.lastIndex = i
		}
	}

	amounts := make([]int64, len(lines))
	for i, line := range lines {
		state, ok := states[line.SellerID]
		if !ok || state.revenue == 0 {
			continue
		}
		if i == state.lastIndex {
			amounts[i] = state.remaining
			continue
		}
		share := decimal.NewFromInt(state.remaining).
			Mul(decimal.NewFromInt(line.TotalCents)).
			Div(decimal.NewFromInt(state.revenue)).
			Round(0).IntPart()
		amounts[i] = share
		state.remaining -= share
		state.revenue -= line.TotalCents
	}
	return amounts
}
