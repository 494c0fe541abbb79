package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	retry "github.com/sethvargo/go-retry"

	"github.com/viniciusprado/bazarlivre-backend/internal/commission"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/intents"
	"github.com/viniciusprado/bazarlivre-backend/internal/products"
	"github.com/viniciusprado/bazarlivre-backend/pkg/config"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
	"github.com/viniciusprado/bazarlivre-backend/pkg/metrics"
)

// LineInput is one requested cart line. UnitPriceCents is the price the
// buyer saw; it is compared against the live catalog, never trusted.
type LineInput struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	Qty            int       `json:"qty" validate:"required,gt=0"`
	UnitPriceCents int64     `json:"unit_price_cents" validate:"required,gt=0"`
}

// Input is a checkout request for one gateway.
type Input struct {
	BuyerID   uuid.UUID   `json:"buyer_id" validate:"required"`
	Currency  string      `json:"currency"`
	Lines     []LineInput `json:"lines" validate:"required,min=1,dive"`
	ReturnURL string      `json:"return_url" validate:"omitempty,url"`
	CancelURL string      `json:"cancel_url" validate:"omitempty,url"`
}

// Result is what the client needs to continue the payment flow.
type Result struct {
	IntentID          uuid.UUID `json:"intent_id"`
	Gateway           string    `json:"gateway"`
	GatewayRef        string    `json:"gateway_ref"`
	ApprovalURL       string    `json:"approval_url,omitempty"`
	ClientSecret      string    `json:"client_secret,omitempty"`
	TotalCents        int64     `json:"total_cents"`
	Currency          string    `json:"currency"`
	CommissionPercent string    `json:"commission_percent"`
}

// LineIssue describes why one requested line was rejected.
type LineIssue struct {
	ProductID      uuid.UUID `json:"product_id"`
	Reason         string    `json:"reason"`
	CurrentCents   *int64    `json:"current_unit_price_cents,omitempty"`
	AvailableQty   *int      `json:"available_qty,omitempty"`
	RequestedCents int64     `json:"requested_unit_price_cents,omitempty"`
	RequestedQty   int       `json:"requested_qty,omitempty"`
}

const (
	issueProductUnavailable = "product_unavailable"
	issuePriceChanged       = "price_changed"
	issueRecipientMissing   = "payout_recipient_missing"
	issueInsufficientStock  = "insufficient_stock"
)

// Service validates a cart against the live catalog, creates the provider
// payment, and freezes the intent snapshot once the provider accepts it.
type Service interface {
	Checkout(ctx context.Context, gw enums.Gateway, input Input) (*Result, error)
}

type service struct {
	registry    *gateway.Registry
	productRepo products.Repository
	intentRepo  intents.Repository
	policy      commission.Policy
	cfg         config.GatewayConfig
	metrics     *metrics.SettlementMetrics
	logger      *logger.Logger
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	registry *gateway.Registry,
	productRepo products.Repository,
	intentRepo intents.Repository,
	policy commission.Policy,
	cfg config.GatewayConfig,
	settlementMetrics *metrics.SettlementMetrics,
	logg *logger.Logger,
) (Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("gateway registry required")
	}
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if intentRepo == nil {
		return nil, fmt.Errorf("intent repository required")
	}
	if policy == nil {
		return nil, fmt.Errorf("commission policy required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		registry:    registry,
		productRepo: productRepo,
		intentRepo:  intentRepo,
		policy:      policy,
		cfg:         cfg,
		metrics:     settlementMetrics,
		logger:      logg,
		now:         time.Now,
	}, nil
}

func (s *service) Checkout(ctx context.Context, gw enums.Gateway, input Input) (*Result, error) {
	if !gw.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown gateway")
	}
	adapter, err := s.registry.Lookup(gw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "gateway not available")
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line required")
	}

	currency := enums.CurrencyBRL
	if input.Currency != "" {
		currency, err = enums.ParseCurrency(input.Currency)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
	}

	ctx = s.logger.WithBuyerID(ctx, input.BuyerID.String())
	ctx = s.logger.WithGateway(ctx, gw.String())

	lines, err := s.buildLines(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	rate, err := s.policy.ResolveActiveRate(ctx, s.now())
	if err != nil {
		return nil, err
	}

	var total int64
	for _, line := range lines {
		total += line.TotalCents
	}

	intentID := uuid.New()
	ctx = s.logger.WithIntentID(ctx, intentID.String())

	created, err := s.createPayment(ctx, adapter, gateway.CreatePaymentRequest{
		IntentID:   intentID,
		BuyerID:    input.BuyerID,
		Currency:   currency,
		TotalCents: total,
		Lines:      lines,
		ReturnURL:  input.ReturnURL,
		CancelURL:  input.CancelURL,
	})
	if err != nil {
		s.metrics.IncCreateFailure(gw.String())
		s.logger.Error(ctx, "gateway payment creation failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentSetupFailed, err, "create gateway payment")
	}

	intent := &models.PaymentIntent{
		ID:                intentID,
		Gateway:           gw,
		GatewayRef:        created.GatewayRef,
		BuyerID:           input.BuyerID,
		Status:            enums.IntentStatusAwaiting,
		CommissionPercent: rate,
		TotalCents:        total,
		Currency:          currency,
		Lines:             lines,
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		// The provider charge exists but we lost its snapshot. The webhook
		// for this ref will raise an unknown-intent alert for reconciliation.
		s.logger.Error(ctx, fmt.Sprintf("persist intent for gateway ref %s", created.GatewayRef), err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment intent")
	}

	s.logger.Info(ctx, "payment intent created")
	return &Result{
		IntentID:          intentID,
		Gateway:           gw.String(),
		GatewayRef:        created.GatewayRef,
		ApprovalURL:       created.ApprovalURL,
		ClientSecret:      created.ClientSecret,
		TotalCents:        total,
		Currency:          currency.String(),
		CommissionPercent: rate.StringFixed(2),
	}, nil
}

// buildLines validates every requested line against the live catalog and
// freezes the snapshot rows. All offending lines are reported together so
// the client can repair the cart in one round trip.
func (s *service) buildLines(ctx context.Context, requested []LineInput) ([]models.PaymentIntentLine, error) {
	ids := make([]uuid.UUID, 0, len(requested))
	seen := make(map[uuid.UUID]int, len(requested))
	for _, line := range requested {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required on every line")
		}
		if line.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if _, dup := seen[line.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product line")
		}
		seen[line.ProductID] = line.Qty
		ids = append(ids, line.ProductID)
	}

	catalog, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var (
		stale     []LineIssue
		recipient []LineIssue
		stock     []LineIssue
		lines     = make([]models.PaymentIntentLine, 0, len(requested))
	)
	for _, line := range requested {
		product, ok := catalog[line.ProductID]
		if !ok || !product.IsActive {
			stale = append(stale, LineIssue{ProductID: line.ProductID, Reason: issueProductUnavailable, RequestedQty: line.Qty})
			continue
		}
		if product.PriceCents != line.UnitPriceCents {
			current := product.PriceCents
			stale = append(stale, LineIssue{
				ProductID:      line.ProductID,
				Reason:         issuePriceChanged,
				CurrentCents:   &current,
				RequestedCents: line.UnitPriceCents,
			})
			continue
		}
		if product.PayoutRecipientID == nil || *product.PayoutRecipientID == "" {
			recipient = append(recipient, LineIssue{ProductID: line.ProductID, Reason: issueRecipientMissing})
			continue
		}
		if product.QuantityAvailable < line.Qty {
			available := product.QuantityAvailable
			stock = append(stock, LineIssue{
				ProductID:    line.ProductID,
				Reason:       issueInsufficientStock,
				AvailableQty: &available,
				RequestedQty: line.Qty,
			})
			continue
		}

		lines = append(lines, models.PaymentIntentLine{
			ProductID:         product.ID,
			SellerID:          product.SellerID,
			PayoutRecipientID: *product.PayoutRecipientID,
			Qty:               line.Qty,
			UnitPriceCents:    product.PriceCents,
			TotalCents:        product.PriceCents * int64(line.Qty),
		})
	}

	// Recipient gaps outrank staleness: the client cannot repair them, the
	// seller has to.
	switch {
	case len(recipient) > 0:
		return nil, pkgerrors.New(pkgerrors.CodeRecipientMissing, "seller cannot receive payouts").
			WithDetails(append(recipient, append(stale, stock...)...))
	case len(stale) > 0:
		return nil, pkgerrors.New(pkgerrors.CodeStaleCart, "cart no longer matches the catalog").
			WithDetails(append(stale, stock...))
	case len(stock) > 0:
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(stock)
	}
	return lines, nil
}

// createPayment calls the provider with bounded exponential retries. Only
// the provider call is retried; validation and persistence never are.
func (s *service) createPayment(ctx context.Context, adapter gateway.Adapter, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	baseDelay := s.cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	attemptTimeout := s.cfg.RequestTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = 5 * time.Second
	}

	backoff := retry.WithMaxRetries(s.cfg.MaxRetries, retry.NewExponential(baseDelay))

	var result *gateway.CreatePaymentResult
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		created, err := adapter.CreatePayment(attemptCtx, req)
		if err != nil {
			return retry.RetryableError(err)
		}
		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
