package mercadopagogw

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
	"github.com/viniciusprado/bazarlivre-backend/pkg/mercadopago"
)

// PreferenceClient is the slice of the Mercado Pago API the adapter needs.
type PreferenceClient interface {
	CreatePreference(ctx context.Context, req mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

// Adapter drives Mercado Pago hosted checkout. Notifications carry only a
// payment id, so NormalizeCallback polls the payments API for the real
// status before producing an outcome.
type Adapter struct {
	client     PreferenceClient
	successURL string
	failureURL string
	logger     *logger.Logger
}

func NewAdapter(client PreferenceClient, successURL, failureURL string, logg *logger.Logger) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("mercadopago client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Adapter{client: client, successURL: successURL, failureURL: failureURL, logger: logg}, nil
}

func (a *Adapter) Name() enums.Gateway {
	return enums.GatewayMercadoPago
}

// CreatePayment opens a checkout preference. The intent id travels in
// external_reference; the later payment echoes it back so callbacks resolve
// to an intent even though the preference id and payment id differ.
func (a *Adapter) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	items := make([]mercadopago.PreferenceItem, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, mercadopago.PreferenceItem{
			ID:         line.ProductID.String(),
			Title:      line.ProductID.String(),
			Quantity:   line.Qty,
			UnitPrice:  centsToUnits(line.UnitPriceCents),
			CurrencyID: req.Currency.String(),
		})
	}

	prefReq := mercadopago.PreferenceRequest{
		Items:             items,
		ExternalReference: req.IntentID.String(),
	}
	success := req.ReturnURL
	if success == "" {
		success = a.successURL
	}
	failure := req.CancelURL
	if failure == "" {
		failure = a.failureURL
	}
	if success != "" || failure != "" {
		prefReq.BackURLs = &mercadopago.BackURLs{Success: success, Failure: failure}
	}

	pref, err := a.client.CreatePreference(ctx, prefReq)
	if err != nil {
		return nil, fmt.Errorf("mercadopago create preference: %w", err)
	}

	approvalURL := pref.InitPoint
	if approvalURL == "" {
		approvalURL = pref.SandboxInitPoint
	}
	return &gateway.CreatePaymentResult{GatewayRef: pref.ID, ApprovalURL: approvalURL}, nil
}

// notification is the IPN/webhook body Mercado Pago posts. Only payment
// notifications are actionable.
type notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

// NormalizeCallback resolves a payment notification into an outcome by
// fetching the payment it references. Non-payment notifications yield a nil
// outcome so the webhook can acknowledge them without settling anything.
func (a *Adapter) NormalizeCallback(ctx context.Context, payload []byte) (*gateway.PaymentOutcome, error) {
	var note notification
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode mercadopago notification")
	}
	if note.Type != "payment" {
		return nil, nil
	}
	paymentID := note.Data.ID.String()
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mercadopago payment notification missing data.id")
	}

	payment, err := a.client.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("mercadopago fetch payment %s: %w", paymentID, err)
	}

	intentID, err := uuid.Parse(payment.ExternalReference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnreconciledCharge, err,
			fmt.Sprintf("mercadopago payment %d has no intent reference", payment.ID))
	}

	raw, _ := json.Marshal(payment)
	return &gateway.PaymentOutcome{
		Gateway:       enums.GatewayMercadoPago,
		IntentID:      intentID,
		TransactionID: strconv.FormatInt(payment.ID, 10),
		Status:        normalizeStatus(payment.Status),
		AmountCents:   unitsToCents(payment.TransactionAmount),
		Raw:           raw,
	}, nil
}

// normalizeStatus maps Mercado Pago payment statuses onto the canonical set.
// authorized means reserved-not-captured and therefore stays pending.
func normalizeStatus(status string) enums.OutcomeStatus {
	switch strings.ToLower(status) {
	case "approved":
		return enums.OutcomeApproved
	case "rejected":
		return enums.OutcomeFailed
	case "cancelled", "refunded", "charged_back":
		return enums.OutcomeCancelled
	default:
		// pending, in_process, authorized, in_mediation
		return enums.OutcomePending
	}
}

func centsToUnits(cents int64) float64 {
	units, _ := decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).Float64()
	return units
}

func unitsToCents(units float64) int64 {
	return decimal.NewFromFloat(units).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
