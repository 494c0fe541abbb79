package paypalgw

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"

	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

// OrderClient is the slice of the PayPal API the adapter needs.
type OrderClient interface {
	CreateOrder(ctx context.Context, intent string, purchaseUnits []paypal.PurchaseUnitRequest, payer *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string, captureOrderRequest paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error)
}

// Adapter drives the PayPal Orders API. PayPal is the synchronous exemplar:
// the buyer approves a redirect, then our capture endpoint finalizes the
// charge and the capture response itself is the settlement signal.
type Adapter struct {
	orders    OrderClient
	returnURL string
	cancelURL string
	logger    *logger.Logger
}

func NewAdapter(orders OrderClient, returnURL, cancelURL string, logg *logger.Logger) (*Adapter, error) {
	if orders == nil {
		return nil, fmt.Errorf("paypal order client is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Adapter{orders: orders, returnURL: returnURL, cancelURL: cancelURL, logger: logg}, nil
}

func (a *Adapter) Name() enums.Gateway {
	return enums.GatewayPayPal
}

// CreatePayment opens a CAPTURE-intent order. The purchase unit carries our
// intent id in both ReferenceID and CustomID so every later webhook and
// capture response can be correlated without a lookup table.
func (a *Adapter) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = a.returnURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = a.cancelURL
	}

	units := []paypal.PurchaseUnitRequest{
		{
			ReferenceID: req.IntentID.String(),
			CustomID:    req.IntentID.String(),
			Amount: &paypal.PurchaseUnitAmount{
				Currency: req.Currency.String(),
				Value:    formatCents(req.TotalCents),
			},
		},
	}

	order, err := a.orders.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, &paypal.ApplicationContext{
		ReturnURL: returnURL,
		CancelURL: cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("paypal create order: %w", err)
	}

	result := &gateway.CreatePaymentResult{GatewayRef: order.ID}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			result.ApprovalURL = link.Href
			break
		}
	}
	return result, nil
}

// Capture finalizes an approved order. Only a COMPLETED capture is treated
// as approved money movement; anything else stays pending for a later
// webhook or retry.
func (a *Adapter) Capture(ctx context.Context, gatewayRef string) (*gateway.PaymentOutcome, error) {
	resp, err := a.orders.CaptureOrder(ctx, gatewayRef, paypal.CaptureOrderRequest{})
	if err != nil {
		return nil, fmt.Errorf("paypal capture order %s: %w", gatewayRef, err)
	}

	capture, intentID, err := firstCapture(resp)
	if err != nil {
		return nil, err
	}

	outcome := &gateway.PaymentOutcome{
		Gateway:       enums.GatewayPayPal,
		IntentID:      intentID,
		TransactionID: capture.ID,
		Status:        normalizeOrderStatus(resp.Status),
	}
	if capture.Amount != nil {
		outcome.AmountCents = parseAmountCents(capture.Amount.Value)
	}
	if raw, marshalErr := json.Marshal(resp); marshalErr == nil {
		outcome.Raw = raw
	}
	return outcome, nil
}

// webhookEvent is the subset of PayPal webhook payloads we act on.
type webhookEvent struct {
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

// NormalizeCallback maps PayPal webhook events onto the canonical outcome.
// Order approval alone never settles; only a completed capture does.
func (a *Adapter) NormalizeCallback(ctx context.Context, payload []byte) (*gateway.PaymentOutcome, error) {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode paypal webhook")
	}
	if event.Resource.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal webhook missing resource id")
	}

	intentID, err := uuid.Parse(event.Resource.CustomID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse intent id from paypal webhook")
	}

	return &gateway.PaymentOutcome{
		Gateway:       enums.GatewayPayPal,
		IntentID:      intentID,
		TransactionID: event.Resource.ID,
		Status:        normalizeEvent(event.EventType, event.Resource.Status),
		Raw:           json.RawMessage(payload),
	}, nil
}

func normalizeEvent(eventType, resourceStatus string) enums.OutcomeStatus {
	switch eventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		return enums.OutcomeApproved
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		return enums.OutcomeFailed
	case "CHECKOUT.ORDER.VOIDED":
		return enums.OutcomeCancelled
	}
	// Approved-not-captured orders are still pending money movement.
	return normalizeOrderStatus(resourceStatus)
}

func normalizeOrderStatus(status string) enums.OutcomeStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return enums.OutcomeApproved
	case "VOIDED":
		return enums.OutcomeCancelled
	case "DECLINED":
		return enums.OutcomeFailed
	default:
		return enums.OutcomePending
	}
}

func firstCapture(resp *paypal.CaptureOrderResponse) (*paypal.CaptureAmount, uuid.UUID, error) {
	for _, unit := range resp.PurchaseUnits {
		if unit.Payments == nil || len(unit.Payments.Captures) == 0 {
			continue
		}
		capture := &unit.Payments.Captures[0]
		intentID, err := uuid.Parse(capture.CustomID)
		if err != nil {
			return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnreconciledCharge, err,
				fmt.Sprintf("paypal capture %s has no intent reference", capture.ID))
		}
		return capture, intentID, nil
	}
	return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnreconciledCharge,
		fmt.Sprintf("paypal order %s captured without a capture record", resp.ID))
}

func formatCents(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func parseAmountCents(value string) int64 {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0
	}
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
