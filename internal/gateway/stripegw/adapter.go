package stripegw

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	pkgstripe "github.com/viniciusprado/bazarlivre-backend/pkg/stripe"
)

const intentMetadataKey = "bazarlivre_intent_id"

// PaymentIntentClient exposes the subset of Stripe operations the adapter
// needs, so it can be tested without the wire.
type PaymentIntentClient interface {
	Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeClientWrapper struct{}

// NewPaymentIntentClient wraps the initialized Stripe client.
func NewPaymentIntentClient(api *pkgstripe.Client) PaymentIntentClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) Create(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params != nil {
		params.Context = ctx
	}
	return paymentintent.New(params)
}

// Adapter is the async webhook-based exemplar: Stripe pushes the final state;
// no explicit capture step exists on our side.
type Adapter struct {
	client PaymentIntentClient
}

// New builds the Stripe gateway adapter.
func New(client PaymentIntentClient) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe payment intent client required")
	}
	return &Adapter{client: client}, nil
}

// Name implements gateway.Adapter.
func (a *Adapter) Name() enums.Gateway {
	return enums.GatewayStripe
}

// CreatePayment implements gateway.Adapter.
func (a *Adapter) CreatePayment(ctx context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.TotalCents),
		Currency: stripe.String(string(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(intentMetadataKey, req.IntentID.String())
	params.AddMetadata("buyer_id", req.BuyerID.String())

	pi, err := a.client.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe payment intent")
	}
	return &gateway.CreatePaymentResult{
		GatewayRef:   pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

// NormalizeCallback implements gateway.Adapter. The payload is a verified
// stripe.Event body; signature verification happens at the HTTP boundary.
func (a *Adapter) NormalizeCallback(ctx context.Context, payload []byte) (*gateway.PaymentOutcome, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stripe event")
	}
	if event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data missing")
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode stripe payment intent")
	}

	intentID, err := intentIDFromMetadata(pi.Metadata)
	if err != nil {
		return nil, err
	}

	return &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intentID,
		TransactionID: pi.ID,
		Status:        normalizeEventType(event.Type, pi.Status),
		AmountCents:   pi.Amount,
		Raw:           json.RawMessage(payload),
	}, nil
}

func normalizeEventType(eventType stripe.EventType, status stripe.PaymentIntentStatus) enums.OutcomeStatus {
	switch eventType {
	case stripe.EventTypePaymentIntentSucceeded:
		return enums.OutcomeApproved
	case stripe.EventTypePaymentIntentPaymentFailed:
		return enums.OutcomeFailed
	case stripe.EventTypePaymentIntentCanceled:
		return enums.OutcomeCancelled
	}
	// Anything short of a captured charge stays pending. That includes
	// requires_capture: authorized money is not settleable money.
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.OutcomeApproved
	case stripe.PaymentIntentStatusCanceled:
		return enums.OutcomeCancelled
	default:
		return enums.OutcomePending
	}
}

func intentIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata[intentMetadataKey]
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event missing intent metadata")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse intent id from stripe metadata")
	}
	return id, nil
}
