package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
)

// PaymentOutcome is the canonical result every provider callback or poll is
// normalized into. It is the only payment vocabulary the settlement
// orchestrator understands.
type PaymentOutcome struct {
	Gateway enums.Gateway
	// IntentID is our intent identifier, echoed back through provider
	// metadata / external reference fields.
	IntentID uuid.UUID
	// TransactionID is the provider's identifier for the money movement and
	// the second component of the sale idempotency key.
	TransactionID string
	Status        enums.OutcomeStatus
	AmountCents   int64
	Raw           json.RawMessage
}

// CreatePaymentRequest is the provider-agnostic payment creation input. The
// lines are the already-validated frozen snapshot; adapters never re-price.
type CreatePaymentRequest struct {
	IntentID   uuid.UUID
	BuyerID    uuid.UUID
	Currency   enums.Currency
	TotalCents int64
	Lines      []models.PaymentIntentLine
	ReturnURL  string
	CancelURL  string
}

// CreatePaymentResult carries what the client needs to continue the flow.
type CreatePaymentResult struct {
	// GatewayRef is the provider identifier stored on the intent and matched
	// against later callbacks.
	GatewayRef string
	// ApprovalURL redirects the buyer for redirect-based providers; empty for
	// providers that confirm in-page.
	ApprovalURL string
	// ClientSecret is returned by providers that finalize client-side.
	ClientSecret string
}

// Adapter translates between one provider's wire format and the canonical
// contract. NormalizeCallback is the single place provider status quirks are
// absorbed; in particular authorized-but-not-captured states map to pending,
// never approved.
type Adapter interface {
	Name() enums.Gateway
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*CreatePaymentResult, error)
	NormalizeCallback(ctx context.Context, payload []byte) (*PaymentOutcome, error)
}

// Capturer is implemented by synchronous redirect-based providers that need
// an explicit capture step before a payment becomes final.
type Capturer interface {
	Capture(ctx context.Context, gatewayRef string) (*PaymentOutcome, error)
}

// Registry resolves adapters by gateway name.
type Registry struct {
	adapters map[enums.Gateway]Adapter
}

// NewRegistry indexes the provided adapters by name.
func NewRegistry(adapters ...Adapter) *Registry {
	index := make(map[enums.Gateway]Adapter, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		index[adapter.Name()] = adapter
	}
	return &Registry{adapters: index}
}

// Lookup returns the adapter for the gateway, or an error naming the gateway
// when it is known but not wired in this deployment.
func (r *Registry) Lookup(gw enums.Gateway) (Adapter, error) {
	adapter, ok := r.adapters[gw]
	if !ok {
		return nil, fmt.Errorf("gateway %s is not configured", gw)
	}
	return adapter, nil
}
