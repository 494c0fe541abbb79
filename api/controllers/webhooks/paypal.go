package webhooks

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/viniciusprado/bazarlivre-backend/api/responses"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/settlement"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

type paypalVerifier interface {
	VerifyWebhook(ctx context.Context, r *http.Request, webhookID string) (bool, error)
}

// PayPalWebhook receives capture lifecycle events. Verification goes through
// PayPal's verify-webhook-signature API, so the request body is restored
// before the call and the raw payload is what the adapter normalizes.
func PayPalWebhook(adapter gateway.Adapter, orchestrator settlement.Orchestrator, verifier paypalVerifier, webhookID string, guard idempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if adapter == nil || orchestrator == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal webhook unavailable"))
			return
		}
		if verifier == nil || webhookID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal webhook verification unconfigured"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(payload))

		verified, err := verifier.VerifyWebhook(ctx, r, webhookID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify signature"))
			return
		}
		if !verified {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "paypal signature rejected"))
			return
		}

		outcome, err := adapter.NormalizeCallback(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		eventID := fmt.Sprintf("%s:%s", outcome.TransactionID, outcome.Status)
		alreadyProcessed, err := guard.CheckAndMark(ctx, eventID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			responses.WriteSuccess(w, nil)
			return
		}

		if err := orchestrator.Settle(ctx, outcome); err != nil {
			_ = guard.Delete(ctx, eventID)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paypal capture %s processed", outcome.TransactionID))
		}
		responses.WriteSuccess(w, nil)
	}
}
