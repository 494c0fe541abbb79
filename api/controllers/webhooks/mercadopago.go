package webhooks

import (
	"fmt"
	"io"
	"net/http"

	"github.com/viniciusprado/bazarlivre-backend/api/responses"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/settlement"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

// MercadoPagoWebhook receives payment notifications. The notification only
// names a payment id; the adapter polls the payments API for the real state,
// so the guard key includes the resolved status to let later transitions
// through.
func MercadoPagoWebhook(adapter gateway.Adapter, orchestrator settlement.Orchestrator, guard idempotencyGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if adapter == nil || orchestrator == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mercadopago webhook unavailable"))
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

		outcome, err := adapter.NormalizeCallback(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if outcome == nil {
			// Not a payment notification; acknowledge so the provider
			// stops resending it.
			responses.WriteSuccess(w, nil)
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
			logg.Info(ctx, fmt.Sprintf("mercadopago payment %s processed", outcome.TransactionID))
		}
		responses.WriteSuccess(w, nil)
	}
}
