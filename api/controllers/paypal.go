package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viniciusprado/bazarlivre-backend/api/responses"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/settlement"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

type captureResponse struct {
	IntentID      string `json:"intent_id"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// CapturePayPalOrder finalizes an approved PayPal order and settles the
// resulting outcome in the same request. PayPal is synchronous: the buyer is
// waiting on this response.
func CapturePayPalOrder(capturer gateway.Capturer, orchestrator settlement.Orchestrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if capturer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal gateway unavailable"))
			return
		}
		if orchestrator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "settlement unavailable"))
			return
		}

		orderID := chi.URLParam(r, "orderID")
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		outcome, err := capturer.Capture(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := orchestrator.Settle(r.Context(), outcome); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, captureResponse{
			IntentID:      outcome.IntentID.String(),
			TransactionID: outcome.TransactionID,
			Status:        outcome.Status.String(),
		})
	}
}
