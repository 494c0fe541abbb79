package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/viniciusprado/bazarlivre-backend/api/responses"
	"github.com/viniciusprado/bazarlivre-backend/internal/sales"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

// ListSalesByTransaction returns the settled lines for one gateway charge.
func ListSalesByTransaction(repo sales.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales repository unavailable"))
			return
		}

		gw, err := enums.ParseGateway(r.URL.Query().Get("gateway"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown gateway"))
			return
		}
		transactionID := r.URL.Query().Get("transaction_id")
		if transactionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "transaction_id required"))
			return
		}

		rows, err := repo.ListByTransaction(r.Context(), gw, transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// MarkSalePayoutPaid records that the seller's share left the platform.
func MarkSalePayoutPaid(repo sales.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales repository unavailable"))
			return
		}

		saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sale id"))
			return
		}

		if err := repo.MarkPayoutPaid(r.Context(), saleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"payout_status": enums.PayoutStatusPaid.String()})
	}
}
