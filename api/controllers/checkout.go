package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viniciusprado/bazarlivre-backend/api/responses"
	"github.com/viniciusprado/bazarlivre-backend/api/validators"
	checkoutsvc "github.com/viniciusprado/bazarlivre-backend/internal/checkout"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

// Checkout creates a gateway payment for the submitted cart lines. The
// gateway is part of the path so each provider's capabilities stay explicit.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		gw, err := enums.ParseGateway(chi.URLParam(r, "gateway"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown gateway"))
			return
		}

		var payload checkoutsvc.Input
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), gw, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
