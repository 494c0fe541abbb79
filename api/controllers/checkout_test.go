package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/viniciusprado/bazarlivre-backend/internal/checkout"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
)

type stubCheckoutService struct {
	result *checkoutsvc.Result
	err    error

	gotGateway enums.Gateway
	gotInput   checkoutsvc.Input
}

func (s *stubCheckoutService) Checkout(ctx context.Context, gw enums.Gateway, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	s.gotGateway = gw
	s.gotInput = input
	return s.result, s.err
}

func newCheckoutRequest(t *testing.T, gw, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/"+gw, strings.NewReader(body))
	rc := chi.NewRouteContext()
	rc.URLParams.Add("gateway", gw)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCheckoutSuccess(t *testing.T) {
	t.Parallel()

	intentID := uuid.New()
	buyerID := uuid.New()
	productID := uuid.New()
	svc := &stubCheckoutService{
		result: &checkoutsvc.Result{
			IntentID:          intentID,
			Gateway:           "stripe",
			GatewayRef:        "pi_123",
			ClientSecret:      "pi_123_secret",
			TotalCents:        3000,
			Currency:          "BRL",
			CommissionPercent: "10",
		},
	}
	handler := Checkout(svc, nil)

	body := `{"buyer_id":"` + buyerID.String() + `","lines":[{"product_id":"` + productID.String() + `","qty":2,"unit_price_cents":1500}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newCheckoutRequest(t, "stripe", body))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, enums.GatewayStripe, svc.gotGateway)
	require.Equal(t, buyerID, svc.gotInput.BuyerID)
	require.Len(t, svc.gotInput.Lines, 1)
	require.Equal(t, int64(1500), svc.gotInput.Lines[0].UnitPriceCents)

	var envelope struct {
		Data checkoutsvc.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, intentID, envelope.Data.IntentID)
	require.Equal(t, "pi_123_secret", envelope.Data.ClientSecret)
}

func TestCheckoutUnknownGateway(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newCheckoutRequest(t, "sofort", `{}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, svc.gotGateway)
}

func TestCheckoutInvalidBody(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	handler := Checkout(svc, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newCheckoutRequest(t, "stripe", `{"buyer_id":"`+uuid.NewString()+`","lines":[]}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutStaleCartDetails(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	current := int64(1800)
	svc := &stubCheckoutService{
		err: pkgerrors.New(pkgerrors.CodeStaleCart, "cart prices changed").WithDetails([]checkoutsvc.LineIssue{
			{
				ProductID:      productID,
				Reason:         "price_changed",
				CurrentCents:   &current,
				RequestedCents: 1500,
				RequestedQty:   1,
			},
		}),
	}
	handler := Checkout(svc, nil)

	body := `{"buyer_id":"` + uuid.NewString() + `","lines":[{"product_id":"` + productID.String() + `","qty":1,"unit_price_cents":1500}]}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, newCheckoutRequest(t, "stripe", body))

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "price_changed")
	require.Contains(t, rec.Body.String(), productID.String())
}
