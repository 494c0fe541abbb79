package paypalgw

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/plutov/paypal/v4"
	"github.com/stretchr/testify/require"

	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

type fakeOrderClient struct {
	lastIntent     string
	lastUnits      []paypal.PurchaseUnitRequest
	lastAppContext *paypal.ApplicationContext
	order          *paypal.Order
	captureResp    *paypal.CaptureOrderResponse
	err            error
}

func (f *fakeOrderClient) CreateOrder(_ context.Context, intent string, units []paypal.PurchaseUnitRequest, _ *paypal.CreateOrderPayer, appContext *paypal.ApplicationContext) (*paypal.Order, error) {
	f.lastIntent = intent
	f.lastUnits = units
	f.lastAppContext = appContext
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

func (f *fakeOrderClient) CaptureOrder(_ context.Context, _ string, _ paypal.CaptureOrderRequest) (*paypal.CaptureOrderResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.captureResp, nil
}

func newTestAdapter(t *testing.T, orders OrderClient) *Adapter {
	t.Helper()

	adapter, err := NewAdapter(orders, "https://shop.test/return", "https://shop.test/cancel",
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return adapter
}

func TestCreatePaymentOpensCaptureOrder(t *testing.T) {
	client := &fakeOrderClient{
		order: &paypal.Order{
			ID: "ORDER-1",
			Links: []paypal.Link{
				{Rel: "self", Href: "https://api.sandbox.paypal.com/v2/checkout/orders/ORDER-1"},
				{Rel: "approve", Href: "https://www.sandbox.paypal.com/checkoutnow?token=ORDER-1"},
			},
		},
	}
	adapter := newTestAdapter(t, client)

	intentID := uuid.New()
	result, err := adapter.CreatePayment(context.Background(), gateway.CreatePaymentRequest{
		IntentID:   intentID,
		Currency:   enums.CurrencyBRL,
		TotalCents: 1550,
	})
	require.NoError(t, err)
	require.Equal(t, "ORDER-1", result.GatewayRef)
	require.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=ORDER-1", result.ApprovalURL)

	require.Equal(t, paypal.OrderIntentCapture, client.lastIntent)
	require.Len(t, client.lastUnits, 1)
	require.Equal(t, intentID.String(), client.lastUnits[0].ReferenceID)
	require.Equal(t, intentID.String(), client.lastUnits[0].CustomID)
	require.Equal(t, "15.50", client.lastUnits[0].Amount.Value)
	require.Equal(t, "BRL", client.lastUnits[0].Amount.Currency)
	require.Equal(t, "https://shop.test/return", client.lastAppContext.ReturnURL)
}

func TestCaptureCompletedOrder(t *testing.T) {
	intentID := uuid.New()
	client := &fakeOrderClient{
		captureResp: &paypal.CaptureOrderResponse{
			ID:     "ORDER-1",
			Status: "COMPLETED",
			PurchaseUnits: []paypal.CapturedPurchaseUnit{
				{
					Payments: &paypal.CapturedPayments{
						Captures: []paypal.CaptureAmount{
							{
								ID:       "CAP-9",
								CustomID: intentID.String(),
								Amount:   &paypal.PurchaseUnitAmount{Currency: "BRL", Value: "15.50"},
							},
						},
					},
				},
			},
		},
	}
	adapter := newTestAdapter(t, client)

	outcome, err := adapter.Capture(context.Background(), "ORDER-1")
	require.NoError(t, err)
	require.Equal(t, enums.GatewayPayPal, outcome.Gateway)
	require.Equal(t, intentID, outcome.IntentID)
	require.Equal(t, "CAP-9", outcome.TransactionID)
	require.Equal(t, enums.OutcomeApproved, outcome.Status)
	require.Equal(t, int64(1550), outcome.AmountCents)
}

func TestCaptureWithoutCaptureRecord(t *testing.T) {
	client := &fakeOrderClient{
		captureResp: &paypal.CaptureOrderResponse{ID: "ORDER-1", Status: "COMPLETED"},
	}
	adapter := newTestAdapter(t, client)

	_, err := adapter.Capture(context.Background(), "ORDER-1")
	require.Error(t, err)
}

func TestCaptureOrderError(t *testing.T) {
	client := &fakeOrderClient{err: errors.New("order already captured")}
	adapter := newTestAdapter(t, client)

	_, err := adapter.Capture(context.Background(), "ORDER-1")
	require.Error(t, err)
}

func TestNormalizeCallbackEvents(t *testing.T) {
	intentID := uuid.New()
	cases := []struct {
		name           string
		eventType      string
		resourceStatus string
		want           enums.OutcomeStatus
	}{
		{"capture completed", "PAYMENT.CAPTURE.COMPLETED", "COMPLETED", enums.OutcomeApproved},
		{"capture denied", "PAYMENT.CAPTURE.DENIED", "DECLINED", enums.OutcomeFailed},
		{"order voided", "CHECKOUT.ORDER.VOIDED", "VOIDED", enums.OutcomeCancelled},
		{"order approved stays pending", "CHECKOUT.ORDER.APPROVED", "APPROVED", enums.OutcomePending},
	}

	adapter := newTestAdapter(t, &fakeOrderClient{})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := json.Marshal(map[string]any{
				"event_type": tc.eventType,
				"resource": map[string]any{
					"id":        "CAP-9",
					"status":    tc.resourceStatus,
					"custom_id": intentID.String(),
				},
			})
			require.NoError(t, err)

			outcome, err := adapter.NormalizeCallback(context.Background(), payload)
			require.NoError(t, err)
			require.Equal(t, intentID, outcome.IntentID)
			require.Equal(t, "CAP-9", outcome.TransactionID)
			require.Equal(t, tc.want, outcome.Status)
		})
	}
}

func TestNormalizeCallbackWithoutIntentReference(t *testing.T) {
	adapter := newTestAdapter(t, &fakeOrderClient{})

	payload := []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-9","status":"COMPLETED"}}`)
	_, err := adapter.NormalizeCallback(context.Background(), payload)
	require.Error(t, err)
}
