package checkout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/intents"
	"github.com/viniciusprado/bazarlivre-backend/internal/products"
	"github.com/viniciusprado/bazarlivre-backend/pkg/config"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

type fakeAdapter struct {
	name        enums.Gateway
	lastRequest gateway.CreatePaymentRequest
	calls       int
	failures    int
	result      *gateway.CreatePaymentResult
}

func (f *fakeAdapter) Name() enums.Gateway { return f.name }

func (f *fakeAdapter) CreatePayment(_ context.Context, req gateway.CreatePaymentRequest) (*gateway.CreatePaymentResult, error) {
	f.calls++
	f.lastRequest = req
	if f.calls <= f.failures {
		return nil, errors.New("gateway timeout")
	}
	return f.result, nil
}

func (f *fakeAdapter) NormalizeCallback(context.Context, []byte) (*gateway.PaymentOutcome, error) {
	return nil, errors.New("not implemented")
}

type fakeProductRepo struct {
	catalog map[uuid.UUID]models.Product
	err     error
}

func (f *fakeProductRepo) WithTx(*gorm.DB) products.Repository { return f }

func (f *fakeProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	if product, ok := f.catalog[id]; ok {
		return &product, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
}

func (f *fakeProductRepo) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := make(map[uuid.UUID]models.Product)
	for _, id := range ids {
		if product, ok := f.catalog[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

type fakeIntentRepo struct {
	created []*models.PaymentIntent
	err     error
}

func (f *fakeIntentRepo) WithTx(*gorm.DB) intents.Repository { return f }

func (f *fakeIntentRepo) Create(_ context.Context, intent *models.PaymentIntent) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, intent)
	return nil
}

func (f *fakeIntentRepo) FindByID(context.Context, uuid.UUID) (*models.PaymentIntent, error) {
	return nil, nil
}

func (f *fakeIntentRepo) FindByGatewayRef(context.Context, enums.Gateway, string) (*models.PaymentIntent, error) {
	return nil, nil
}

func (f *fakeIntentRepo) UpdateStatus(context.Context, uuid.UUID, enums.IntentStatus) error {
	return nil
}

type fakePolicy struct {
	rate decimal.Decimal
	err  error
}

func (f *fakePolicy) ResolveActiveRate(context.Context, time.Time) (decimal.Decimal, error) {
	if f.err != nil {
		return decimal.Decimal{}, f.err
	}
	return f.rate, nil
}

func recipient(id string) *string { return &id }

func testService(t *testing.T, adapter gateway.Adapter, productRepo products.Repository, intentRepo intents.Repository) Service {
	t.Helper()

	svc, err := NewService(
		gateway.NewRegistry(adapter),
		productRepo,
		intentRepo,
		&fakePolicy{rate: decimal.NewFromInt(10)},
		config.GatewayConfig{RequestTimeout: time.Second, MaxRetries: 2, RetryBaseDelay: time.Millisecond},
		nil,
		logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	)
	require.NoError(t, err)
	return svc
}

func TestCheckoutFreezesSnapshotAfterGatewayAccepts(t *testing.T) {
	productID := uuid.New()
	sellerID := uuid.New()
	adapter := &fakeAdapter{
		name:   enums.GatewayStripe,
		result: &gateway.CreatePaymentResult{GatewayRef: "pi_123", ClientSecret: "secret"},
	}
	intentRepo := &fakeIntentRepo{}
	svc := testService(t, adapter, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {
				ID:                productID,
				SellerID:          sellerID,
				PriceCents:        1000,
				QuantityAvailable: 5,
				PayoutRecipientID: recipient("acct_1"),
				IsActive:          true,
			},
		},
	}, intentRepo)

	result, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 2, UnitPriceCents: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, "pi_123", result.GatewayRef)
	require.Equal(t, int64(2000), result.TotalCents)
	require.Equal(t, "10.00", result.CommissionPercent)

	require.Len(t, intentRepo.created, 1)
	intent := intentRepo.created[0]
	require.Equal(t, result.IntentID, intent.ID)
	require.Equal(t, enums.IntentStatusAwaiting, intent.Status)
	require.Equal(t, "pi_123", intent.GatewayRef)
	require.True(t, intent.CommissionPercent.Equal(decimal.NewFromInt(10)))
	require.Len(t, intent.Lines, 1)
	require.Equal(t, "acct_1", intent.Lines[0].PayoutRecipientID)
	require.Equal(t, int64(2000), intent.Lines[0].TotalCents)

	// Snapshot travels to the provider with our intent id attached.
	require.Equal(t, intent.ID, adapter.lastRequest.IntentID)
	require.Equal(t, int64(2000), adapter.lastRequest.TotalCents)
}

func TestCheckoutRejectsStaleCartPrice(t *testing.T) {
	productID := uuid.New()
	adapter := &fakeAdapter{name: enums.GatewayStripe, result: &gateway.CreatePaymentResult{GatewayRef: "pi_1"}}
	intentRepo := &fakeIntentRepo{}
	svc := testService(t, adapter, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {
				ID:                productID,
				SellerID:          uuid.New(),
				PriceCents:        1200,
				QuantityAvailable: 5,
				PayoutRecipientID: recipient("acct_1"),
				IsActive:          true,
			},
		},
	}, intentRepo)

	_, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 1, UnitPriceCents: 1000}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStaleCart, typed.Code())

	issues, ok := typed.Details().([]LineIssue)
	require.True(t, ok)
	require.Len(t, issues, 1)
	require.Equal(t, issuePriceChanged, issues[0].Reason)
	require.Equal(t, int64(1200), *issues[0].CurrentCents)

	require.Zero(t, adapter.calls)
	require.Empty(t, intentRepo.created)
}

func TestCheckoutRejectsInactiveProduct(t *testing.T) {
	productID := uuid.New()
	svc := testService(t, &fakeAdapter{name: enums.GatewayStripe}, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {ID: productID, PriceCents: 1000, IsActive: false, PayoutRecipientID: recipient("acct_1")},
		},
	}, &fakeIntentRepo{})

	_, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 1, UnitPriceCents: 1000}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStaleCart, typed.Code())
}

func TestCheckoutRejectsMissingRecipient(t *testing.T) {
	productID := uuid.New()
	svc := testService(t, &fakeAdapter{name: enums.GatewayStripe}, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {
				ID:                productID,
				SellerID:          uuid.New(),
				PriceCents:        1000,
				QuantityAvailable: 5,
				IsActive:          true,
			},
		},
	}, &fakeIntentRepo{})

	_, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 1, UnitPriceCents: 1000}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeRecipientMissing, typed.Code())
}

func TestCheckoutRejectsInsufficientStockUpFront(t *testing.T) {
	productID := uuid.New()
	svc := testService(t, &fakeAdapter{name: enums.GatewayStripe}, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {
				ID:                productID,
				SellerID:          uuid.New(),
				PriceCents:        1000,
				QuantityAvailable: 1,
				PayoutRecipientID: recipient("acct_1"),
				IsActive:          true,
			},
		},
	}, &fakeIntentRepo{})

	_, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 3, UnitPriceCents: 1000}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
}

func TestCheckoutRetriesGatewayThenSucceeds(t *testing.T) {
	productID := uuid.New()
	adapter := &fakeAdapter{
		name:     enums.GatewayStripe,
		failures: 2,
		result:   &gateway.CreatePaymentResult{GatewayRef: "pi_retry"},
	}
	intentRepo := &fakeIntentRepo{}
	svc := testService(t, adapter, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {
				ID:                productID,
				SellerID:          uuid.New(),
				PriceCents:        1000,
				QuantityAvailable: 5,
				PayoutRecipientID: recipient("acct_1"),
				IsActive:          true,
			},
		},
	}, intentRepo)

	result, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 1, UnitPriceCents: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, "pi_retry", result.GatewayRef)
	require.Equal(t, 3, adapter.calls)
}

func TestCheckoutPersistsNothingWhenGatewayExhausted(t *testing.T) {
	productID := uuid.New()
	adapter := &fakeAdapter{name: enums.GatewayStripe, failures: 10}
	intentRepo := &fakeIntentRepo{}
	svc := testService(t, adapter, &fakeProductRepo{
		catalog: map[uuid.UUID]models.Product{
			productID: {
				ID:                productID,
				SellerID:          uuid.New(),
				PriceCents:        1000,
				QuantityAvailable: 5,
				PayoutRecipientID: recipient("acct_1"),
				IsActive:          true,
			},
		},
	}, intentRepo)

	_, err := svc.Checkout(context.Background(), enums.GatewayStripe, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: productID, Qty: 1, UnitPriceCents: 1000}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodePaymentSetupFailed, typed.Code())
	require.Empty(t, intentRepo.created)
}

func TestCheckoutUnknownGateway(t *testing.T) {
	svc := testService(t, &fakeAdapter{name: enums.GatewayStripe}, &fakeProductRepo{}, &fakeIntentRepo{})

	_, err := svc.Checkout(context.Background(), enums.GatewayPagarme, Input{
		BuyerID: uuid.New(),
		Lines:   []LineInput{{ProductID: uuid.New(), Qty: 1, UnitPriceCents: 1000}},
	})
	require.Error(t, err)
}
