package settlement

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/internal/alerts"
	"github.com/viniciusprado/bazarlivre-backend/internal/gateway"
	"github.com/viniciusprado/bazarlivre-backend/internal/intents"
	"github.com/viniciusprado/bazarlivre-backend/internal/inventory"
	"github.com/viniciusprado/bazarlivre-backend/internal/sales"
	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	"github.com/viniciusprado/bazarlivre-backend/pkg/enums"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type fixture struct {
	db           *gorm.DB
	orchestrator Orchestrator
	alerts       alerts.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:settlement_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Product{},
		&models.PaymentIntent{},
		&models.PaymentIntentLine{},
		&models.Sale{},
		&models.SettlementAlert{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	alertSvc, err := alerts.NewService(alerts.NewRepository(db), logg)
	require.NoError(t, err)

	orchestrator, err := New(
		testTxRunner{db: db},
		intents.NewRepository(db),
		inventory.NewRepository(db),
		sales.NewRepository(db),
		alertSvc,
		nil,
		logg,
	)
	require.NoError(t, err)

	return &fixture{db: db, orchestrator: orchestrator, alerts: alertSvc}
}

func (f *fixture) seedProduct(t *testing.T, sellerID uuid.UUID, priceCents int64, qty int) uuid.UUID {
	t.Helper()

	recipientID := "acct_" + sellerID.String()[:8]
	product := models.Product{
		ID:                uuid.New(),
		SellerID:          sellerID,
		Name:              "handmade bowl",
		PriceCents:        priceCents,
		QuantityAvailable: qty,
		PayoutRecipientID: &recipientID,
		IsActive:          true,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return product.ID
}

func (f *fixture) seedIntent(t *testing.T, gw enums.Gateway, ref string, lines []models.PaymentIntentLine) *models.PaymentIntent {
	t.Helper()

	var total int64
	for _, line := range lines {
		total += line.TotalCents
	}
	intent := &models.PaymentIntent{
		ID:                uuid.New(),
		Gateway:           gw,
		GatewayRef:        ref,
		BuyerID:           uuid.New(),
		Status:            enums.IntentStatusAwaiting,
		CommissionPercent: decimal.NewFromInt(10),
		TotalCents:        total,
		Currency:          enums.CurrencyBRL,
		Lines:             lines,
	}
	require.NoError(t, f.db.Create(intent).Error)
	return intent
}

func (f *fixture) availableQty(t *testing.T, productID uuid.UUID) int {
	t.Helper()

	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", productID).Error)
	return product.QuantityAvailable
}

func (f *fixture) intentStatus(t *testing.T, intentID uuid.UUID) enums.IntentStatus {
	t.Helper()

	var intent models.PaymentIntent
	require.NoError(t, f.db.First(&intent, "id = ?", intentID).Error)
	return intent.Status
}

func (f *fixture) salesFor(t *testing.T, gw enums.Gateway, txID string) []models.Sale {
	t.Helper()

	var rows []models.Sale
	require.NoError(t, f.db.Where("gateway = ? AND gateway_transaction_id = ?", gw, txID).Find(&rows).Error)
	return rows
}

func line(productID, sellerID uuid.UUID, qty int, unitCents int64) models.PaymentIntentLine {
	return models.PaymentIntentLine{
		ProductID:         productID,
		SellerID:          sellerID,
		PayoutRecipientID: "acct_" + sellerID.String()[:8],
		Qty:               qty,
		UnitPriceCents:    unitCents,
		TotalCents:        unitCents * int64(qty),
	}
}

func TestSettleApprovedRecordsSalesAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := f.seedProduct(t, sellerA, 1000, 5)
	productB := f.seedProduct(t, sellerB, 500, 3)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_ok", []models.PaymentIntentLine{
		line(productA, sellerA, 1, 1000),
		line(productB, sellerB, 1, 500),
	})

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_ok",
		Status:        enums.OutcomeApproved,
		AmountCents:   1500,
	})
	require.NoError(t, err)

	require.Equal(t, enums.IntentStatusSettled, f.intentStatus(t, intent.ID))
	require.Equal(t, 4, f.availableQty(t, productA))
	require.Equal(t, 2, f.availableQty(t, productB))

	rows := f.salesFor(t, enums.GatewayStripe, "pi_ok")
	require.Len(t, rows, 2)

	var sellerTotal int64
	for _, row := range rows {
		require.Equal(t, intent.BuyerID, row.BuyerID)
		require.Equal(t, enums.PayoutStatusPending, row.PayoutStatus)
		require.True(t, row.CommissionPercent.Equal(decimal.NewFromInt(10)))
		sellerTotal += row.SellerAmountCents
	}
	// 10% platform commission on 15.00 leaves 13.50 across sellers.
	require.Equal(t, int64(1350), sellerTotal)
}

func TestSettleSellerAmountsSumToAllocationAcrossLines(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	productA := f.seedProduct(t, seller, 333, 5)
	productB := f.seedProduct(t, seller, 777, 5)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_split", []models.PaymentIntentLine{
		line(productA, seller, 1, 333),
		line(productB, seller, 1, 777),
	})

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_split",
		Status:        enums.OutcomeApproved,
	})
	require.NoError(t, err)

	rows := f.salesFor(t, enums.GatewayStripe, "pi_split")
	require.Len(t, rows, 2)
	var sellerTotal int64
	for _, row := range rows {
		sellerTotal += row.SellerAmountCents
	}
	// 90% of 11.10, rounded half up once for the whole seller.
	require.Equal(t, int64(999), sellerTotal)
}

func TestSettlePendingIsNoOp(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	productID := f.seedProduct(t, seller, 1000, 5)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_pending", []models.PaymentIntentLine{
		line(productID, seller, 1, 1000),
	})

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_pending",
		Status:        enums.OutcomePending,
	})
	require.NoError(t, err)

	require.Equal(t, enums.IntentStatusAwaiting, f.intentStatus(t, intent.ID))
	require.Equal(t, 5, f.availableQty(t, productID))
	require.Empty(t, f.salesFor(t, enums.GatewayStripe, "pi_pending"))
}

func TestSettleFailedRejectsIntentWithoutTouchingStock(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	productID := f.seedProduct(t, seller, 1000, 5)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_fail", []models.PaymentIntentLine{
		line(productID, seller, 1, 1000),
	})

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_fail",
		Status:        enums.OutcomeFailed,
	})
	require.NoError(t, err)

	require.Equal(t, enums.IntentStatusRejected, f.intentStatus(t, intent.ID))
	require.Equal(t, 5, f.availableQty(t, productID))
	require.Empty(t, f.salesFor(t, enums.GatewayStripe, "pi_fail"))
}

func TestSettleRedeliveryAfterTerminalIsNoOp(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	productID := f.seedProduct(t, seller, 1000, 5)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_dup", []models.PaymentIntentLine{
		line(productID, seller, 2, 1000),
	})

	outcome := &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_dup",
		Status:        enums.OutcomeApproved,
	}
	require.NoError(t, f.orchestrator.Settle(context.Background(), outcome))
	require.NoError(t, f.orchestrator.Settle(context.Background(), outcome))

	require.Equal(t, 3, f.availableQty(t, productID))
	require.Len(t, f.salesFor(t, enums.GatewayStripe, "pi_dup"), 1)
}

func TestSettleExistingSalesShortCircuitsBeforeDecrement(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	productID := f.seedProduct(t, seller, 1000, 5)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_seen", []models.PaymentIntentLine{
		line(productID, seller, 1, 1000),
	})

	// A prior delivery settled the transaction but the intent update was
	// lost; the sale rows alone must stop a second settlement.
	require.NoError(t, f.db.Create(&models.Sale{
		ProductID:            productID,
		BuyerID:              intent.BuyerID,
		SellerID:             seller,
		Qty:                  1,
		TotalCents:           1000,
		CommissionPercent:    decimal.NewFromInt(10),
		SellerAmountCents:    900,
		Gateway:              enums.GatewayStripe,
		GatewayTransactionID: "pi_seen",
		GatewayStatus:        "approved",
		PayoutStatus:         enums.PayoutStatusPending,
	}).Error)

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_seen",
		Status:        enums.OutcomeApproved,
	})
	require.NoError(t, err)

	require.Equal(t, 5, f.availableQty(t, productID))
	require.Len(t, f.salesFor(t, enums.GatewayStripe, "pi_seen"), 1)
}

func TestSettleStockShortAbortsAllLines(t *testing.T) {
	f := newFixture(t)
	sellerA := uuid.New()
	sellerB := uuid.New()
	productA := f.seedProduct(t, sellerA, 1000, 5)
	productB := f.seedProduct(t, sellerB, 500, 0)
	intent := f.seedIntent(t, enums.GatewayStripe, "pi_short", []models.PaymentIntentLine{
		line(productA, sellerA, 1, 1000),
		line(productB, sellerB, 1, 500),
	})

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      intent.ID,
		TransactionID: "pi_short",
		Status:        enums.OutcomeApproved,
		AmountCents:   1500,
	})
	require.NoError(t, err)

	// The in-stock line's decrement rolled back with the rest.
	require.Equal(t, 5, f.availableQty(t, productA))
	require.Equal(t, 0, f.availableQty(t, productB))
	require.Empty(t, f.salesFor(t, enums.GatewayStripe, "pi_short"))
	require.Equal(t, enums.IntentStatusRejected, f.intentStatus(t, intent.ID))

	unresolved, err := f.alerts.ListUnresolved(context.Background())
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, enums.AlertReasonStockShort, unresolved[0].Reason)
	require.Equal(t, "pi_short", unresolved[0].GatewayTransactionID)
}

func TestSettleUnknownIntentRaisesAlert(t *testing.T) {
	f := newFixture(t)

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      uuid.New(),
		TransactionID: "pi_ghost",
		Status:        enums.OutcomeApproved,
		AmountCents:   4200,
	})
	require.NoError(t, err)

	unresolved, err := f.alerts.ListUnresolved(context.Background())
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	require.Equal(t, enums.AlertReasonUnknownIntent, unresolved[0].Reason)
}

func TestSettleUnknownIntentNonApprovedIsIgnored(t *testing.T) {
	f := newFixture(t)

	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayStripe,
		IntentID:      uuid.New(),
		TransactionID: "pi_ghost",
		Status:        enums.OutcomeFailed,
	})
	require.NoError(t, err)

	unresolved, err := f.alerts.ListUnresolved(context.Background())
	require.NoError(t, err)
	require.Empty(t, unresolved)
}

func TestSettleResolvesIntentByGatewayRef(t *testing.T) {
	f := newFixture(t)
	seller := uuid.New()
	productID := f.seedProduct(t, seller, 1000, 5)
	intent := f.seedIntent(t, enums.GatewayPayPal, "tx_ref", []models.PaymentIntentLine{
		line(productID, seller, 1, 1000),
	})

	// No embedded intent id; resolution falls back to the gateway reference.
	err := f.orchestrator.Settle(context.Background(), &gateway.PaymentOutcome{
		Gateway:       enums.GatewayPayPal,
		TransactionID: "tx_ref",
		Status:        enums.OutcomeApproved,
	})
	require.NoError(t, err)
	require.Equal(t, enums.IntentStatusSettled, f.intentStatus(t, intent.ID))
}
