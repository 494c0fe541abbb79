package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:                uuid.New(),
		SellerID:          uuid.New(),
		Name:              "ceramic mug",
		PriceCents:        1500,
		QuantityAvailable: qty,
		IsActive:          true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func TestTryDecrement(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	productID := seedProduct(t, db, 5)

	ok, err := repo.TryDecrement(ctx, productID, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if !ok {
		t.Fatal("expected decrement to succeed")
	}

	remaining, err := repo.Available(ctx, productID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("expected 2 remaining, got %d", remaining)
	}
}

func TestTryDecrementInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	productID := seedProduct(t, db, 1)

	// Two buyers racing for the last unit: exactly one wins.
	first, err := repo.TryDecrement(ctx, productID, 1)
	if err != nil {
		t.Fatalf("first decrement: %v", err)
	}
	second, err := repo.TryDecrement(ctx, productID, 1)
	if err != nil {
		t.Fatalf("second decrement: %v", err)
	}
	if !first || second {
		t.Fatalf("expected exactly one success, got first=%v second=%v", first, second)
	}

	remaining, err := repo.Available(ctx, productID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected 0 remaining, got %d", remaining)
	}
}

func TestTryDecrementNeverPartial(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	productID := seedProduct(t, db, 2)

	ok, err := repo.TryDecrement(ctx, productID, 3)
	if err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if ok {
		t.Fatal("expected decrement beyond stock to fail")
	}

	remaining, err := repo.Available(ctx, productID)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if remaining != 2 {
		t.Fatalf("stock must be untouched, got %d", remaining)
	}
}

func TestTryDecrementValidation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	productID := seedProduct(t, db, 5)

	if _, err := repo.TryDecrement(ctx, uuid.Nil, 1); err == nil {
		t.Fatal("expected validation error for nil product id")
	}

	_, err := repo.TryDecrement(ctx, productID, 0)
	if err == nil {
		t.Fatal("expected validation error for zero qty")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
