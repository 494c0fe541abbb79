package commission

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
)

type fakeRepository struct {
	rate *models.CommissionRate
	err  error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) FindActiveRate(ctx context.Context, asOf time.Time) (*models.CommissionRate, error) {
	return f.rate, f.err
}

func TestPolicy_ResolveActiveRate(t *testing.T) {
	repo := &fakeRepository{rate: &models.CommissionRate{
		Percent:     decimal.NewFromFloat(12.5),
		Active:      true,
		EffectiveAt: time.Now().Add(-time.Hour),
	}}
	policy, err := NewPolicy(repo, nil, decimal.Zero)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	got, err := policy.ResolveActiveRate(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equal(decimal.NewFromFloat(12.5)) {
		t.Fatalf("expected 12.5, got %s", got)
	}
}

func TestPolicy_FallbackWhenNoActiveRate(t *testing.T) {
	policy, err := NewPolicy(&fakeRepository{}, nil, decimal.Zero)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	got, err := policy.ResolveActiveRate(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equal(DefaultPercent) {
		t.Fatalf("expected fallback %s, got %s", DefaultPercent, got)
	}
}

func TestPolicy_ConfiguredFallback(t *testing.T) {
	policy, err := NewPolicy(&fakeRepository{}, nil, decimal.NewFromInt(7))
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	got, err := policy.ResolveActiveRate(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected 7, got %s", got)
	}
}

func TestPolicy_RejectsOutOfRangeStoredRate(t *testing.T) {
	repo := &fakeRepository{rate: &models.CommissionRate{Percent: decimal.NewFromInt(140)}}
	policy, err := NewPolicy(repo, nil, decimal.Zero)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	if _, err := policy.ResolveActiveRate(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for out-of-range rate")
	}
}
