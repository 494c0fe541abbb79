package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
	"github.com/viniciusprado/bazarlivre-backend/pkg/logger"
)

// DefaultPercent applies when no active rate exists. Hitting it is a
// configuration smell, so the policy logs a warning, never an error.
var DefaultPercent = decimal.NewFromInt(10)

// Policy resolves the commission rate in force at a point in time. The rate
// is snapshotted onto the payment intent at creation; settlement must reuse
// that snapshot rather than resolving again, because the active rate can
// change between intent creation and async confirmation.
type Policy interface {
	ResolveActiveRate(ctx context.Context, asOf time.Time) (decimal.Decimal, error)
}

type policy struct {
	repo     Repository
	logg     *logger.Logger
	fallback decimal.Decimal
}

// NewPolicy wires a commission policy. fallback overrides DefaultPercent when
// non-zero, letting deployments configure the default.
func NewPolicy(repo Repository, logg *logger.Logger, fallback decimal.Decimal) (Policy, error) {
	if repo == nil {
		return nil, fmt.Errorf("commission repository required")
	}
	if fallback.IsZero() {
		fallback = DefaultPercent
	}
	if fallback.IsNegative() || fallback.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("fallback commission %s out of range", fallback)
	}
	return &policy{repo: repo, logg: logg, fallback: fallback}, nil
}

func (p *policy) ResolveActiveRate(ctx context.Context, asOf time.Time) (decimal.Decimal, error) {
	rate, err := p.repo.FindActiveRate(ctx, asOf)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active commission rate")
	}
	if rate == nil {
		if p.logg != nil {
			ctx = p.logg.WithField(ctx, "fallback_percent", p.fallback.String())
			p.logg.Warn(ctx, "no active commission rate, applying fallback")
		}
		return p.fallback, nil
	}
	if rate.Percent.IsNegative() || rate.Percent.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("stored commission rate %s out of range", rate.Percent))
	}
	return rate.Percent, nil
}
