package split

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/viniciusprado/bazarlivre-backend/pkg/db/models"
	pkgerrors "github.com/viniciusprado/bazarlivre-backend/pkg/errors"
)

// SellerAllocation is the share of a charge owed to one seller.
type SellerAllocation struct {
	SellerID          uuid.UUID
	PayoutRecipientID string
	RevenueCents      int64
	AmountCents       int64
}

// Result apportions a charged total between the platform and the sellers
// whose items appear in the intent. PlatformCents is always computed as the
// remainder, so the allocation sums to the charged total exactly and any
// rounding residue lands on the platform, never on a seller.
type Result struct {
	TotalCents    int64
	PlatformCents int64
	Sellers       []SellerAllocation
}

// Compute groups the frozen intent lines by seller and applies the snapshotted
// commission percentage. Lines whose seller lacks a payout recipient identity
// make the whole computation fail; dropping a seller's share silently is
// worse than blocking settlement.
func Compute(lines []models.PaymentIntentLine, commissionPercent decimal.Decimal) (*Result, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no lines to split")
	}
	if commissionPercent.IsNegative() || commissionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "commission percent out of range")
	}

	type group struct {
		recipient string
		revenue   int64
	}
	groups := map[uuid.UUID]*group{}
	order := []uuid.UUID{}
	var total int64

	for _, line := range lines {
		if line.Qty <= 0 || line.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid line quantity or price")
		}
		revenue := line.UnitPriceCents * int64(line.Qty)
		total += revenue

		g, ok := groups[line.SellerID]
		if !ok {
			g = &group{recipient: line.PayoutRecipientID}
			groups[line.SellerID] = g
			order = append(order, line.SellerID)
		}
		g.revenue += revenue
	}

	keep := decimal.NewFromInt(1).Sub(commissionPercent.Div(decimal.NewFromInt(100)))

	result := &Result{TotalCents: total}
	var allocated int64
	for _, sellerID := range order {
		g := groups[sellerID]
		if g.revenue == 0 {
			// Zero-revenue sellers get no allocation row.
			continue
		}
		if g.recipient == "" {
			return nil, pkgerrors.New(pkgerrors.CodeRecipientMissing, "seller has no payout recipient configured").
				WithDetails(map[string]any{"seller_id": sellerID})
		}
		amount := decimal.NewFromInt(g.revenue).Mul(keep).Round(0).IntPart()
		allocated += amount
		result.Sellers = append(result.Sellers, SellerAllocation{
			SellerID:          sellerID,
			PayoutRecipientID: g.recipient,
			RevenueCents:      g.revenue,
			AmountCents:       amount,
		})
	}

	// Remainder, never an independent percentage computation.
	result.PlatformCents = total - allocated

	sort.Slice(result.Sellers, func(i, j int) bool {
		return result.Sellers[i].SellerID.String() < result.Sellers[j].SellerID.String()
	})
	return result, nil
}

// AmountFor returns the allocation for a single seller, or zero when the
// seller is not part of the result.
func (r *Result) AmountFor(sellerID uuid.UUID) int64 {
	for _, alloc := range r.Sellers {
		if alloc.SellerID == sellerID {
			return alloc.AmountCents
		}
	}
	return 0
}
