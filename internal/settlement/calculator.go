package settlement

import (
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendio-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/vendio-backend/pkg/errors"
)

// Line is one purchased order line entering settlement.
type Line struct {
	OrderItemID uuid.UUID
	ProductID   uuid.UUID
	SellerID    uuid.UUID
	Quantity    int
	PriceCents  int64
}

// SellerTerms carries the per-seller inputs the calculator needs.
type SellerTerms struct {
	SellerID         uuid.UUID
	SMSNotifications bool
	// FeeBpsOverride replaces the default platform percentage when the seller
	// carries an active subscription plan.
	FeeBpsOverride *int64
}

// LineBreakdown is the settled view of one order line.
type LineBreakdown struct {
	OrderItemID      uuid.UUID
	ProductID        uuid.UUID
	AmountCents      int64
	PlatformFeeCents int64
}

// Breakdown aggregates one seller's share of an order.
type Breakdown struct {
	SellerID         uuid.UUID
	FeeBps           int64
	Lines            []LineBreakdown
	ItemTotalCents   int64
	PlatformFeeCents int64
	SMSFeeCents      int64
	PayoutCents      int64
}

// Calculate settles the order lines per seller. It is pure: no IO, no clock.
// The SMS deduction applies at most once per seller per order. A negative
// payout means the fee schedule is broken and the whole settlement aborts.
func Calculate(lines []Line, terms map[uuid.UUID]SellerTerms, fees config.FeesConfig) ([]Breakdown, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no lines to settle")
	}

	defaultBps := decimal.NewFromFloat(fees.PlatformFeePercent).
		Mul(decimal.NewFromInt(100)).
		Round(0).IntPart()

	smsFee := decimal.NewFromInt(fees.SMSBaseCostCents).
		Mul(decimal.NewFromFloat(1 + fees.SMSMarkupPercent/100)).
		Round(0).IntPart()

	groups := lo.GroupBy(lines, func(line Line) uuid.UUID { return line.SellerID })

	sellerIDs := lo.Keys(groups)
	sort.Slice(sellerIDs, func(i, j int) bool {
		return sellerIDs[i].String() < sellerIDs[j].String()
	})

	breakdowns := make([]Breakdown, 0, len(groups))
	for _, sellerID := range sellerIDs {
		group := groups[sellerID]

		feeBps := defaultBps
		seller, known := terms[sellerID]
		if known && seller.FeeBpsOverride != nil {
			feeBps = *seller.FeeBpsOverride
		}

		breakdown := Breakdown{
			SellerID: sellerID,
			FeeBps:   feeBps,
			Lines:    make([]LineBreakdown, 0, len(group)),
		}
		for _, line := range group {
			if line.Quantity <= 0 || line.PriceCents <= 0 {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "line with non-positive quantity or price").
					WithDetails(map[string]any{"order_item_id": line.OrderItemID.String()})
			}
			amount := line.PriceCents * int64(line.Quantity)
			fee := platformFee(amount, feeBps)
			breakdown.Lines = append(breakdown.Lines, LineBreakdown{
				OrderItemID:      line.OrderItemID,
				ProductID:        line.ProductID,
				AmountCents:      amount,
				PlatformFeeCents: fee,
			})
			breakdown.ItemTotalCents += amount
			breakdown.PlatformFeeCents += fee
		}

		if known && seller.SMSNotifications {
			breakdown.SMSFeeCents = smsFee
		}

		breakdown.PayoutCents = breakdown.ItemTotalCents - breakdown.PlatformFeeCents - breakdown.SMSFeeCents
		if breakdown.PayoutCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "negative seller payout").
				WithDetails(map[string]any{
					"seller_id":    sellerID.String(),
					"payout_cents": breakdown.PayoutCents,
				})
		}

		breakdowns = append(breakdowns, breakdown)
	}

	return breakdowns, nil
}

// CourierPayout splits a delivery fee between the courier and the platform
// using the flat courier fee schedule.
func CourierPayout(deliveryFeeCents int64, fees config.FeesConfig) (payoutCents, platformFeeCents int64) {
	platformFeeCents = platformFee(deliveryFeeCents, fees.CourierFeeBps)
	payoutCents = deliveryFeeCents - platformFeeCents
	if payoutCents < 0 {
		payoutCents = 0
		platformFeeCents = deliveryFeeCents
	}
	return payoutCents, platformFeeCents
}

// platformFee rounds half-up at the cent so buyer and seller never disagree
// over sub-cent remainders.
func platformFee(amountCents, feeBps int64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(feeBps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).IntPart()
}
