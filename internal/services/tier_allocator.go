package services

import (
	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

// AllocateTiers distributes a format's net units across its ordered rate
// tiers and prices each tier's share of the period revenue.
//
// With a nil lifetime context the allocation runs in period mode: tier
// position starts from zero every period and tier capacity is the inclusive
// [MinQuantity, MaxQuantity] width. With a lifetime context the period's
// units occupy the half-open window [QuantityBefore, QuantityBefore+net) on
// the cumulative sales axis and each tier receives its overlap with that
// window. The two boundary conventions are intentionally different and must
// stay that way: reconciling them would shift existing calculation outputs.
//
// Revenue is attributed to tiers proportionally to unit share rather than by
// a per-unit price, which is exact whenever the per-unit price is uniform
// within the format and period.
//
// Tiers are consumed in their stored ascending order; only tiers that
// received units appear in the breakdown. A non-positive net quantity or an
// empty schedule yields an empty breakdown and zero royalty.
func AllocateTiers(net domain.NetSalesData, tiers []domain.Tier, lifetime *domain.LifetimeContext) ([]domain.TierBreakdown, decimal.Decimal) {
	if net.NetQuantity <= 0 || len(tiers) == 0 {
		return nil, decimal.Zero
	}
	if lifetime != nil {
		return allocateLifetime(net, tiers, lifetime.QuantityBefore)
	}
	return allocatePeriod(net, tiers)
}

func allocatePeriod(net domain.NetSalesData, tiers []domain.Tier) ([]domain.TierBreakdown, decimal.Decimal) {
	var (
		breakdowns []domain.TierBreakdown
		total      = decimal.Zero
	)

	unitsRemaining := net.NetQuantity
	for _, tier := range tiers {
		if unitsRemaining <= 0 {
			break
		}

		capacity := unitsRemaining
		if !tier.Unbounded() {
			capacity = *tier.MaxQuantity - tier.MinQuantity + 1
		}

		var units int64
		if tier.MinQuantity == 0 {
			units = minInt64(unitsRemaining, capacity)
		} else {
			unitsAboveMin := net.NetQuantity - tier.MinQuantity
			if unitsAboveMin <= 0 {
				// Net quantity never reaches this tier; later tiers start
				// even higher.
				break
			}
			units = minInt64(minInt64(unitsAboveMin, capacity), unitsRemaining)
		}

		if units <= 0 {
			continue
		}

		royalty := tierRoyalty(units, net, tier.Rate)
		breakdowns = append(breakdowns, newTierBreakdown(tier, units, royalty))
		total = total.Add(royalty)
		unitsRemaining -= units
	}

	return breakdowns, total
}

func allocateLifetime(net domain.NetSalesData, tiers []domain.Tier, quantityBefore int64) ([]domain.TierBreakdown, decimal.Decimal) {
	var (
		breakdowns []domain.TierBreakdown
		total      = decimal.Zero
	)

	lifetimeStart := quantityBefore
	lifetimeEnd := quantityBefore + net.NetQuantity

	for _, tier := range tiers {
		if !tier.Unbounded() && lifetimeStart > *tier.MaxQuantity {
			// Cumulative sales passed this tier in an earlier period.
			continue
		}
		if lifetimeEnd <= tier.MinQuantity {
			continue
		}

		upper := lifetimeEnd
		if !tier.Unbounded() {
			upper = minInt64(lifetimeEnd, *tier.MaxQuantity+1)
		}
		lower := maxInt64(lifetimeStart, tier.MinQuantity)

		units := upper - lower
		if units <= 0 {
			continue
		}

		royalty := tierRoyalty(units, net, tier.Rate)
		breakdowns = append(breakdowns, newTierBreakdown(tier, units, royalty))
		total = total.Add(royalty)
	}

	return breakdowns, total
}

// tierRoyalty prices a tier's units as its proportional share of the period
// revenue at the tier rate. The division runs last so the quotient is exact
// whenever it terminates; dividing first would round the unit ratio and leak
// the rounding into every tier amount.
func tierRoyalty(units int64, net domain.NetSalesData, rate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(units).
		Mul(net.NetRevenue).
		Mul(rate).
		Div(decimal.NewFromInt(net.NetQuantity))
}

func newTierBreakdown(tier domain.Tier, units int64, royalty decimal.Decimal) domain.TierBreakdown {
	return domain.TierBreakdown{
		TierID:        tier.ID,
		MinQuantity:   tier.MinQuantity,
		MaxQuantity:   tier.MaxQuantity,
		Rate:          tier.Rate,
		UnitsApplied:  units,
		RoyaltyAmount: royalty,
	}
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
