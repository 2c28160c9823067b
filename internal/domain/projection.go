package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesVelocity is the average monthly sales rate over a trailing window.
type SalesVelocity struct {
	Format          Format
	WindowMonths    int
	WindowStart     time.Time
	WindowEnd       time.Time
	UnitsPerMonth   decimal.Decimal
	RevenuePerMonth decimal.Decimal
}

// Zero reports whether the window contained no sales activity.
func (v SalesVelocity) Zero() bool {
	return v.UnitsPerMonth.IsZero()
}

// TierCrossoverProjection estimates when cumulative sales will reach the
// next tier boundary. Pointer fields are nil when the estimate does not
// apply: UnitsToNextTier when the title already sits in the unbounded tier,
// MonthsToCrossover and EstimatedCrossoverDate when sales velocity is zero.
type TierCrossoverProjection struct {
	LifetimeQuantity       int64
	CurrentTierMin         int64
	CurrentTierMax         *int64
	CurrentRate            decimal.Decimal
	NextTierRate           *decimal.Decimal
	UnitsToNextTier        *int64
	MonthsToCrossover      *int64
	EstimatedCrossoverDate *time.Time
}

// AnnualRoyaltyProjection compares a frozen current-rate royalty against an
// escalating-rate walk through the tier schedule for the next twelve months
// of projected sales.
type AnnualRoyaltyProjection struct {
	ProjectedAnnualUnits   int64
	AveragePricePerUnit    decimal.Decimal
	ProjectedAnnualRevenue decimal.Decimal
	RoyaltyAtCurrentRate   decimal.Decimal
	RoyaltyWithEscalation  decimal.Decimal
	EscalationBenefit      decimal.Decimal
	CrossesTierBoundary    bool
}

// RoyaltyProjection bundles the forward-looking estimates for one title and
// format. Like RoyaltyCalculation it is a read-only value the engine never
// persists.
type RoyaltyProjection struct {
	ID          string
	TenantID    string
	AuthorID    string
	TitleID     string
	ContractID  string
	Format      Format
	GeneratedAt time.Time

	Velocity  SalesVelocity
	Crossover *TierCrossoverProjection
	Annual    AnnualRoyaltyProjection

	Warnings []string
}
