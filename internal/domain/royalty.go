package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TierBreakdown records the units and royalty attributed to a single tier
// during allocation.
type TierBreakdown struct {
	TierID        string
	MinQuantity   int64
	MaxQuantity   *int64
	Rate          decimal.Decimal
	UnitsApplied  int64
	RoyaltyAmount decimal.Decimal
}

// FormatCalculation holds the complete per-format result: net sales input,
// tier-by-tier breakdown, and the format's royalty total.
type FormatCalculation struct {
	Format        Format
	NetSales      NetSalesData
	Tiers         []TierBreakdown
	RoyaltyAmount decimal.Decimal
}

// AdvanceStatus snapshots an author's advance position after a period.
type AdvanceStatus struct {
	TotalAdvance         decimal.Decimal
	PreviouslyRecouped   decimal.Decimal
	RemainingAfterPeriod decimal.Decimal
}

// AuthorSplitBreakdown is the per-co-author slice of a title-level
// calculation: ownership share, split amount, recoupment against the
// author's own contract, and the resulting payable.
type AuthorSplitBreakdown struct {
	AuthorID            string
	ContractID          string
	OwnershipPercentage decimal.Decimal
	SplitAmount         decimal.Decimal
	Recoupment          decimal.Decimal
	NetPayable          decimal.Decimal
	Advance             AdvanceStatus
}

// RoyaltyCalculation is the engine's complete output for one author/title
// and period. It is constructed once, returned to the caller, and never
// stored or mutated by the engine; persistence of any of its figures
// (including carrying AdvanceRecoupment forward) belongs to the caller.
type RoyaltyCalculation struct {
	ID          string
	TenantID    string
	AuthorID    string
	ContractID  string
	TitleID     string
	PeriodStart time.Time
	PeriodEnd   time.Time

	Formats            []FormatCalculation
	TotalRoyaltyEarned decimal.Decimal
	AdvanceRecoupment  decimal.Decimal
	NetPayable         decimal.Decimal

	IsSplitCalculation bool
	TitleTotalRoyalty  decimal.Decimal
	AuthorSplits       []AuthorSplitBreakdown

	CalculatedAt time.Time
}
