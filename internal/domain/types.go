package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Format enumerates the sales channels a title is sold through.
type Format string

const (
	// FormatPhysical covers print editions (hardcover and paperback).
	FormatPhysical Format = "physical"
	// FormatEbook covers digital editions.
	FormatEbook Format = "ebook"
	// FormatAudiobook covers audio editions.
	FormatAudiobook Format = "audiobook"
)

// Formats returns every format in canonical processing order. Calculations
// iterate this order so identical inputs always produce identical output.
func Formats() []Format {
	return []Format{FormatPhysical, FormatEbook, FormatAudiobook}
}

// Valid reports whether the format is one of the known sales channels.
func (f Format) Valid() bool {
	switch f {
	case FormatPhysical, FormatEbook, FormatAudiobook:
		return true
	}
	return false
}

// TierCalculationMode selects how tier position is determined for a contract.
type TierCalculationMode string

const (
	// TierModePeriod resets tier position to zero at the start of every
	// calculation period.
	TierModePeriod TierCalculationMode = "period"
	// TierModeLifetime positions the period's units on the cumulative
	// lifetime sales axis, so a period may straddle a tier boundary.
	TierModeLifetime TierCalculationMode = "lifetime"
)

// ContractStatus describes the lifecycle state of a publishing contract.
type ContractStatus string

const (
	ContractStatusActive     ContractStatus = "active"
	ContractStatusSuspended  ContractStatus = "suspended"
	ContractStatusTerminated ContractStatus = "terminated"
)

// Tier is a contiguous unit-quantity range with an associated royalty rate.
// A nil MaxQuantity marks the open-ended final tier for its format.
type Tier struct {
	ID          string
	Format      Format
	MinQuantity int64
	MaxQuantity *int64
	Rate        decimal.Decimal
}

// Unbounded reports whether the tier has no upper quantity limit.
func (t Tier) Unbounded() bool {
	return t.MaxQuantity == nil
}

// Contains reports whether the given cumulative unit position falls inside
// the tier's inclusive [MinQuantity, MaxQuantity] range.
func (t Tier) Contains(position int64) bool {
	if position < t.MinQuantity {
		return false
	}
	if t.MaxQuantity == nil {
		return true
	}
	return position <= *t.MaxQuantity
}

// Contract captures the royalty terms agreed with a single author for a
// single title. Tier shape (ordering, contiguity, exactly one unbounded tier
// per format) is owned by the contract administration side; the engine applies
// it as-is.
type Contract struct {
	ID                  string
	TenantID            string
	AuthorID            string
	TitleID             string
	Status              ContractStatus
	AdvanceAmount       decimal.Decimal
	AdvancePaid         decimal.Decimal
	AdvanceRecouped     decimal.Decimal
	TierCalculationMode TierCalculationMode
	Tiers               []Tier
}

// Active reports whether the contract participates in royalty calculation.
func (c Contract) Active() bool {
	return c.Status == ContractStatusActive
}

// TiersForFormat returns the contract's tiers for a format preserving their
// stored ascending MinQuantity order.
func (c Contract) TiersForFormat(format Format) []Tier {
	var tiers []Tier
	for _, tier := range c.Tiers {
		if tier.Format == format {
			tiers = append(tiers, tier)
		}
	}
	return tiers
}

// CoAuthor links an author to a title with their contractual ownership share.
// Contract is nil when the author has no active contract for the title.
type CoAuthor struct {
	AuthorID            string
	OwnershipPercentage decimal.Decimal
	IsPrimary           bool
	Contract            *Contract
}

// SalesAggregate is the per-format quantity/revenue sum returned by the
// sales and returns collaborators for a period.
type SalesAggregate struct {
	Format   Format
	Quantity int64
	Revenue  decimal.Decimal
}

// NetSalesData holds gross, returns, and floored net figures for one format
// in one calculation period.
type NetSalesData struct {
	Format          Format
	GrossQuantity   int64
	GrossRevenue    decimal.Decimal
	ReturnsQuantity int64
	ReturnsAmount   decimal.Decimal
	NetQuantity     int64
	NetRevenue      decimal.Decimal
}

// LifetimeContext carries the cumulative sales position accumulated strictly
// before the period start. Only consulted for lifetime-mode contracts.
type LifetimeContext struct {
	QuantityBefore int64
	RevenueBefore  decimal.Decimal
}

// Period bounds a royalty calculation window. Start is inclusive, End is
// exclusive.
type Period struct {
	Start time.Time
	End   time.Time
}
