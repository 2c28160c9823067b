package services

import (
	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

// RecoupmentResult reports how much of a period's royalty is absorbed by an
// outstanding advance and what remains payable.
type RecoupmentResult struct {
	RemainingAdvance decimal.Decimal
	Recoupment       decimal.Decimal
	NetPayable       decimal.Decimal
}

// CalculateRecoupment applies a period's earned royalty against the
// unrecouped portion of an advance. A non-positive royalty recoups nothing
// and pays nothing; a previously recouped amount is never reversed.
func CalculateRecoupment(advanceAmount, advanceRecouped, totalRoyalty decimal.Decimal) RecoupmentResult {
	remaining := advanceAmount.Sub(advanceRecouped)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	if !totalRoyalty.IsPositive() {
		return RecoupmentResult{
			RemainingAdvance: remaining,
			Recoupment:       decimal.Zero,
			NetPayable:       decimal.Zero,
		}
	}

	recoupment := decimal.Min(totalRoyalty, remaining)
	netPayable := totalRoyalty.Sub(recoupment)
	if netPayable.IsNegative() {
		netPayable = decimal.Zero
	}

	return RecoupmentResult{
		RemainingAdvance: remaining,
		Recoupment:       recoupment,
		NetPayable:       netPayable,
	}
}

// AuthorRecoupment is the per-co-author recoupment outcome for a split
// calculation, including the advance snapshot reported on statements.
type AuthorRecoupment struct {
	Recoupment decimal.Decimal
	NetPayable decimal.Decimal
	Advance    domain.AdvanceStatus
}

// CalculateAuthorRecoupment runs the advance recoupment rules for one
// co-author using that author's own contract against their split amount,
// not the title total.
func CalculateAuthorRecoupment(contract domain.Contract, splitAmount decimal.Decimal) AuthorRecoupment {
	result := CalculateRecoupment(contract.AdvanceAmount, contract.AdvanceRecouped, splitAmount)

	remainingAfter := result.RemainingAdvance.Sub(result.Recoupment)
	if remainingAfter.IsNegative() {
		remainingAfter = decimal.Zero
	}

	return AuthorRecoupment{
		Recoupment: result.Recoupment,
		NetPayable: result.NetPayable,
		Advance: domain.AdvanceStatus{
			TotalAdvance:         contract.AdvanceAmount,
			PreviouslyRecouped:   contract.AdvanceRecouped,
			RemainingAfterPeriod: remainingAfter,
		},
	}
}
