package services

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

// ErrSplitReconciliation signals that the computed ownership splits deviate
// from the title total by more than the reconciliation tolerance. That can
// only happen when the stored ownership percentages do not sum to ~100%, so
// it is treated as corrupt upstream contract data: the calculation aborts
// loudly instead of silently redistributing the remainder.
var ErrSplitReconciliation = errors.New("royalty split: ownership percentages do not reconcile")

var (
	splitTolerance = decimal.RequireFromString("0.01")
	oneHundred     = decimal.RequireFromString("100")
)

// SplitRoyalty divides a title-level royalty total across co-authors by
// ownership percentage, returning one split per co-author in input order.
// A non-positive total produces all-zero splits regardless of percentages.
// Splits are computed without intermediate rounding so a percentage list
// summing to exactly 100 conserves the total exactly.
func SplitRoyalty(total decimal.Decimal, coAuthors []domain.CoAuthor) ([]decimal.Decimal, error) {
	splits := make([]decimal.Decimal, len(coAuthors))

	if !total.IsPositive() {
		for i := range splits {
			splits[i] = decimal.Zero
		}
		return splits, nil
	}

	sum := decimal.Zero
	percentageSum := decimal.Zero
	for i, author := range coAuthors {
		splits[i] = total.Mul(author.OwnershipPercentage).Div(oneHundred)
		sum = sum.Add(splits[i])
		percentageSum = percentageSum.Add(author.OwnershipPercentage)
	}

	deviation := sum.Sub(total).Abs()
	if deviation.GreaterThan(splitTolerance) {
		return nil, fmt.Errorf("%w: splits sum to %s against total %s (deviation %s, ownership %s%%)",
			ErrSplitReconciliation, sum, total, deviation, percentageSum)
	}

	return splits, nil
}
