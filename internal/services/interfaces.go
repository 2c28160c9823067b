package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/folio-press/api/internal/domain"
)

var (
	// ErrRoyaltyInvalidInput indicates the caller supplied an unusable command,
	// such as a missing tenant or an inverted period.
	ErrRoyaltyInvalidInput = errors.New("royalty: invalid input")
	// ErrNoActiveContract indicates the author holds no active contract. This
	// is a normal negative outcome, not an infrastructure failure.
	ErrNoActiveContract = errors.New("royalty: no active contract")
	// ErrNoCoAuthors indicates a title-level calculation was requested for a
	// title with no authors attached.
	ErrNoCoAuthors = errors.New("royalty: title has no co-authors")
	// ErrRoyaltyUnavailable indicates a data collaborator could not be reached.
	ErrRoyaltyUnavailable = errors.New("royalty: data source unavailable")
)

// MissingContractsError reports every co-author of a title that lacks an
// active contract. Title-level calculations fail atomically: no partial
// result is produced while any author is unresolved.
type MissingContractsError struct {
	TitleID   string
	AuthorIDs []string
}

func (e *MissingContractsError) Error() string {
	ids := append([]string(nil), e.AuthorIDs...)
	sort.Strings(ids)
	return fmt.Sprintf("royalty: title %s has co-authors without an active contract: %s", e.TitleID, strings.Join(ids, ", "))
}

// CalculateCommand requests a single-author royalty calculation for one
// period.
type CalculateCommand struct {
	TenantID string
	AuthorID string
	Period   domain.Period
}

// CalculateTitleCommand requests a title-level calculation split across all
// co-authors of the title.
type CalculateTitleCommand struct {
	TenantID string
	TitleID  string
	Period   domain.Period
}

// RoyaltyService assembles complete royalty calculations from contract terms
// and sales data. Implementations are pure with respect to persisted state:
// they read, compute, and return, and never write anything back.
type RoyaltyService interface {
	CalculateForAuthor(ctx context.Context, cmd CalculateCommand) (domain.RoyaltyCalculation, error)
	CalculateForTitle(ctx context.Context, cmd CalculateTitleCommand) (domain.RoyaltyCalculation, error)
}

// ProjectionCommand requests forward-looking sales and royalty estimates for
// one author's title in one format.
type ProjectionCommand struct {
	TenantID string
	AuthorID string
	Format   domain.Format
	// WindowMonths sizes the trailing velocity window; zero selects the
	// configured default.
	WindowMonths int
}

// ProjectionService derives sales velocity, tier-crossover estimates, and
// annual royalty projections from recorded sales.
type ProjectionService interface {
	ProjectRoyalty(ctx context.Context, cmd ProjectionCommand) (domain.RoyaltyProjection, error)
}

// ServiceLogger is the event-style logging hook services accept; wiring binds
// it to the process logger.
type ServiceLogger func(ctx context.Context, event string, fields map[string]any)

func nopLogger(context.Context, string, map[string]any) {}

func normalizeClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time {
		return clock().UTC()
	}
}
