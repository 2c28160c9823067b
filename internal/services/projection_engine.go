package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
	"github.com/folio-press/api/internal/platform/observability"
	"github.com/folio-press/api/internal/repositories"
)

const defaultVelocityWindowMonths = 6

var twelve = decimal.NewFromInt(12)

// ProjectionEngineDeps wires the collaborators for the projection engine.
type ProjectionEngineDeps struct {
	Contracts repositories.ContractRepository
	Sales     repositories.SalesRepository
	Clock     func() time.Time
	Logger    ServiceLogger
	// DefaultWindowMonths sizes the trailing velocity window when the command
	// does not specify one. Zero selects the built-in default of six months.
	DefaultWindowMonths int
}

type projectionEngine struct {
	contracts    repositories.ContractRepository
	sales        repositories.SalesRepository
	now          func() time.Time
	logger       ServiceLogger
	windowMonths int
}

// NewProjectionEngine constructs a ProjectionService validating required
// dependencies.
func NewProjectionEngine(deps ProjectionEngineDeps) (ProjectionService, error) {
	if deps.Contracts == nil {
		return nil, errors.New("projection engine: contract repository is required")
	}
	if deps.Sales == nil {
		return nil, errors.New("projection engine: sales repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = nopLogger
	}
	window := deps.DefaultWindowMonths
	if window <= 0 {
		window = defaultVelocityWindowMonths
	}

	return &projectionEngine{
		contracts:    deps.Contracts,
		sales:        deps.Sales,
		now:          normalizeClock(deps.Clock),
		logger:       logger,
		windowMonths: window,
	}, nil
}

func (e *projectionEngine) ProjectRoyalty(ctx context.Context, cmd ProjectionCommand) (domain.RoyaltyProjection, error) {
	if strings.TrimSpace(cmd.TenantID) == "" {
		return domain.RoyaltyProjection{}, fmt.Errorf("%w: tenant id is required", ErrRoyaltyInvalidInput)
	}
	if strings.TrimSpace(cmd.AuthorID) == "" {
		return domain.RoyaltyProjection{}, fmt.Errorf("%w: author id is required", ErrRoyaltyInvalidInput)
	}
	format := cmd.Format
	if format == "" {
		format = domain.FormatPhysical
	}
	if !format.Valid() {
		return domain.RoyaltyProjection{}, fmt.Errorf("%w: unknown format %q", ErrRoyaltyInvalidInput, cmd.Format)
	}

	contract, err := e.contracts.GetActiveContractForAuthor(ctx, cmd.TenantID, cmd.AuthorID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.RoyaltyProjection{}, fmt.Errorf("%w for author %s", ErrNoActiveContract, cmd.AuthorID)
		}
		return domain.RoyaltyProjection{}, fmt.Errorf("projection: load contract: %w", err)
	}

	window := cmd.WindowMonths
	if window <= 0 {
		window = e.windowMonths
	}
	now := e.now()
	windowStart := now.AddDate(0, -window, 0)

	trailing, lifetime, err := e.fetchSalesData(ctx, cmd.TenantID, contract.TitleID, windowStart, now)
	if err != nil {
		return domain.RoyaltyProjection{}, err
	}

	projection := domain.RoyaltyProjection{
		ID:          projectionID(cmd.TenantID, cmd.AuthorID, format, now),
		TenantID:    cmd.TenantID,
		AuthorID:    cmd.AuthorID,
		TitleID:     contract.TitleID,
		ContractID:  contract.ID,
		Format:      format,
		GeneratedAt: now,
	}

	velocity := computeVelocity(format, window, windowStart, now, trailing)
	projection.Velocity = velocity
	if velocity.Zero() {
		projection.Warnings = append(projection.Warnings, fmt.Sprintf("no %s sales recorded in the trailing %d months; velocity is zero", format, window))
		e.logger(ctx, "projection_zero_velocity", map[string]any{
			"titleId":      contract.TitleID,
			"format":       string(format),
			"windowMonths": window,
		})
	}

	tiers := contract.TiersForFormat(format)
	lifetimeAgg := lifetime[format]
	if len(tiers) == 0 {
		projection.Warnings = append(projection.Warnings, fmt.Sprintf("contract has no %s tier schedule; crossover and royalty projections are unavailable", format))
		return projection, nil
	}

	crossover := buildCrossover(tiers, lifetimeAgg.Quantity, velocity, now)
	projection.Crossover = &crossover
	projection.Annual = buildAnnualProjection(tiers, lifetimeAgg, crossover.CurrentRate, velocity)

	return projection, nil
}

func (e *projectionEngine) fetchSalesData(ctx context.Context, tenantID, titleID string, windowStart, now time.Time) (map[domain.Format]domain.SalesAggregate, map[domain.Format]domain.SalesAggregate, error) {
	ctx, span := observability.StartSpan(ctx, "projection.fetch")
	defer span.End()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		trailing map[domain.Format]domain.SalesAggregate
		lifetime map[domain.Format]domain.SalesAggregate
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		aggregates, err := e.sales.GetSalesByFormat(ctx, tenantID, titleID, windowStart, now)
		if err != nil {
			fail(fmt.Errorf("projection: fetch trailing sales: %w", err))
			return
		}
		mu.Lock()
		trailing = aggregatesByFormat(aggregates)
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		byFormat, err := e.sales.GetLifetimeSalesByFormatBefore(ctx, tenantID, titleID, now)
		if err != nil {
			fail(fmt.Errorf("projection: fetch lifetime sales: %w", err))
			return
		}
		mu.Lock()
		lifetime = byFormat
		mu.Unlock()
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, nil, firstErr
	}
	return trailing, lifetime, nil
}

func computeVelocity(format domain.Format, windowMonths int, windowStart, windowEnd time.Time, trailing map[domain.Format]domain.SalesAggregate) domain.SalesVelocity {
	velocity := domain.SalesVelocity{
		Format:          format,
		WindowMonths:    windowMonths,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		UnitsPerMonth:   decimal.Zero,
		RevenuePerMonth: decimal.Zero,
	}

	agg, ok := trailing[format]
	if !ok || windowMonths <= 0 {
		return velocity
	}

	months := decimal.NewFromInt(int64(windowMonths))
	velocity.UnitsPerMonth = decimal.NewFromInt(agg.Quantity).Div(months)
	velocity.RevenuePerMonth = agg.Revenue.Div(months)
	return velocity
}

// buildCrossover locates the tier containing the current lifetime position
// and estimates when cumulative sales reach the next boundary. The months
// estimate and calendar date stay nil at zero velocity; units-to-next stays
// nil once the title sits in the unbounded tier.
func buildCrossover(tiers []domain.Tier, lifetimeQuantity int64, velocity domain.SalesVelocity, now time.Time) domain.TierCrossoverProjection {
	currentIdx := len(tiers) - 1
	for i, tier := range tiers {
		if tier.Contains(lifetimeQuantity) {
			currentIdx = i
			break
		}
	}
	current := tiers[currentIdx]

	crossover := domain.TierCrossoverProjection{
		LifetimeQuantity: lifetimeQuantity,
		CurrentTierMin:   current.MinQuantity,
		CurrentTierMax:   current.MaxQuantity,
		CurrentRate:      current.Rate,
	}

	if currentIdx+1 >= len(tiers) {
		return crossover
	}
	next := tiers[currentIdx+1]

	unitsToNext := next.MinQuantity - lifetimeQuantity
	crossover.UnitsToNextTier = &unitsToNext
	rate := next.Rate
	crossover.NextTierRate = &rate

	if velocity.Zero() {
		return crossover
	}

	months := decimal.NewFromInt(unitsToNext).Div(velocity.UnitsPerMonth).Ceil().IntPart()
	crossover.MonthsToCrossover = &months
	date := now.AddDate(0, int(months), 0)
	crossover.EstimatedCrossoverDate = &date

	return crossover
}

// buildAnnualProjection compares twelve months of projected sales priced at
// the frozen current-tier rate against an escalating walk that consumes the
// projected units forward along the cumulative axis, reusing the lifetime
// overlap allocation.
func buildAnnualProjection(tiers []domain.Tier, lifetime domain.SalesAggregate, currentRate decimal.Decimal, velocity domain.SalesVelocity) domain.AnnualRoyaltyProjection {
	annual := domain.AnnualRoyaltyProjection{
		AveragePricePerUnit:    decimal.Zero,
		ProjectedAnnualRevenue: decimal.Zero,
		RoyaltyAtCurrentRate:   decimal.Zero,
		RoyaltyWithEscalation:  decimal.Zero,
		EscalationBenefit:      decimal.Zero,
	}

	if lifetime.Quantity > 0 {
		annual.AveragePricePerUnit = lifetime.Revenue.Div(decimal.NewFromInt(lifetime.Quantity))
	}

	annual.ProjectedAnnualUnits = velocity.UnitsPerMonth.Mul(twelve).Round(0).IntPart()
	if annual.ProjectedAnnualUnits <= 0 {
		return annual
	}
	annual.ProjectedAnnualRevenue = decimal.NewFromInt(annual.ProjectedAnnualUnits).Mul(annual.AveragePricePerUnit)
	annual.RoyaltyAtCurrentRate = annual.ProjectedAnnualRevenue.Mul(currentRate)

	projected := domain.NetSalesData{
		NetQuantity: annual.ProjectedAnnualUnits,
		NetRevenue:  annual.ProjectedAnnualRevenue,
	}
	breakdowns, escalated := AllocateTiers(projected, tiers, &domain.LifetimeContext{
		QuantityBefore: lifetime.Quantity,
		RevenueBefore:  lifetime.Revenue,
	})
	annual.RoyaltyWithEscalation = escalated
	annual.EscalationBenefit = escalated.Sub(annual.RoyaltyAtCurrentRate)

	// Any allocation landing in a tier that starts above the current lifetime
	// position means a boundary falls inside the projected year.
	for _, breakdown := range breakdowns {
		if breakdown.MinQuantity > lifetime.Quantity {
			annual.CrossesTierBoundary = true
			break
		}
	}

	return annual
}

func projectionID(tenantID, authorID string, format domain.Format, now time.Time) string {
	fingerprint := sha256.Sum256([]byte(strings.Join([]string{
		tenantID,
		authorID,
		string(format),
		now.UTC().Format(time.RFC3339),
	}, "|")))
	return ulid.MustNew(ulid.Timestamp(now.UTC()), bytes.NewReader(fingerprint[:])).String()
}
