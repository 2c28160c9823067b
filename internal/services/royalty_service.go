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

// RoyaltyServiceDeps wires the data collaborators required by the royalty
// calculation orchestrator.
type RoyaltyServiceDeps struct {
	Contracts repositories.ContractRepository
	Sales     repositories.SalesRepository
	Returns   repositories.ReturnsRepository
	Clock     func() time.Time
	Logger    ServiceLogger
}

type royaltyService struct {
	contracts repositories.ContractRepository
	sales     repositories.SalesRepository
	returns   repositories.ReturnsRepository
	now       func() time.Time
	logger    ServiceLogger
}

// NewRoyaltyService constructs a RoyaltyService validating required
// dependencies.
func NewRoyaltyService(deps RoyaltyServiceDeps) (RoyaltyService, error) {
	if deps.Contracts == nil {
		return nil, errors.New("royalty service: contract repository is required")
	}
	if deps.Sales == nil {
		return nil, errors.New("royalty service: sales repository is required")
	}
	if deps.Returns == nil {
		return nil, errors.New("royalty service: returns repository is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = nopLogger
	}

	return &royaltyService{
		contracts: deps.Contracts,
		sales:     deps.Sales,
		returns:   deps.Returns,
		now:       normalizeClock(deps.Clock),
		logger:    logger,
	}, nil
}

func (s *royaltyService) CalculateForAuthor(ctx context.Context, cmd CalculateCommand) (domain.RoyaltyCalculation, error) {
	if err := validatePeriodCommand(cmd.TenantID, cmd.AuthorID, "author id", cmd.Period); err != nil {
		return domain.RoyaltyCalculation{}, err
	}

	contract, err := s.contracts.GetActiveContractForAuthor(ctx, cmd.TenantID, cmd.AuthorID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.RoyaltyCalculation{}, fmt.Errorf("%w for author %s", ErrNoActiveContract, cmd.AuthorID)
		}
		return domain.RoyaltyCalculation{}, fmt.Errorf("royalty: load contract: %w", err)
	}

	data, err := s.fetchPeriodData(ctx, cmd.TenantID, contract.TitleID, cmd.Period, contract.TierCalculationMode == domain.TierModeLifetime)
	if err != nil {
		return domain.RoyaltyCalculation{}, err
	}

	ctx, span := observability.StartSpan(ctx, "royalty.compute")
	defer span.End()

	formats, total := buildFormatCalculations(contract, data)
	recoupment := CalculateRecoupment(contract.AdvanceAmount, contract.AdvanceRecouped, total)

	calc := domain.RoyaltyCalculation{
		ID:                 calculationID(cmd.TenantID, cmd.AuthorID, cmd.Period),
		TenantID:           cmd.TenantID,
		AuthorID:           cmd.AuthorID,
		ContractID:         contract.ID,
		TitleID:            contract.TitleID,
		PeriodStart:        cmd.Period.Start,
		PeriodEnd:          cmd.Period.End,
		Formats:            formats,
		TotalRoyaltyEarned: total,
		AdvanceRecoupment:  recoupment.Recoupment,
		NetPayable:         recoupment.NetPayable,
		IsSplitCalculation: false,
		TitleTotalRoyalty:  decimal.Zero,
		CalculatedAt:       s.now(),
	}

	s.logger(ctx, "royalty_calculated", map[string]any{
		"calculationId": calc.ID,
		"authorId":      cmd.AuthorID,
		"titleId":       contract.TitleID,
		"totalRoyalty":  total.String(),
		"netPayable":    recoupment.NetPayable.String(),
	})

	return calc, nil
}

func (s *royaltyService) CalculateForTitle(ctx context.Context, cmd CalculateTitleCommand) (domain.RoyaltyCalculation, error) {
	if err := validatePeriodCommand(cmd.TenantID, cmd.TitleID, "title id", cmd.Period); err != nil {
		return domain.RoyaltyCalculation{}, err
	}

	coAuthors, err := s.contracts.GetCoAuthorsWithContracts(ctx, cmd.TenantID, cmd.TitleID)
	if err != nil {
		return domain.RoyaltyCalculation{}, fmt.Errorf("royalty: load co-authors: %w", err)
	}
	if len(coAuthors) == 0 {
		return domain.RoyaltyCalculation{}, fmt.Errorf("%w: title %s", ErrNoCoAuthors, cmd.TitleID)
	}

	var missing []string
	for _, author := range coAuthors {
		if author.Contract == nil || !author.Contract.Active() {
			missing = append(missing, author.AuthorID)
		}
	}
	if len(missing) > 0 {
		return domain.RoyaltyCalculation{}, &MissingContractsError{TitleID: cmd.TitleID, AuthorIDs: missing}
	}

	primary := coAuthors[0]
	for _, author := range coAuthors {
		if author.IsPrimary {
			primary = author
			break
		}
	}
	contract := *primary.Contract

	data, err := s.fetchPeriodData(ctx, cmd.TenantID, cmd.TitleID, cmd.Period, contract.TierCalculationMode == domain.TierModeLifetime)
	if err != nil {
		return domain.RoyaltyCalculation{}, err
	}

	ctx, span := observability.StartSpan(ctx, "royalty.compute")
	defer span.End()

	formats, titleTotal := buildFormatCalculations(contract, data)

	splits, err := SplitRoyalty(titleTotal, coAuthors)
	if err != nil {
		s.logger(ctx, "royalty_split_reconciliation_failed", map[string]any{
			"titleId":    cmd.TitleID,
			"titleTotal": titleTotal.String(),
			"error":      err.Error(),
		})
		return domain.RoyaltyCalculation{}, err
	}

	authorSplits := make([]domain.AuthorSplitBreakdown, 0, len(coAuthors))
	totalRecoupment := decimal.Zero
	totalPayable := decimal.Zero
	for i, author := range coAuthors {
		recoupment := CalculateAuthorRecoupment(*author.Contract, splits[i])
		authorSplits = append(authorSplits, domain.AuthorSplitBreakdown{
			AuthorID:            author.AuthorID,
			ContractID:          author.Contract.ID,
			OwnershipPercentage: author.OwnershipPercentage,
			SplitAmount:         splits[i],
			Recoupment:          recoupment.Recoupment,
			NetPayable:          recoupment.NetPayable,
			Advance:             recoupment.Advance,
		})
		totalRecoupment = totalRecoupment.Add(recoupment.Recoupment)
		totalPayable = totalPayable.Add(recoupment.NetPayable)
	}

	calc := domain.RoyaltyCalculation{
		ID:                 calculationID(cmd.TenantID, cmd.TitleID, cmd.Period),
		TenantID:           cmd.TenantID,
		AuthorID:           primary.AuthorID,
		ContractID:         contract.ID,
		TitleID:            cmd.TitleID,
		PeriodStart:        cmd.Period.Start,
		PeriodEnd:          cmd.Period.End,
		Formats:            formats,
		TotalRoyaltyEarned: titleTotal,
		AdvanceRecoupment:  totalRecoupment,
		NetPayable:         totalPayable,
		IsSplitCalculation: len(coAuthors) > 1,
		TitleTotalRoyalty:  titleTotal,
		AuthorSplits:       authorSplits,
		CalculatedAt:       s.now(),
	}

	s.logger(ctx, "royalty_calculated", map[string]any{
		"calculationId": calc.ID,
		"titleId":       cmd.TitleID,
		"coAuthors":     len(coAuthors),
		"titleTotal":    titleTotal.String(),
	})

	return calc, nil
}

// periodData joins the independent aggregate reads performed before the pure
// computation phase starts.
type periodData struct {
	sales    map[domain.Format]domain.SalesAggregate
	returns  map[domain.Format]domain.SalesAggregate
	lifetime map[domain.Format]domain.SalesAggregate
}

// fetchPeriodData dispatches the sales, returns, and (when the contract is in
// lifetime mode) pre-period lifetime reads concurrently and joins them. The
// reads have no ordering dependency on each other.
func (s *royaltyService) fetchPeriodData(ctx context.Context, tenantID, titleID string, period domain.Period, needLifetime bool) (periodData, error) {
	ctx, span := observability.StartSpan(ctx, "royalty.fetch")
	defer span.End()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		data     periodData
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
		aggregates, err := s.sales.GetSalesByFormat(ctx, tenantID, titleID, period.Start, period.End)
		if err != nil {
			fail(fmt.Errorf("royalty: fetch sales: %w", err))
			return
		}
		mu.Lock()
		data.sales = aggregatesByFormat(aggregates)
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		aggregates, err := s.returns.GetApprovedReturnsByFormat(ctx, tenantID, titleID, period.Start, period.End)
		if err != nil {
			fail(fmt.Errorf("royalty: fetch returns: %w", err))
			return
		}
		mu.Lock()
		data.returns = aggregatesByFormat(aggregates)
		mu.Unlock()
	}()

	if needLifetime {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lifetime, err := s.sales.GetLifetimeSalesByFormatBefore(ctx, tenantID, titleID, period.Start)
			if err != nil {
				fail(fmt.Errorf("royalty: fetch lifetime sales: %w", err))
				return
			}
			mu.Lock()
			data.lifetime = lifetime
			mu.Unlock()
		}()
	}

	wg.Wait()

	if firstErr != nil {
		var repoErr repositories.RepositoryError
		if errors.As(firstErr, &repoErr) && repoErr.IsUnavailable() {
			return periodData{}, fmt.Errorf("%w: %v", ErrRoyaltyUnavailable, firstErr)
		}
		return periodData{}, firstErr
	}
	return data, nil
}

// buildFormatCalculations runs the net-sales and tier-allocation pipeline for
// every format observed in sales, returns, or the contract's tier schedule,
// in canonical format order.
func buildFormatCalculations(contract domain.Contract, data periodData) ([]domain.FormatCalculation, decimal.Decimal) {
	var calculations []domain.FormatCalculation
	total := decimal.Zero

	for _, format := range domain.Formats() {
		grossAgg, hasSales := data.sales[format]
		returnsAgg, hasReturns := data.returns[format]
		tiers := contract.TiersForFormat(format)
		if !hasSales && !hasReturns && len(tiers) == 0 {
			continue
		}

		var gross, returns *domain.SalesAggregate
		if hasSales {
			gross = &grossAgg
		}
		if hasReturns {
			returns = &returnsAgg
		}
		net := CalculateNetSales(format, gross, returns)

		var lifetime *domain.LifetimeContext
		if contract.TierCalculationMode == domain.TierModeLifetime {
			before := data.lifetime[format]
			lifetime = &domain.LifetimeContext{
				QuantityBefore: before.Quantity,
				RevenueBefore:  before.Revenue,
			}
		}

		breakdowns, royalty := AllocateTiers(net, tiers, lifetime)
		calculations = append(calculations, domain.FormatCalculation{
			Format:        format,
			NetSales:      net,
			Tiers:         breakdowns,
			RoyaltyAmount: royalty,
		})
		total = total.Add(royalty)
	}

	return calculations, total
}

func aggregatesByFormat(aggregates []domain.SalesAggregate) map[domain.Format]domain.SalesAggregate {
	byFormat := make(map[domain.Format]domain.SalesAggregate, len(aggregates))
	for _, agg := range aggregates {
		existing, ok := byFormat[agg.Format]
		if !ok {
			byFormat[agg.Format] = agg
			continue
		}
		existing.Quantity += agg.Quantity
		existing.Revenue = existing.Revenue.Add(agg.Revenue)
		byFormat[agg.Format] = existing
	}
	return byFormat
}

// calculationID derives a deterministic ULID from the calculation subject and
// period so identical inputs yield identical results, byte for byte. The
// timestamp half encodes the period end; the entropy half is a fingerprint of
// the identifiers.
func calculationID(tenantID, subjectID string, period domain.Period) string {
	fingerprint := sha256.Sum256([]byte(strings.Join([]string{
		tenantID,
		subjectID,
		period.Start.UTC().Format(time.RFC3339),
		period.End.UTC().Format(time.RFC3339),
	}, "|")))
	return ulid.MustNew(ulid.Timestamp(period.End.UTC()), bytes.NewReader(fingerprint[:])).String()
}

func validatePeriodCommand(tenantID, subjectID, subjectLabel string, period domain.Period) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("%w: tenant id is required", ErrRoyaltyInvalidInput)
	}
	if strings.TrimSpace(subjectID) == "" {
		return fmt.Errorf("%w: %s is required", ErrRoyaltyInvalidInput, subjectLabel)
	}
	if !period.End.After(period.Start) {
		return fmt.Errorf("%w: period end must be after period start", ErrRoyaltyInvalidInput)
	}
	return nil
}
