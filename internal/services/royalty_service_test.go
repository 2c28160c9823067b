package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

type stubRepositoryError struct {
	message     string
	notFound    bool
	unavailable bool
}

func (e *stubRepositoryError) Error() string       { return e.message }
func (e *stubRepositoryError) IsNotFound() bool    { return e.notFound }
func (e *stubRepositoryError) IsConflict() bool    { return false }
func (e *stubRepositoryError) IsUnavailable() bool { return e.unavailable }

type stubContractRepository struct {
	contract    domain.Contract
	contractErr error
	coAuthors   []domain.CoAuthor
	coAuthorErr error
}

func (r *stubContractRepository) GetActiveContractForAuthor(_ context.Context, _, _ string) (domain.Contract, error) {
	if r.contractErr != nil {
		return domain.Contract{}, r.contractErr
	}
	return r.contract, nil
}

func (r *stubContractRepository) GetCoAuthorsWithContracts(_ context.Context, _, _ string) ([]domain.CoAuthor, error) {
	if r.coAuthorErr != nil {
		return nil, r.coAuthorErr
	}
	return r.coAuthors, nil
}

type stubSalesRepository struct {
	sales       []domain.SalesAggregate
	salesErr    error
	lifetime    map[domain.Format]domain.SalesAggregate
	lifetimeErr error
}

func (r *stubSalesRepository) GetSalesByFormat(_ context.Context, _, _ string, _, _ time.Time) ([]domain.SalesAggregate, error) {
	if r.salesErr != nil {
		return nil, r.salesErr
	}
	return r.sales, nil
}

func (r *stubSalesRepository) GetLifetimeSalesByFormatBefore(_ context.Context, _, _ string, _ time.Time) (map[domain.Format]domain.SalesAggregate, error) {
	if r.lifetimeErr != nil {
		return nil, r.lifetimeErr
	}
	return r.lifetime, nil
}

type stubReturnsRepository struct {
	returns    []domain.SalesAggregate
	returnsErr error
}

func (r *stubReturnsRepository) GetApprovedReturnsByFormat(_ context.Context, _, _ string, _, _ time.Time) ([]domain.SalesAggregate, error) {
	if r.returnsErr != nil {
		return nil, r.returnsErr
	}
	return r.returns, nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func testPeriod() domain.Period {
	return domain.Period{
		Start: time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
	}
}

func periodContract() domain.Contract {
	return domain.Contract{
		ID:                  "contract_1",
		TenantID:            "tenant_1",
		AuthorID:            "author_1",
		TitleID:             "title_1",
		Status:              domain.ContractStatusActive,
		AdvanceAmount:       decimal.RequireFromString("10000"),
		AdvanceRecouped:     decimal.RequireFromString("6000"),
		TierCalculationMode: domain.TierModePeriod,
		Tiers:               escalatingSchedule(),
	}
}

func newTestRoyaltyService(t *testing.T, contracts *stubContractRepository, sales *stubSalesRepository, returns *stubReturnsRepository, clock func() time.Time) RoyaltyService {
	t.Helper()
	svc, err := NewRoyaltyService(RoyaltyServiceDeps{
		Contracts: contracts,
		Sales:     sales,
		Returns:   returns,
		Clock:     clock,
	})
	if err != nil {
		t.Fatalf("NewRoyaltyService error: %v", err)
	}
	return svc
}

func TestRoyaltyService_CalculateForAuthor_PeriodMode(t *testing.T) {
	now := time.Date(2026, time.July, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestRoyaltyService(t,
		&stubContractRepository{contract: periodContract()},
		&stubSalesRepository{sales: []domain.SalesAggregate{
			{Format: domain.FormatPhysical, Quantity: 12500, Revenue: decimal.RequireFromString("125000.00")},
		}},
		&stubReturnsRepository{returns: []domain.SalesAggregate{
			{Format: domain.FormatPhysical, Quantity: 500, Revenue: decimal.RequireFromString("5000.00")},
		}},
		fixedClock(now),
	)

	calc, err := svc.CalculateForAuthor(context.Background(), CalculateCommand{
		TenantID: "tenant_1",
		AuthorID: "author_1",
		Period:   testPeriod(),
	})
	if err != nil {
		t.Fatalf("CalculateForAuthor error: %v", err)
	}

	if calc.ContractID != "contract_1" || calc.TitleID != "title_1" {
		t.Fatalf("unexpected contract/title: %s / %s", calc.ContractID, calc.TitleID)
	}
	if len(calc.Formats) != 1 {
		t.Fatalf("expected 1 format calculation, got %d", len(calc.Formats))
	}

	physical := calc.Formats[0]
	if physical.Format != domain.FormatPhysical {
		t.Fatalf("expected physical format, got %q", physical.Format)
	}
	if physical.NetSales.NetQuantity != 12000 {
		t.Fatalf("expected net quantity 12000, got %d", physical.NetSales.NetQuantity)
	}
	if len(physical.Tiers) != 3 {
		t.Fatalf("expected 3 tier breakdowns, got %d", len(physical.Tiers))
	}
	if calc.TotalRoyaltyEarned.String() != "13999.5" {
		t.Fatalf("expected total royalty 13999.5, got %s", calc.TotalRoyaltyEarned)
	}
	if calc.AdvanceRecoupment.String() != "4000" {
		t.Fatalf("expected recoupment 4000, got %s", calc.AdvanceRecoupment)
	}
	if calc.NetPayable.String() != "9999.5" {
		t.Fatalf("expected payable 9999.5, got %s", calc.NetPayable)
	}
	if calc.IsSplitCalculation {
		t.Fatal("single-author calculation must not be marked as split")
	}
	if !calc.CalculatedAt.Equal(now) {
		t.Fatalf("expected CalculatedAt %v, got %v", now, calc.CalculatedAt)
	}
}

func TestRoyaltyService_CalculateForAuthor_LifetimeMode(t *testing.T) {
	contract := periodContract()
	contract.TierCalculationMode = domain.TierModeLifetime
	contract.AdvanceAmount = decimal.Zero
	contract.AdvanceRecouped = decimal.Zero

	svc := newTestRoyaltyService(t,
		&stubContractRepository{contract: contract},
		&stubSalesRepository{
			sales: []domain.SalesAggregate{
				{Format: domain.FormatPhysical, Quantity: 1000, Revenue: decimal.RequireFromString("10000.00")},
			},
			lifetime: map[domain.Format]domain.SalesAggregate{
				domain.FormatPhysical: {Format: domain.FormatPhysical, Quantity: 4500, Revenue: decimal.RequireFromString("45000.00")},
			},
		},
		&stubReturnsRepository{},
		nil,
	)

	calc, err := svc.CalculateForAuthor(context.Background(), CalculateCommand{
		TenantID: "tenant_1",
		AuthorID: "author_1",
		Period:   testPeriod(),
	})
	if err != nil {
		t.Fatalf("CalculateForAuthor error: %v", err)
	}

	if len(calc.Formats) != 1 {
		t.Fatalf("expected 1 format calculation, got %d", len(calc.Formats))
	}
	tiers := calc.Formats[0].Tiers
	if len(tiers) != 2 {
		t.Fatalf("expected the period to straddle 2 tiers, got %d", len(tiers))
	}
	if tiers[0].UnitsApplied != 501 || tiers[1].UnitsApplied != 499 {
		t.Fatalf("expected 501/499 lifetime split, got %d/%d", tiers[0].UnitsApplied, tiers[1].UnitsApplied)
	}
	if calc.TotalRoyaltyEarned.String() != "1099.8" {
		t.Fatalf("expected total 1099.8, got %s", calc.TotalRoyaltyEarned)
	}
}

func TestRoyaltyService_CalculateForAuthor_NoActiveContract(t *testing.T) {
	svc := newTestRoyaltyService(t,
		&stubContractRepository{contractErr: &stubRepositoryError{message: "no contract", notFound: true}},
		&stubSalesRepository{},
		&stubReturnsRepository{},
		nil,
	)

	_, err := svc.CalculateForAuthor(context.Background(), CalculateCommand{
		TenantID: "tenant_1",
		AuthorID: "author_missing",
		Period:   testPeriod(),
	})
	if !errors.Is(err, ErrNoActiveContract) {
		t.Fatalf("expected ErrNoActiveContract, got %v", err)
	}
}

func TestRoyaltyService_CalculateForAuthor_Unavailable(t *testing.T) {
	svc := newTestRoyaltyService(t,
		&stubContractRepository{contract: periodContract()},
		&stubSalesRepository{salesErr: &stubRepositoryError{message: "firestore down", unavailable: true}},
		&stubReturnsRepository{},
		nil,
	)

	_, err := svc.CalculateForAuthor(context.Background(), CalculateCommand{
		TenantID: "tenant_1",
		AuthorID: "author_1",
		Period:   testPeriod(),
	})
	if !errors.Is(err, ErrRoyaltyUnavailable) {
		t.Fatalf("expected ErrRoyaltyUnavailable, got %v", err)
	}
}

func TestRoyaltyService_CalculateForAuthor_InvalidInput(t *testing.T) {
	svc := newTestRoyaltyService(t, &stubContractRepository{}, &stubSalesRepository{}, &stubReturnsRepository{}, nil)

	cases := []struct {
		name string
		cmd  CalculateCommand
	}{
		{name: "missing tenant", cmd: CalculateCommand{AuthorID: "author_1", Period: testPeriod()}},
		{name: "missing author", cmd: CalculateCommand{TenantID: "tenant_1", Period: testPeriod()}},
		{
			name: "inverted period",
			cmd: CalculateCommand{
				TenantID: "tenant_1",
				AuthorID: "author_1",
				Period: domain.Period{
					Start: time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC),
					End:   time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
				},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CalculateForAuthor(context.Background(), tc.cmd); !errors.Is(err, ErrRoyaltyInvalidInput) {
				t.Fatalf("expected ErrRoyaltyInvalidInput, got %v", err)
			}
		})
	}
}

func TestRoyaltyService_CalculateForAuthor_FormatUnion(t *testing.T) {
	contract := periodContract()
	contract.Tiers = []domain.Tier{
		{ID: "ebook_flat", Format: domain.FormatEbook, MinQuantity: 0, MaxQuantity: nil, Rate: decimal.RequireFromString("0.25")},
	}
	contract.AdvanceAmount = decimal.Zero
	contract.AdvanceRecouped = decimal.Zero

	svc := newTestRoyaltyService(t,
		&stubContractRepository{contract: contract},
		&stubSalesRepository{sales: []domain.SalesAggregate{
			{Format: domain.FormatPhysical, Quantity: 100, Revenue: decimal.RequireFromString("1000.00")},
		}},
		&stubReturnsRepository{returns: []domain.SalesAggregate{
			{Format: domain.FormatAudiobook, Quantity: 5, Revenue: decimal.RequireFromString("75.00")},
		}},
		nil,
	)

	calc, err := svc.CalculateForAuthor(context.Background(), CalculateCommand{
		TenantID: "tenant_1",
		AuthorID: "author_1",
		Period:   testPeriod(),
	})
	if err != nil {
		t.Fatalf("CalculateForAuthor error: %v", err)
	}

	if len(calc.Formats) != 3 {
		t.Fatalf("expected physical, ebook, and audiobook calculations, got %d", len(calc.Formats))
	}
	wantOrder := []domain.Format{domain.FormatPhysical, domain.FormatEbook, domain.FormatAudiobook}
	for i, want := range wantOrder {
		if calc.Formats[i].Format != want {
			t.Fatalf("expected %q at position %d, got %q", want, i, calc.Formats[i].Format)
		}
	}
	// Sales without a tier schedule earn nothing, a schedule without sales
	// earns nothing, and returns alone can only floor at zero.
	for _, format := range calc.Formats {
		if !format.RoyaltyAmount.IsZero() {
			t.Fatalf("expected zero royalty for %q, got %s", format.Format, format.RoyaltyAmount)
		}
	}
	if calc.Formats[2].NetSales.ReturnsQuantity != 5 {
		t.Fatalf("expected audiobook returns carried into net sales, got %d", calc.Formats[2].NetSales.ReturnsQuantity)
	}
	if !calc.TotalRoyaltyEarned.IsZero() {
		t.Fatalf("expected zero total, got %s", calc.TotalRoyaltyEarned)
	}
}

func TestRoyaltyService_CalculateForAuthor_DeterministicID(t *testing.T) {
	build := func() RoyaltyService {
		return newTestRoyaltyService(t,
			&stubContractRepository{contract: periodContract()},
			&stubSalesRepository{sales: []domain.SalesAggregate{
				{Format: domain.FormatPhysical, Quantity: 100, Revenue: decimal.RequireFromString("1000.00")},
			}},
			&stubReturnsRepository{},
			fixedClock(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)),
		)
	}
	cmd := CalculateCommand{TenantID: "tenant_1", AuthorID: "author_1", Period: testPeriod()}

	first, err := build().CalculateForAuthor(context.Background(), cmd)
	if err != nil {
		t.Fatalf("first calculation error: %v", err)
	}
	second, err := build().CalculateForAuthor(context.Background(), cmd)
	if err != nil {
		t.Fatalf("second calculation error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected identical ids for identical inputs, got %s and %s", first.ID, second.ID)
	}
	if !first.TotalRoyaltyEarned.Equal(second.TotalRoyaltyEarned) {
		t.Fatalf("expected identical totals, got %s and %s", first.TotalRoyaltyEarned, second.TotalRoyaltyEarned)
	}
}

func TestRoyaltyService_CalculateForTitle_SplitsAcrossCoAuthors(t *testing.T) {
	lead := periodContract()
	lead.ID = "contract_lead"
	lead.AuthorID = "author_lead"
	lead.AdvanceAmount = decimal.RequireFromString("10000")
	lead.AdvanceRecouped = decimal.RequireFromString("6000")

	second := periodContract()
	second.ID = "contract_second"
	second.AuthorID = "author_second"
	second.AdvanceAmount = decimal.Zero
	second.AdvanceRecouped = decimal.Zero

	svc := newTestRoyaltyService(t,
		&stubContractRepository{coAuthors: []domain.CoAuthor{
			{AuthorID: "author_second", OwnershipPercentage: decimal.RequireFromString("40"), Contract: &second},
			{AuthorID: "author_lead", OwnershipPercentage: decimal.RequireFromString("60"), IsPrimary: true, Contract: &lead},
		}},
		&stubSalesRepository{sales: []domain.SalesAggregate{
			{Format: domain.FormatPhysical, Quantity: 12000, Revenue: decimal.RequireFromString("120000.00")},
		}},
		&stubReturnsRepository{},
		nil,
	)

	calc, err := svc.CalculateForTitle(context.Background(), CalculateTitleCommand{
		TenantID: "tenant_1",
		TitleID:  "title_1",
		Period:   testPeriod(),
	})
	if err != nil {
		t.Fatalf("CalculateForTitle error: %v", err)
	}

	if !calc.IsSplitCalculation {
		t.Fatal("expected a split calculation")
	}
	if calc.AuthorID != "author_lead" {
		t.Fatalf("expected primary author on the calculation, got %s", calc.AuthorID)
	}
	if calc.TitleTotalRoyalty.String() != "13999.5" {
		t.Fatalf("expected title total 13999.5, got %s", calc.TitleTotalRoyalty)
	}
	if len(calc.AuthorSplits) != 2 {
		t.Fatalf("expected 2 author splits, got %d", len(calc.AuthorSplits))
	}

	// Splits stay in repository order: the 40% co-author first.
	secondSplit := calc.AuthorSplits[0]
	if secondSplit.AuthorID != "author_second" {
		t.Fatalf("expected author_second first, got %s", secondSplit.AuthorID)
	}
	if secondSplit.SplitAmount.String() != "5599.8" {
		t.Fatalf("expected split 5599.8, got %s", secondSplit.SplitAmount)
	}
	if !secondSplit.Recoupment.IsZero() {
		t.Fatalf("expected no recoupment without an advance, got %s", secondSplit.Recoupment)
	}
	if secondSplit.NetPayable.String() != "5599.8" {
		t.Fatalf("expected payable 5599.8, got %s", secondSplit.NetPayable)
	}

	leadSplit := calc.AuthorSplits[1]
	if leadSplit.SplitAmount.String() != "8399.7" {
		t.Fatalf("expected split 8399.7, got %s", leadSplit.SplitAmount)
	}
	if leadSplit.Recoupment.String() != "4000" {
		t.Fatalf("expected recoupment 4000 against the lead advance, got %s", leadSplit.Recoupment)
	}
	if leadSplit.NetPayable.String() != "4399.7" {
		t.Fatalf("expected payable 4399.7, got %s", leadSplit.NetPayable)
	}
	if leadSplit.Advance.RemainingAfterPeriod.String() != "0" {
		t.Fatalf("expected advance cleared, got %s", leadSplit.Advance.RemainingAfterPeriod)
	}

	if calc.AdvanceRecoupment.String() != "4000" {
		t.Fatalf("expected aggregate recoupment 4000, got %s", calc.AdvanceRecoupment)
	}
	if calc.NetPayable.String() != "9999.5" {
		t.Fatalf("expected aggregate payable 9999.5, got %s", calc.NetPayable)
	}
}

func TestRoyaltyService_CalculateForTitle_NoCoAuthors(t *testing.T) {
	svc := newTestRoyaltyService(t, &stubContractRepository{}, &stubSalesRepository{}, &stubReturnsRepository{}, nil)

	_, err := svc.CalculateForTitle(context.Background(), CalculateTitleCommand{
		TenantID: "tenant_1",
		TitleID:  "title_empty",
		Period:   testPeriod(),
	})
	if !errors.Is(err, ErrNoCoAuthors) {
		t.Fatalf("expected ErrNoCoAuthors, got %v", err)
	}
}

func TestRoyaltyService_CalculateForTitle_MissingContractsIsAtomic(t *testing.T) {
	lead := periodContract()

	svc := newTestRoyaltyService(t,
		&stubContractRepository{coAuthors: []domain.CoAuthor{
			{AuthorID: "author_lead", OwnershipPercentage: decimal.RequireFromString("50"), IsPrimary: true, Contract: &lead},
			{AuthorID: "author_unsigned", OwnershipPercentage: decimal.RequireFromString("30")},
			{AuthorID: "author_lapsed", OwnershipPercentage: decimal.RequireFromString("20"), Contract: &domain.Contract{Status: domain.ContractStatusTerminated}},
		}},
		&stubSalesRepository{},
		&stubReturnsRepository{},
		nil,
	)

	_, err := svc.CalculateForTitle(context.Background(), CalculateTitleCommand{
		TenantID: "tenant_1",
		TitleID:  "title_1",
		Period:   testPeriod(),
	})

	var missing *MissingContractsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingContractsError, got %v", err)
	}
	if missing.TitleID != "title_1" {
		t.Fatalf("expected title_1, got %s", missing.TitleID)
	}
	if len(missing.AuthorIDs) != 2 {
		t.Fatalf("expected both unresolved authors reported, got %v", missing.AuthorIDs)
	}
}

func TestRoyaltyService_CalculateForTitle_ReconciliationFailureAborts(t *testing.T) {
	lead := periodContract()
	second := periodContract()
	second.ID = "contract_second"
	second.AuthorID = "author_second"

	svc := newTestRoyaltyService(t,
		&stubContractRepository{coAuthors: []domain.CoAuthor{
			{AuthorID: "author_lead", OwnershipPercentage: decimal.RequireFromString("50"), IsPrimary: true, Contract: &lead},
			{AuthorID: "author_second", OwnershipPercentage: decimal.RequireFromString("30"), Contract: &second},
		}},
		&stubSalesRepository{sales: []domain.SalesAggregate{
			{Format: domain.FormatPhysical, Quantity: 1000, Revenue: decimal.RequireFromString("10000.00")},
		}},
		&stubReturnsRepository{},
		nil,
	)

	_, err := svc.CalculateForTitle(context.Background(), CalculateTitleCommand{
		TenantID: "tenant_1",
		TitleID:  "title_1",
		Period:   testPeriod(),
	})
	if !errors.Is(err, ErrSplitReconciliation) {
		t.Fatalf("expected ErrSplitReconciliation, got %v", err)
	}
}
