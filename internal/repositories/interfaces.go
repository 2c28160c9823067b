package repositories

import (
	"context"
	"time"

	domain "github.com/folio-press/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for
// dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Contracts() ContractRepository
	Sales() SalesRepository
	Returns() ReturnsRepository
}

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ContractRepository reads publishing contracts and title/author ownership
// links. Implementations must scope every query by tenant.
type ContractRepository interface {
	// GetActiveContractForAuthor returns the author's active contract with its
	// tier schedule. A RepositoryError with IsNotFound is returned when the
	// author holds no active contract for the tenant.
	GetActiveContractForAuthor(ctx context.Context, tenantID, authorID string) (domain.Contract, error)

	// GetCoAuthorsWithContracts lists every author attached to the title with
	// their ownership percentage and, when one exists, their active contract.
	// Authors without an active contract carry a nil Contract; deciding
	// whether that is fatal belongs to the calculation layer.
	GetCoAuthorsWithContracts(ctx context.Context, tenantID, titleID string) ([]domain.CoAuthor, error)
}

// SalesRepository aggregates recorded sales for a title.
type SalesRepository interface {
	// GetSalesByFormat sums gross quantity and revenue per format for sales
	// dated within [start, end).
	GetSalesByFormat(ctx context.Context, tenantID, titleID string, start, end time.Time) ([]domain.SalesAggregate, error)

	// GetLifetimeSalesByFormatBefore sums quantity and revenue per format for
	// all sales dated strictly before the given date. Formats with no sales
	// are absent from the map.
	GetLifetimeSalesByFormatBefore(ctx context.Context, tenantID, titleID string, before time.Time) (map[domain.Format]domain.SalesAggregate, error)
}

// ReturnsRepository aggregates approved returns for a title. Only returns
// whose disposition is approved may contribute to the aggregates; pending or
// rejected returns never reduce net sales.
type ReturnsRepository interface {
	GetApprovedReturnsByFormat(ctx context.Context, tenantID, titleID string, start, end time.Time) ([]domain.SalesAggregate, error)
}
