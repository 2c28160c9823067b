package firestore

import (
	"context"
	"errors"

	"github.com/folio-press/api/internal/repositories"
	pfirestore "github.com/folio-press/api/internal/platform/firestore"
)

// Registry bundles the firestore-backed repositories behind the
// repositories.Registry interface so callers hold a single handle for wiring
// and shutdown.
type Registry struct {
	provider  *pfirestore.Provider
	contracts *ContractRepository
	sales     *SalesRepository
	returns   *ReturnsRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs every repository against the shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	contracts, err := NewContractRepository(provider)
	if err != nil {
		return nil, err
	}
	sales, err := NewSalesRepository(provider)
	if err != nil {
		return nil, err
	}
	returns, err := NewReturnsRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:  provider,
		contracts: contracts,
		sales:     sales,
		returns:   returns,
	}, nil
}

// Close releases the underlying firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Contracts() repositories.ContractRepository { return r.contracts }

func (r *Registry) Sales() repositories.SalesRepository { return r.sales }

func (r *Registry) Returns() repositories.ReturnsRepository { return r.returns }
