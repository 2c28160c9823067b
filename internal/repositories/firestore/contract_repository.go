package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
	pfirestore "github.com/folio-press/api/internal/platform/firestore"
)

const (
	contractsCollection    = "contracts"
	titleAuthorsCollection = "titleAuthors"
)

// ContractRepository reads publishing contracts and title/author ownership
// links from Firestore.
type ContractRepository struct {
	contracts    *pfirestore.ReadRepository[contractDocument]
	titleAuthors *pfirestore.ReadRepository[titleAuthorDocument]
}

// NewContractRepository binds the repository to the provider's collections.
func NewContractRepository(provider *pfirestore.Provider) (*ContractRepository, error) {
	if provider == nil {
		return nil, errors.New("contract repository requires firestore provider")
	}
	return &ContractRepository{
		contracts:    pfirestore.NewReadRepository(provider, contractsCollection, decodeContractDocument),
		titleAuthors: pfirestore.NewReadRepository(provider, titleAuthorsCollection, decodeTitleAuthorDocument),
	}, nil
}

// GetActiveContractForAuthor returns the author's active contract with its
// tier schedule, or a not-found repository error.
func (r *ContractRepository) GetActiveContractForAuthor(ctx context.Context, tenantID, authorID string) (domain.Contract, error) {
	docs, err := r.contracts.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("authorId", "==", authorID).
			Where("status", "==", string(domain.ContractStatusActive)).
			Limit(1)
	})
	if err != nil {
		return domain.Contract{}, err
	}
	if len(docs) == 0 {
		return domain.Contract{}, pfirestore.NotFound("contracts.query", fmt.Sprintf("no active contract for author %s", authorID))
	}
	return docs[0].toDomain()
}

// GetCoAuthorsWithContracts lists the title's authors in link-creation order
// with their ownership percentages and active contracts where present.
func (r *ContractRepository) GetCoAuthorsWithContracts(ctx context.Context, tenantID, titleID string) ([]domain.CoAuthor, error) {
	links, err := r.titleAuthors.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("titleId", "==", titleID).
			OrderBy("createdAt", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}

	coAuthors := make([]domain.CoAuthor, 0, len(links))
	for _, link := range links {
		percentage, err := parseDecimalField(link.OwnershipPercentage, "ownershipPercentage", link.ID)
		if err != nil {
			return nil, err
		}

		coAuthor := domain.CoAuthor{
			AuthorID:            link.AuthorID,
			OwnershipPercentage: percentage,
			IsPrimary:           link.IsPrimary,
		}

		contract, err := r.activeContractForTitle(ctx, tenantID, link.AuthorID, titleID)
		if err != nil {
			return nil, err
		}
		coAuthor.Contract = contract

		coAuthors = append(coAuthors, coAuthor)
	}
	return coAuthors, nil
}

// activeContractForTitle returns nil (not an error) when the author has no
// active contract for the title; the calculation layer decides whether that
// is fatal.
func (r *ContractRepository) activeContractForTitle(ctx context.Context, tenantID, authorID, titleID string) (*domain.Contract, error) {
	docs, err := r.contracts.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("authorId", "==", authorID).
			Where("titleId", "==", titleID).
			Where("status", "==", string(domain.ContractStatusActive)).
			Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	contract, err := docs[0].toDomain()
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

type tierDocument struct {
	ID          string `firestore:"id"`
	Format      string `firestore:"format"`
	MinQuantity int64  `firestore:"minQuantity"`
	MaxQuantity *int64 `firestore:"maxQuantity"`
	Rate        string `firestore:"rate"`
}

type contractDocument struct {
	ID                  string         `firestore:"-"`
	TenantID            string         `firestore:"tenantId"`
	AuthorID            string         `firestore:"authorId"`
	TitleID             string         `firestore:"titleId"`
	Status              string         `firestore:"status"`
	AdvanceAmount       string         `firestore:"advanceAmount"`
	AdvancePaid         string         `firestore:"advancePaid"`
	AdvanceRecouped     string         `firestore:"advanceRecouped"`
	TierCalculationMode string         `firestore:"tierCalculationMode"`
	Tiers               []tierDocument `firestore:"tiers"`
}

type titleAuthorDocument struct {
	ID                  string    `firestore:"-"`
	TenantID            string    `firestore:"tenantId"`
	TitleID             string    `firestore:"titleId"`
	AuthorID            string    `firestore:"authorId"`
	OwnershipPercentage string    `firestore:"ownershipPercentage"`
	IsPrimary           bool      `firestore:"isPrimary"`
	CreatedAt           time.Time `firestore:"createdAt"`
}

func decodeContractDocument(_ context.Context, snap *firestore.DocumentSnapshot) (contractDocument, error) {
	var doc contractDocument
	if err := snap.DataTo(&doc); err != nil {
		return contractDocument{}, err
	}
	doc.ID = snap.Ref.ID
	return doc, nil
}

func decodeTitleAuthorDocument(_ context.Context, snap *firestore.DocumentSnapshot) (titleAuthorDocument, error) {
	var doc titleAuthorDocument
	if err := snap.DataTo(&doc); err != nil {
		return titleAuthorDocument{}, err
	}
	doc.ID = snap.Ref.ID
	return doc, nil
}

func (d contractDocument) toDomain() (domain.Contract, error) {
	advanceAmount, err := parseDecimalField(d.AdvanceAmount, "advanceAmount", d.ID)
	if err != nil {
		return domain.Contract{}, err
	}
	advancePaid, err := parseDecimalField(d.AdvancePaid, "advancePaid", d.ID)
	if err != nil {
		return domain.Contract{}, err
	}
	advanceRecouped, err := parseDecimalField(d.AdvanceRecouped, "advanceRecouped", d.ID)
	if err != nil {
		return domain.Contract{}, err
	}

	tiers := make([]domain.Tier, 0, len(d.Tiers))
	for _, tier := range d.Tiers {
		rate, err := parseDecimalField(tier.Rate, "tier rate", d.ID)
		if err != nil {
			return domain.Contract{}, err
		}
		tiers = append(tiers, domain.Tier{
			ID:          tier.ID,
			Format:      domain.Format(tier.Format),
			MinQuantity: tier.MinQuantity,
			MaxQuantity: tier.MaxQuantity,
			Rate:        rate,
		})
	}
	// Stored order is authoritative for contiguity, but normalise to
	// ascending MinQuantity per format so the allocator sees the invariant
	// order regardless of document editing history.
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].Format != tiers[j].Format {
			return tiers[i].Format < tiers[j].Format
		}
		return tiers[i].MinQuantity < tiers[j].MinQuantity
	})

	return domain.Contract{
		ID:                  d.ID,
		TenantID:            d.TenantID,
		AuthorID:            d.AuthorID,
		TitleID:             d.TitleID,
		Status:              domain.ContractStatus(d.Status),
		AdvanceAmount:       advanceAmount,
		AdvancePaid:         advancePaid,
		AdvanceRecouped:     advanceRecouped,
		TierCalculationMode: domain.TierCalculationMode(d.TierCalculationMode),
		Tiers:               tiers,
	}, nil
}

// parseDecimalField parses a stored decimal string, treating absence as zero.
func parseDecimalField(raw, field, docID string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("firestore: document %s: parse %s %q: %w", docID, field, raw, err)
	}
	return value, nil
}
