package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/folio-press/api/internal/domain"
	pfirestore "github.com/folio-press/api/internal/platform/firestore"
)

const (
	returnsCollection = "returnRecords"

	dispositionApproved = "approved"
)

// ReturnsRepository aggregates approved returns for a title. The disposition
// filter lives here so pending or rejected returns can never flow into the
// net-sales calculation.
type ReturnsRepository struct {
	records *pfirestore.ReadRepository[returnRecordDocument]
}

// NewReturnsRepository binds the repository to the provider's returns
// collection.
func NewReturnsRepository(provider *pfirestore.Provider) (*ReturnsRepository, error) {
	if provider == nil {
		return nil, errors.New("returns repository requires firestore provider")
	}
	return &ReturnsRepository{
		records: pfirestore.NewReadRepository(provider, returnsCollection, decodeReturnRecordDocument),
	}, nil
}

// GetApprovedReturnsByFormat sums approved return quantity and amount per
// format for returns dated within [start, end).
func (r *ReturnsRepository) GetApprovedReturnsByFormat(ctx context.Context, tenantID, titleID string, start, end time.Time) ([]domain.SalesAggregate, error) {
	records, err := r.records.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("titleId", "==", titleID).
			Where("disposition", "==", dispositionApproved).
			Where("returnedAt", ">=", start).
			Where("returnedAt", "<", end)
	})
	if err != nil {
		return nil, err
	}

	byFormat := make(map[domain.Format]domain.SalesAggregate)
	for _, record := range records {
		amount, err := parseDecimalField(record.Amount, "amount", record.ID)
		if err != nil {
			return nil, err
		}
		format := domain.Format(record.Format)
		agg := byFormat[format]
		agg.Format = format
		agg.Quantity += record.Quantity
		agg.Revenue = agg.Revenue.Add(amount)
		byFormat[format] = agg
	}
	return aggregatesInCanonicalOrder(byFormat), nil
}

type returnRecordDocument struct {
	ID          string    `firestore:"-"`
	TenantID    string    `firestore:"tenantId"`
	TitleID     string    `firestore:"titleId"`
	Format      string    `firestore:"format"`
	Quantity    int64     `firestore:"quantity"`
	Amount      string    `firestore:"amount"`
	Disposition string    `firestore:"disposition"`
	ReturnedAt  time.Time `firestore:"returnedAt"`
}

func decodeReturnRecordDocument(_ context.Context, snap *firestore.DocumentSnapshot) (returnRecordDocument, error) {
	var doc returnRecordDocument
	if err := snap.DataTo(&doc); err != nil {
		return returnRecordDocument{}, err
	}
	doc.ID = snap.Ref.ID
	return doc, nil
}
