package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/folio-press/api/internal/domain"
	pfirestore "github.com/folio-press/api/internal/platform/firestore"
)

const salesCollection = "salesRecords"

// SalesRepository aggregates recorded sales for a title. Aggregation happens
// client-side over the period's records so revenue keeps exact decimal
// precision instead of relying on server-side float sums.
type SalesRepository struct {
	records *pfirestore.ReadRepository[salesRecordDocument]
}

// NewSalesRepository binds the repository to the provider's sales collection.
func NewSalesRepository(provider *pfirestore.Provider) (*SalesRepository, error) {
	if provider == nil {
		return nil, errors.New("sales repository requires firestore provider")
	}
	return &SalesRepository{
		records: pfirestore.NewReadRepository(provider, salesCollection, decodeSalesRecordDocument),
	}, nil
}

// GetSalesByFormat sums gross quantity and revenue per format for sales
// dated within [start, end).
func (r *SalesRepository) GetSalesByFormat(ctx context.Context, tenantID, titleID string, start, end time.Time) ([]domain.SalesAggregate, error) {
	records, err := r.records.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("titleId", "==", titleID).
			Where("soldAt", ">=", start).
			Where("soldAt", "<", end)
	})
	if err != nil {
		return nil, err
	}
	return aggregateSalesRecords(records)
}

// GetLifetimeSalesByFormatBefore sums quantity and revenue per format for all
// sales dated strictly before the given date.
func (r *SalesRepository) GetLifetimeSalesByFormatBefore(ctx context.Context, tenantID, titleID string, before time.Time) (map[domain.Format]domain.SalesAggregate, error) {
	records, err := r.records.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("titleId", "==", titleID).
			Where("soldAt", "<", before)
	})
	if err != nil {
		return nil, err
	}
	aggregates, err := aggregateSalesRecords(records)
	if err != nil {
		return nil, err
	}

	byFormat := make(map[domain.Format]domain.SalesAggregate, len(aggregates))
	for _, agg := range aggregates {
		byFormat[agg.Format] = agg
	}
	return byFormat, nil
}

type salesRecordDocument struct {
	ID       string    `firestore:"-"`
	TenantID string    `firestore:"tenantId"`
	TitleID  string    `firestore:"titleId"`
	Format   string    `firestore:"format"`
	Quantity int64     `firestore:"quantity"`
	Revenue  string    `firestore:"revenue"`
	SoldAt   time.Time `firestore:"soldAt"`
}

func decodeSalesRecordDocument(_ context.Context, snap *firestore.DocumentSnapshot) (salesRecordDocument, error) {
	var doc salesRecordDocument
	if err := snap.DataTo(&doc); err != nil {
		return salesRecordDocument{}, err
	}
	doc.ID = snap.Ref.ID
	return doc, nil
}

func aggregateSalesRecords(records []salesRecordDocument) ([]domain.SalesAggregate, error) {
	byFormat := make(map[domain.Format]domain.SalesAggregate)
	for _, record := range records {
		revenue, err := parseDecimalField(record.Revenue, "revenue", record.ID)
		if err != nil {
			return nil, err
		}
		format := domain.Format(record.Format)
		agg := byFormat[format]
		agg.Format = format
		agg.Quantity += record.Quantity
		agg.Revenue = agg.Revenue.Add(revenue)
		byFormat[format] = agg
	}
	return aggregatesInCanonicalOrder(byFormat), nil
}

// aggregatesInCanonicalOrder flattens the per-format map in canonical format
// order so repeated reads return identical slices.
func aggregatesInCanonicalOrder(byFormat map[domain.Format]domain.SalesAggregate) []domain.SalesAggregate {
	aggregates := make([]domain.SalesAggregate, 0, len(byFormat))
	for _, format := range domain.Formats() {
		if agg, ok := byFormat[format]; ok {
			aggregates = append(aggregates, agg)
		}
	}
	return aggregates
}
