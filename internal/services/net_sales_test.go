package services

import (
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

func TestCalculateNetSales(t *testing.T) {
	cases := []struct {
		name         string
		gross        *domain.SalesAggregate
		returns      *domain.SalesAggregate
		wantQuantity int64
		wantRevenue  string
	}{
		{
			name:         "returns subtracted",
			gross:        &domain.SalesAggregate{Format: domain.FormatPhysical, Quantity: 120, Revenue: decimal.RequireFromString("1200.00")},
			returns:      &domain.SalesAggregate{Format: domain.FormatPhysical, Quantity: 20, Revenue: decimal.RequireFromString("200.00")},
			wantQuantity: 100,
			wantRevenue:  "1000",
		},
		{
			name:         "nil returns treated as zero",
			gross:        &domain.SalesAggregate{Format: domain.FormatPhysical, Quantity: 50, Revenue: decimal.RequireFromString("500.00")},
			wantQuantity: 50,
			wantRevenue:  "500",
		},
		{
			name:         "nil gross treated as zero",
			returns:      &domain.SalesAggregate{Format: domain.FormatPhysical, Quantity: 5, Revenue: decimal.RequireFromString("50.00")},
			wantQuantity: 0,
			wantRevenue:  "0",
		},
		{
			name:         "returns exceeding sales floor at zero",
			gross:        &domain.SalesAggregate{Format: domain.FormatPhysical, Quantity: 10, Revenue: decimal.RequireFromString("100.00")},
			returns:      &domain.SalesAggregate{Format: domain.FormatPhysical, Quantity: 30, Revenue: decimal.RequireFromString("300.00")},
			wantQuantity: 0,
			wantRevenue:  "0",
		},
		{
			name:         "both nil",
			wantQuantity: 0,
			wantRevenue:  "0",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			net := CalculateNetSales(domain.FormatPhysical, tc.gross, tc.returns)
			if net.Format != domain.FormatPhysical {
				t.Fatalf("expected format physical, got %q", net.Format)
			}
			if net.NetQuantity != tc.wantQuantity {
				t.Fatalf("expected net quantity %d, got %d", tc.wantQuantity, net.NetQuantity)
			}
			if net.NetRevenue.String() != tc.wantRevenue {
				t.Fatalf("expected net revenue %s, got %s", tc.wantRevenue, net.NetRevenue)
			}
		})
	}
}

func TestCalculateNetSales_PreservesGrossAndReturnFigures(t *testing.T) {
	gross := &domain.SalesAggregate{Format: domain.FormatEbook, Quantity: 40, Revenue: decimal.RequireFromString("199.60")}
	returns := &domain.SalesAggregate{Format: domain.FormatEbook, Quantity: 4, Revenue: decimal.RequireFromString("19.96")}

	net := CalculateNetSales(domain.FormatEbook, gross, returns)

	if net.GrossQuantity != 40 || net.GrossRevenue.String() != "199.6" {
		t.Fatalf("gross figures not preserved: %d / %s", net.GrossQuantity, net.GrossRevenue)
	}
	if net.ReturnsQuantity != 4 || net.ReturnsAmount.String() != "19.96" {
		t.Fatalf("return figures not preserved: %d / %s", net.ReturnsQuantity, net.ReturnsAmount)
	}
	if net.NetQuantity != 36 {
		t.Fatalf("expected net quantity 36, got %d", net.NetQuantity)
	}
	if net.NetRevenue.String() != "179.64" {
		t.Fatalf("expected net revenue 179.64, got %s", net.NetRevenue)
	}
}
