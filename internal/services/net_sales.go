package services

import (
	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

// CalculateNetSales derives the net quantity and revenue for one format in
// one period from a gross sales aggregate and an approved-returns aggregate.
// Either aggregate may be nil and is then treated as zero. Net figures floor
// at zero: a period where returns exceed sales yields zero, never a negative
// carried into the tier allocator. Filtering returns down to the approved
// disposition is the caller's responsibility.
func CalculateNetSales(format domain.Format, gross, returns *domain.SalesAggregate) domain.NetSalesData {
	net := domain.NetSalesData{
		Format:        format,
		GrossRevenue:  decimal.Zero,
		ReturnsAmount: decimal.Zero,
		NetRevenue:    decimal.Zero,
	}

	if gross != nil {
		net.GrossQuantity = gross.Quantity
		net.GrossRevenue = gross.Revenue
	}
	if returns != nil {
		net.ReturnsQuantity = returns.Quantity
		net.ReturnsAmount = returns.Revenue
	}

	net.NetQuantity = net.GrossQuantity - net.ReturnsQuantity
	if net.NetQuantity < 0 {
		net.NetQuantity = 0
	}

	net.NetRevenue = net.GrossRevenue.Sub(net.ReturnsAmount)
	if net.NetRevenue.IsNegative() {
		net.NetRevenue = decimal.Zero
	}

	return net
}
