package services

import (
	"testing"

	"github.com/shopspring/decimal"

	domain "github.com/folio-press/api/internal/domain"
)

func TestCalculateRecoupment(t *testing.T) {
	cases := []struct {
		name           string
		advance        string
		recouped       string
		royalty        string
		wantRemaining  string
		wantRecoupment string
		wantPayable    string
	}{
		{
			name:           "partial recoupment leaves payable",
			advance:        "10000",
			recouped:       "6000",
			royalty:        "13999.5",
			wantRemaining:  "4000",
			wantRecoupment: "4000",
			wantPayable:    "9999.5",
		},
		{
			name:           "royalty below remaining advance pays nothing",
			advance:        "10000",
			recouped:       "0",
			royalty:        "2500",
			wantRemaining:  "10000",
			wantRecoupment: "2500",
			wantPayable:    "0",
		},
		{
			name:           "fully recouped advance passes royalty through",
			advance:        "10000",
			recouped:       "10000",
			royalty:        "500",
			wantRemaining:  "0",
			wantRecoupment: "0",
			wantPayable:    "500",
		},
		{
			name:           "over-recouped advance never reverses",
			advance:        "10000",
			recouped:       "12000",
			royalty:        "500",
			wantRemaining:  "0",
			wantRecoupment: "0",
			wantPayable:    "500",
		},
		{
			name:           "zero royalty recoups nothing",
			advance:        "10000",
			recouped:       "2000",
			royalty:        "0",
			wantRemaining:  "8000",
			wantRecoupment: "0",
			wantPayable:    "0",
		},
		{
			name:           "negative royalty recoups nothing",
			advance:        "10000",
			recouped:       "2000",
			royalty:        "-100",
			wantRemaining:  "8000",
			wantRecoupment: "0",
			wantPayable:    "0",
		},
		{
			name:           "no advance pays everything",
			advance:        "0",
			recouped:       "0",
			royalty:        "750.25",
			wantRemaining:  "0",
			wantRecoupment: "0",
			wantPayable:    "750.25",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := CalculateRecoupment(
				decimal.RequireFromString(tc.advance),
				decimal.RequireFromString(tc.recouped),
				decimal.RequireFromString(tc.royalty),
			)
			if result.RemainingAdvance.String() != tc.wantRemaining {
				t.Fatalf("expected remaining %s, got %s", tc.wantRemaining, result.RemainingAdvance)
			}
			if result.Recoupment.String() != tc.wantRecoupment {
				t.Fatalf("expected recoupment %s, got %s", tc.wantRecoupment, result.Recoupment)
			}
			if result.NetPayable.String() != tc.wantPayable {
				t.Fatalf("expected payable %s, got %s", tc.wantPayable, result.NetPayable)
			}
		})
	}
}

func TestCalculateRecoupment_RoyaltySplitsBetweenRecoupmentAndPayable(t *testing.T) {
	royalties := []string{"0.01", "100", "3999.99", "4000", "4000.01", "99999"}
	for _, royalty := range royalties {
		total := decimal.RequireFromString(royalty)
		result := CalculateRecoupment(decimal.RequireFromString("10000"), decimal.RequireFromString("6000"), total)
		if !result.Recoupment.Add(result.NetPayable).Equal(total) {
			t.Fatalf("royalty %s: recoupment %s + payable %s does not equal royalty", royalty, result.Recoupment, result.NetPayable)
		}
		if result.Recoupment.GreaterThan(result.RemainingAdvance) {
			t.Fatalf("royalty %s: recoupment %s exceeds remaining advance %s", royalty, result.Recoupment, result.RemainingAdvance)
		}
	}
}

func TestCalculateAuthorRecoupment(t *testing.T) {
	contract := domain.Contract{
		ID:              "contract_1",
		AdvanceAmount:   decimal.RequireFromString("5000"),
		AdvanceRecouped: decimal.RequireFromString("4500"),
	}

	result := CalculateAuthorRecoupment(contract, decimal.RequireFromString("1200"))

	if result.Recoupment.String() != "500" {
		t.Fatalf("expected recoupment 500, got %s", result.Recoupment)
	}
	if result.NetPayable.String() != "700" {
		t.Fatalf("expected payable 700, got %s", result.NetPayable)
	}
	if result.Advance.TotalAdvance.String() != "5000" {
		t.Fatalf("expected total advance 5000, got %s", result.Advance.TotalAdvance)
	}
	if result.Advance.PreviouslyRecouped.String() != "4500" {
		t.Fatalf("expected previously recouped 4500, got %s", result.Advance.PreviouslyRecouped)
	}
	if result.Advance.RemainingAfterPeriod.String() != "0" {
		t.Fatalf("expected remaining after period 0, got %s", result.Advance.RemainingAfterPeriod)
	}
}

func TestCalculateAuthorRecoupment_PartialRecoupmentLeavesRemainder(t *testing.T) {
	contract := domain.Contract{
		ID:              "contract_2",
		AdvanceAmount:   decimal.RequireFromString("8000"),
		AdvanceRecouped: decimal.RequireFromString("1000"),
	}

	result := CalculateAuthorRecoupment(contract, decimal.RequireFromString("2000"))

	if result.Recoupment.String() != "2000" {
		t.Fatalf("expected recoupment 2000, got %s", result.Recoupment)
	}
	if !result.NetPayable.IsZero() {
		t.Fatalf("expected zero payable, got %s", result.NetPayable)
	}
	if result.Advance.RemainingAfterPeriod.String() != "5000" {
		t.Fatalf("expected remaining after period 5000, got %s", result.Advance.RemainingAfterPeriod)
	}
}
