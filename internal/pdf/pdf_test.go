package pdf

import (
	"bytes"
	"testing"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
)

func sampleRecord() domain.QuoteRecord {
	financed := 12000.0
	years := make([]domain.CashflowYear, 0, 25)
	for y := 1; y <= 25; y++ {
		cost := -400.0
		if y <= 10 {
			cost = 900.0
		}
		years = append(years, domain.CashflowYear{Year: y, NetCostEUR: cost})
	}
	return domain.QuoteRecord{
		ID: "quote-test",
		Customer: domain.QuoteCustomer{
			Name:    "Mario Rossi",
			Address: "Via Garibaldi 12, Perugia",
			Email:   "mario@example.com",
		},
		OfferID:    "pv-6kw",
		OfferLabel: "Impianto fotovoltaico 6 kW",
		TermMonths: 120,
		Request: domain.CalcRequest{
			AnnualConsumptionKWh:   4200,
			EnergyPriceEURPerKWh:   0.30,
			SystemCostEUR:          13900,
			FinancedAmountEUR:      &financed,
			FinancingYears:         10,
			UseFlatRate:            true,
			AnnualProductionKWh:    9900,
			SelfConsumptionPercent: 40,
			GridPriceEURPerKWh:     0.10,
			DeductionPercent:       50,
			DeductionYears:         10,
			PrudenceFactor:         1,
		},
		Response: domain.CalcResponse{
			CurrentAnnualSpendEUR: 1260,
			AnnualInstallmentEUR:  1390,
			AnnualDeductionEUR:    695,
			BillSavingsEUR:        1188,
			GridRevenueEUR:        594,
			NetAnnualCostEUR:      -1087,
			DeltaVsCurrentEUR:     -2347,
			Message:               "Paghi uguale o meno già da subito (stimato).",
			CashflowYears:         years,
		},
		IssuedBy:  "paola",
		CreatedAt: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestRenderProducesPDF(t *testing.T) {
	data, err := Render(sampleRecord())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty document")
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("output does not look like a PDF: %q", data[:8])
	}
}

func TestRenderWithoutOfferOrCustomerDetails(t *testing.T) {
	record := sampleRecord()
	record.OfferID = ""
	record.OfferLabel = ""
	record.TermMonths = 0
	record.Request.FinancedAmountEUR = nil
	record.Customer = domain.QuoteCustomer{Name: "Cliente"}

	data, err := Render(record)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("empty document")
	}
}

func TestFormatEUR(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "0,00 \x80"},
		{1234.5, "1.234,50 \x80"},
		{-987654.32, "-987.654,32 \x80"},
	}
	for _, tc := range cases {
		if got := formatEUR(tc.in); got != tc.want {
			t.Fatalf("formatEUR(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
