package pricing

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/cristal-orion/superagente/internal/domain"
)

func baseRequest() domain.CalcRequest {
	return domain.CalcRequest{
		AnnualConsumptionKWh:   3200,
		EnergyPriceEURPerKWh:   0.30,
		FixedAnnualFeeEUR:      120,
		SystemCostEUR:          10000,
		FinancingYears:         10,
		UseFlatRate:            true,
		AnnualProductionKWh:    4950,
		SelfConsumptionPercent: 40,
		GridPriceEURPerKWh:     0.10,
		DeductionPercent:       50,
		DeductionYears:         10,
		PrudenceFactor:         1,
	}
}

func mustCalc(t *testing.T, req domain.CalcRequest) *domain.CalcResponse {
	t.Helper()
	resp, err := NewEngine().Calc(context.Background(), req)
	if err != nil {
		t.Fatalf("calc failed: %v", err)
	}
	return resp
}

func TestCalcFlatInstallment(t *testing.T) {
	resp := mustCalc(t, baseRequest())
	if resp.AnnualInstallmentEUR != 1000 {
		t.Fatalf("flat installment = %v, want 1000", resp.AnnualInstallmentEUR)
	}
	if resp.CurrentAnnualSpendEUR != 3200*0.30+120 {
		t.Fatalf("current spend = %v", resp.CurrentAnnualSpendEUR)
	}
	if resp.AnnualDeductionEUR != 500 {
		t.Fatalf("deduction = %v, want 500", resp.AnnualDeductionEUR)
	}
}

func TestCalcAmortizedInstallment(t *testing.T) {
	req := baseRequest()
	req.UseFlatRate = false
	req.APRPercent = 6

	resp := mustCalc(t, req)
	// 10000 at 0.5% monthly over 120 months -> about 111.02/month.
	want := 1332.25
	if math.Abs(resp.AnnualInstallmentEUR-want) > 0.5 {
		t.Fatalf("amortized installment = %v, want about %v", resp.AnnualInstallmentEUR, want)
	}

	req.APRPercent = 0
	resp = mustCalc(t, req)
	if resp.AnnualInstallmentEUR != 1000 {
		t.Fatalf("zero APR must fall back to the flat split, got %v", resp.AnnualInstallmentEUR)
	}
}

func TestCalcOverrideWinsOverAPR(t *testing.T) {
	req := baseRequest()
	req.UseFlatRate = false
	req.APRPercent = 6
	override := 100.0
	req.MonthlyOverrideEUR = &override

	resp := mustCalc(t, req)
	if resp.AnnualInstallmentEUR != 1200 {
		t.Fatalf("override must win: installment = %v, want 1200", resp.AnnualInstallmentEUR)
	}
}

func TestCalcZeroFinancedMeansZeroInstallment(t *testing.T) {
	req := baseRequest()
	req.APRPercent = 6
	zero := 0.0
	req.FinancedAmountEUR = &zero

	resp := mustCalc(t, req)
	if resp.AnnualInstallmentEUR != 0 {
		t.Fatalf("zero financed capital must yield zero installment, got %v", resp.AnnualInstallmentEUR)
	}
	// The deduction stays based on the full system cost.
	if resp.AnnualDeductionEUR != 500 {
		t.Fatalf("deduction must still use the system cost, got %v", resp.AnnualDeductionEUR)
	}
}

func TestCalcFinancedAmountDrivesInstallment(t *testing.T) {
	req := baseRequest()
	financed := 5000.0
	req.FinancedAmountEUR = &financed

	resp := mustCalc(t, req)
	if resp.AnnualInstallmentEUR != 500 {
		t.Fatalf("installment must follow the financed capital, got %v", resp.AnnualInstallmentEUR)
	}
}

func TestCalcPrudenceFactorScalesRevenues(t *testing.T) {
	plain := mustCalc(t, baseRequest())

	req := baseRequest()
	req.PrudenceFactor = 0.8
	prudent := mustCalc(t, req)

	if math.Abs(prudent.BillSavingsEUR-plain.BillSavingsEUR*0.8) > 1e-9 {
		t.Fatalf("savings not scaled: %v vs %v", prudent.BillSavingsEUR, plain.BillSavingsEUR)
	}
	if math.Abs(prudent.GridRevenueEUR-plain.GridRevenueEUR*0.8) > 1e-9 {
		t.Fatalf("grid revenue not scaled: %v vs %v", prudent.GridRevenueEUR, plain.GridRevenueEUR)
	}
}

func TestCalcCashflowCutoffs(t *testing.T) {
	req := baseRequest()
	req.FinancingYears = 10
	req.DeductionYears = 5

	resp := mustCalc(t, req)
	if len(resp.CashflowYears) != 25 {
		t.Fatalf("expected a 25-year horizon, got %d", len(resp.CashflowYears))
	}
	for i, entry := range resp.CashflowYears {
		if entry.Year != i+1 {
			t.Fatalf("years must be chronological from 1, got %d at index %d", entry.Year, i)
		}
	}

	recurring := -resp.BillSavingsEUR - resp.GridRevenueEUR
	year6 := resp.CashflowYears[5].NetCostEUR
	if math.Abs(year6-(resp.AnnualInstallmentEUR+recurring)) > 1e-9 {
		t.Fatalf("year 6 must drop the deduction only, got %v", year6)
	}
	year11 := resp.CashflowYears[10].NetCostEUR
	if math.Abs(year11-recurring) > 1e-9 {
		t.Fatalf("year 11 must drop the installment too, got %v", year11)
	}
}

func TestCalcMessages(t *testing.T) {
	resp := mustCalc(t, baseRequest())
	if resp.DeltaVsCurrentEUR > 0 {
		if !strings.Contains(resp.Message, "in più all'anno") {
			t.Fatalf("positive delta message: %q", resp.Message)
		}
	} else if resp.Message != "Paghi uguale o meno già da subito (stimato)." {
		t.Fatalf("non-positive delta message: %q", resp.Message)
	}

	req := baseRequest()
	req.SystemCostEUR = 100000
	financed := 100000.0
	req.FinancedAmountEUR = &financed
	req.DeductionPercent = 0
	costly := mustCalc(t, req)
	if costly.DeltaVsCurrentEUR <= 0 {
		t.Fatalf("expected a positive delta for an expensive system")
	}
	if !strings.Contains(costly.Message, "in più all'anno") {
		t.Fatalf("expected the over-spend message, got %q", costly.Message)
	}
}

func TestCalcValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*domain.CalcRequest)
		field  string
	}{
		{"zero consumption", func(r *domain.CalcRequest) { r.AnnualConsumptionKWh = 0 }, "consumo_annuo_kwh"},
		{"zero cost", func(r *domain.CalcRequest) { r.SystemCostEUR = 0 }, "costo_impianto_eur"},
		{"years too long", func(r *domain.CalcRequest) { r.FinancingYears = 31 }, "anni_finanziamento"},
		{"self consumption above 100", func(r *domain.CalcRequest) { r.SelfConsumptionPercent = 120 }, "autoconsumo_percent"},
		{"deduction years zero", func(r *domain.CalcRequest) { r.DeductionYears = 0 }, "anni_detrazione"},
		{"prudence too low", func(r *domain.CalcRequest) { r.PrudenceFactor = 0.4 }, "fattore_prudenza"},
		{"non-finite production", func(r *domain.CalcRequest) { r.AnnualProductionKWh = math.NaN() }, "produzione_annua_kwh"},
	}

	for _, tc := range cases {
		req := baseRequest()
		tc.mutate(&req)
		_, err := NewEngine().Calc(context.Background(), req)
		var invalid *ValidationError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s: expected a ValidationError, got %v", tc.name, err)
		}
		if invalid.Field != tc.field {
			t.Fatalf("%s: got field %q, want %q", tc.name, invalid.Field, tc.field)
		}
	}
}
