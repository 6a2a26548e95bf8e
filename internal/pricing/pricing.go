// Package pricing computes the 25-year economic projection for a financing
// request. The Calculator contract has two implementations: the native
// Engine, and an HTTP Client for deployments that delegate to an external
// pricing service speaking the same wire format.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cristal-orion/superagente/internal/domain"
)

// ErrUnavailable marks transport-level failures against the external
// pricing service. Callers surface it as a retry prompt; no partial result
// is ever rendered.
var ErrUnavailable = errors.New("pricing service unavailable")

// ValidationError reports a request the calculator refuses. The message is
// user-readable; selection state is expected to stay untouched so the user
// can correct the input and retry.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Detail
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Detail)
}

type Calculator interface {
	Calc(ctx context.Context, req domain.CalcRequest) (*domain.CalcResponse, error)
}

// Engine is the native calculator. Stateless and deterministic.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// projectionYears is the fixed cashflow horizon.
const projectionYears = 25

func (e *Engine) Calc(_ context.Context, req domain.CalcRequest) (*domain.CalcResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	currentSpend := req.AnnualConsumptionKWh*req.EnergyPriceEURPerKWh + req.FixedAnnualFeeEUR

	financed := req.SystemCostEUR
	if req.FinancedAmountEUR != nil {
		financed = *req.FinancedAmountEUR
	}
	financed = math.Max(financed, 0)

	var installment float64
	switch {
	case financed == 0:
		installment = 0
	case req.MonthlyOverrideEUR != nil && *req.MonthlyOverrideEUR > 0:
		installment = *req.MonthlyOverrideEUR * 12
	case req.UseFlatRate:
		installment = flatInstallment(financed, req.FinancingYears)
	default:
		installment = amortizedInstallment(financed, req.FinancingYears, req.APRPercent)
	}

	deduction := req.SystemCostEUR * (req.DeductionPercent / 100) / float64(req.DeductionYears)

	selfConsumed := req.AnnualProductionKWh * (req.SelfConsumptionPercent / 100)
	selfConsumed = math.Min(math.Max(selfConsumed, 0), req.AnnualProductionKWh)
	gridFed := math.Max(req.AnnualProductionKWh-selfConsumed, 0)

	savings := selfConsumed * req.EnergyPriceEURPerKWh * req.PrudenceFactor
	gridRevenue := gridFed * req.GridPriceEURPerKWh * req.PrudenceFactor

	netCost := installment - deduction - savings - gridRevenue
	delta := netCost - currentSpend

	message := "Paghi uguale o meno già da subito (stimato)."
	if delta > 0 {
		message = fmt.Sprintf("Paghi circa %.0f€ in più all'anno (stimato).", delta)
	}

	cashflow := make([]domain.CashflowYear, 0, projectionYears)
	for year := 1; year <= projectionYears; year++ {
		yearInstallment := 0.0
		if year <= req.FinancingYears {
			yearInstallment = installment
		}
		yearDeduction := 0.0
		if year <= req.DeductionYears {
			yearDeduction = deduction
		}
		cashflow = append(cashflow, domain.CashflowYear{
			Year:       year,
			NetCostEUR: yearInstallment - yearDeduction - savings - gridRevenue,
		})
	}

	return &domain.CalcResponse{
		CurrentAnnualSpendEUR: currentSpend,
		AnnualInstallmentEUR:  installment,
		AnnualDeductionEUR:    deduction,
		SelfConsumedKWh:       selfConsumed,
		GridFedKWh:            gridFed,
		BillSavingsEUR:        savings,
		GridRevenueEUR:        gridRevenue,
		NetAnnualCostEUR:      netCost,
		DeltaVsCurrentEUR:     delta,
		Message:               message,
		CashflowYears:         cashflow,
	}, nil
}

func flatInstallment(capital float64, years int) float64 {
	return capital / float64(years)
}

// amortizedInstallment derives the annual installment from the standard
// monthly amortization formula. A non-positive APR degenerates to the flat
// split.
func amortizedInstallment(capital float64, years int, aprPercent float64) float64 {
	if aprPercent <= 0 {
		return flatInstallment(capital, years)
	}
	monthlyRate := (aprPercent / 100) / 12
	months := years * 12
	if monthlyRate == 0 {
		return flatInstallment(capital, years)
	}
	monthly := capital * monthlyRate / (1 - math.Pow(1+monthlyRate, float64(-months)))
	return monthly * 12
}

func validate(req domain.CalcRequest) error {
	checks := []struct {
		field  string
		ok     bool
		detail string
	}{
		{"consumo_annuo_kwh", finite(req.AnnualConsumptionKWh) && req.AnnualConsumptionKWh > 0, "must be greater than 0"},
		{"prezzo_energia_eur_kwh", finite(req.EnergyPriceEURPerKWh) && req.EnergyPriceEURPerKWh > 0, "must be greater than 0"},
		{"quota_fissa_annua_eur", finite(req.FixedAnnualFeeEUR) && req.FixedAnnualFeeEUR >= 0, "must be at least 0"},
		{"costo_impianto_eur", finite(req.SystemCostEUR) && req.SystemCostEUR > 0, "must be greater than 0"},
		{"costo_finanziato_eur", req.FinancedAmountEUR == nil || (finite(*req.FinancedAmountEUR) && *req.FinancedAmountEUR >= 0), "must be at least 0"},
		{"anni_finanziamento", req.FinancingYears >= 1 && req.FinancingYears <= 30, "must be between 1 and 30"},
		{"taeg_annuo_percent", finite(req.APRPercent) && req.APRPercent >= 0, "must be at least 0"},
		{"rata_mensile_override_eur", req.MonthlyOverrideEUR == nil || (finite(*req.MonthlyOverrideEUR) && *req.MonthlyOverrideEUR >= 0), "must be at least 0"},
		{"produzione_annua_kwh", finite(req.AnnualProductionKWh) && req.AnnualProductionKWh > 0, "must be greater than 0"},
		{"autoconsumo_percent", finite(req.SelfConsumptionPercent) && req.SelfConsumptionPercent >= 0 && req.SelfConsumptionPercent <= 100, "must be between 0 and 100"},
		{"prezzo_gse_eur_kwh", finite(req.GridPriceEURPerKWh) && req.GridPriceEURPerKWh >= 0, "must be at least 0"},
		{"aliquota_detrazione_percent", finite(req.DeductionPercent) && req.DeductionPercent >= 0 && req.DeductionPercent <= 100, "must be between 0 and 100"},
		{"anni_detrazione", req.DeductionYears >= 1 && req.DeductionYears <= 20, "must be between 1 and 20"},
		{"fattore_prudenza", finite(req.PrudenceFactor) && req.PrudenceFactor >= 0.5 && req.PrudenceFactor <= 1.2, "must be between 0.5 and 1.2"},
	}
	for _, check := range checks {
		if !check.ok {
			return &ValidationError{Field: check.field, Detail: check.detail}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
