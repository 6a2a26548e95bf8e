package offer

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cristal-orion/superagente/internal/domain"
)

// YieldKWhPerKWPerYear is the fixed production yield used to derive annual
// production from an offer's rated power.
const YieldKWhPerKWPerYear = 1650.0

// InvalidTermError reports a term selection that is not available for the
// current offer. State is left unchanged when it is returned.
type InvalidTermError struct {
	TermMonths int
	OfferID    string
}

func (e *InvalidTermError) Error() string {
	return fmt.Sprintf("term %d months not available for offer %s", e.TermMonths, e.OfferID)
}

// State is the session-scoped selection context: the chosen catalog offer
// and repayment term, if any. All mutation goes through its methods; the
// term is always a key of the offer's installment map when set.
type State struct {
	offer      *domain.CatalogItem
	termMonths int
}

func NewState() *State {
	return &State{}
}

// SelectOffer sets the current offer, clears the term and auto-selects a
// default one: 120 months if the offer lists it, else the smallest. Derived
// form fields are overwritten when a term lands. An offer without terms
// leaves the financing fields for manual entry.
func (s *State) SelectOffer(item domain.CatalogItem, form *domain.QuoteForm) {
	copied := item
	s.offer = &copied
	s.termMonths = 0

	terms := s.AvailableTerms()
	if len(terms) == 0 {
		return
	}
	picked := terms[0]
	for _, t := range terms {
		if t == 120 {
			picked = 120
			break
		}
	}
	s.termMonths = picked
	s.applyDerivedFields(form)
}

// SelectTerm switches the repayment term. The term must be a key of the
// current offer's installment map.
func (s *State) SelectTerm(months int, form *domain.QuoteForm) error {
	if s.offer == nil {
		return &InvalidTermError{TermMonths: months}
	}
	if _, ok := s.offer.MonthlyByTerm[months]; !ok {
		return &InvalidTermError{TermMonths: months, OfferID: s.offer.ID}
	}
	s.termMonths = months
	s.applyDerivedFields(form)
	return nil
}

// Clear drops the selection. Called when the user manually edits a field the
// catalog selection would otherwise control, or picks a new item.
func (s *State) Clear() {
	s.offer = nil
	s.termMonths = 0
}

func (s *State) Selected() (*domain.CatalogItem, int) {
	return s.offer, s.termMonths
}

func (s *State) HasSelection() bool {
	return s.offer != nil && s.termMonths > 0
}

// AvailableTerms returns the offer's repayment terms, ascending.
func (s *State) AvailableTerms() []int {
	if s.offer == nil {
		return nil
	}
	terms := make([]int, 0, len(s.offer.MonthlyByTerm))
	for months := range s.offer.MonthlyByTerm {
		terms = append(terms, months)
	}
	sort.Ints(terms)
	return terms
}

// applyDerivedFields pushes the catalog-derived values into the form:
// system cost from the offer price, production from rated power, financing
// duration from the term. Catalog terms are multiples of 12, so the year
// division is exact. A positive APR for the term switches the flat-rate
// toggle off.
func (s *State) applyDerivedFields(form *domain.QuoteForm) {
	if form == nil || s.offer == nil || s.termMonths == 0 {
		return
	}
	form.SystemCostEUR = s.offer.PriceEUR
	form.AnnualProductionKWh = s.offer.PowerKW * YieldKWhPerKWPerYear
	form.FinancingYears = float64(s.termMonths) / 12.0

	if apr, ok := s.offer.APRByTerm[s.termMonths]; ok && isFinite(apr) && apr > 0 {
		form.UseFlatRate = false
		form.APRPercent = apr
	}
}

// ComputeFinancedAmount returns the offer price minus the down payment,
// floored at zero. Nil when no offer is selected (manual system cost is used
// as-is). A down payment that is not a finite non-negative number counts as
// zero, so the full price comes back.
func (s *State) ComputeFinancedAmount(downPaymentEUR float64) *float64 {
	if s.offer == nil {
		return nil
	}
	price := s.offer.PriceEUR
	if !isFinite(downPaymentEUR) || downPaymentEUR < 0 {
		return &price
	}
	financed := math.Max(price-downPaymentEUR, 0)
	return &financed
}

// financingInput is what the tie-break rules see for the current selection.
type financingInput struct {
	financedEUR    float64
	fullPriceEUR   float64
	catalogAPR     float64
	catalogMonthly float64
}

// financingOutcome is a rule's verdict. Unset pointers leave the form's raw
// values in force.
type financingOutcome struct {
	overrideEUR *float64
	useFlatRate *bool
	aprPercent  *float64
}

type financingRule struct {
	name  string
	apply func(in financingInput) (financingOutcome, bool)
}

// financingRules are evaluated in order; the first applicable rule wins.
// The order is load-bearing: a fully paid offer needs no interest at all, a
// catalog APR is authoritative over the flat installment, and the scaled
// installment is a linear approximation between the discounted and the
// full-price loan (kept as-is, downstream consumers rely on it).
var financingRules = []financingRule{
	{
		name: "zero-financed",
		apply: func(in financingInput) (financingOutcome, bool) {
			if in.financedEUR != 0 {
				return financingOutcome{}, false
			}
			zero := 0.0
			return financingOutcome{overrideEUR: &zero}, true
		},
	},
	{
		name: "catalog-apr",
		apply: func(in financingInput) (financingOutcome, bool) {
			if !isFinite(in.catalogAPR) || in.catalogAPR <= 0 {
				return financingOutcome{}, false
			}
			flat := false
			apr := in.catalogAPR
			return financingOutcome{useFlatRate: &flat, aprPercent: &apr}, true
		},
	},
	{
		name: "scaled-installment",
		apply: func(in financingInput) (financingOutcome, bool) {
			if !isFinite(in.catalogMonthly) || in.catalogMonthly <= 0 || in.fullPriceEUR <= 0 {
				return financingOutcome{}, false
			}
			scaled := in.catalogMonthly * (in.financedEUR / in.fullPriceEUR)
			return financingOutcome{overrideEUR: &scaled}, true
		},
	},
	{
		name: "manual-passthrough",
		apply: func(financingInput) (financingOutcome, bool) {
			return financingOutcome{}, true
		},
	},
}

// BuildRequest assembles the normalized pricing payload from the selection
// and the raw form. Pure: no state is mutated, no I/O happens. With no
// active selection everything is taken verbatim from the form.
func (s *State) BuildRequest(form domain.QuoteForm) domain.CalcRequest {
	req := domain.CalcRequest{
		AnnualConsumptionKWh:   form.AnnualConsumptionKWh,
		EnergyPriceEURPerKWh:   form.EnergyPriceEURPerKWh,
		FixedAnnualFeeEUR:      form.FixedAnnualFeeEUR,
		SystemCostEUR:          form.SystemCostEUR,
		FinancingYears:         truncYears(form.FinancingYears),
		UseFlatRate:            form.UseFlatRate,
		APRPercent:             form.APRPercent,
		AnnualProductionKWh:    form.AnnualProductionKWh,
		SelfConsumptionPercent: form.SelfConsumptionPercent,
		GridPriceEURPerKWh:     form.GridPriceEURPerKWh,
		DeductionPercent:       form.DeductionPercent,
		DeductionYears:         truncYears(form.DeductionYears),
		PrudenceFactor:         form.PrudenceFactor,
	}

	if !s.HasSelection() {
		return req
	}

	fullPrice := s.offer.PriceEUR
	financedSafe := fullPrice
	if financed := s.ComputeFinancedAmount(form.DownPaymentEUR); financed != nil && isFinite(*financed) {
		financedSafe = *financed
	}
	req.FinancedAmountEUR = &financedSafe

	in := financingInput{
		financedEUR:    financedSafe,
		fullPriceEUR:   fullPrice,
		catalogAPR:     s.offer.APRByTerm[s.termMonths],
		catalogMonthly: s.offer.MonthlyByTerm[s.termMonths],
	}
	for _, rule := range financingRules {
		outcome, ok := rule.apply(in)
		if !ok {
			continue
		}
		if outcome.overrideEUR != nil {
			req.MonthlyOverrideEUR = outcome.overrideEUR
		}
		if outcome.useFlatRate != nil {
			req.UseFlatRate = *outcome.useFlatRate
		}
		if outcome.aprPercent != nil {
			req.APRPercent = *outcome.aprPercent
		}
		break
	}

	return req
}

// ParseNumber coerces a raw text field to a finite number. ok=false means
// "absent": callers substitute their documented fallback, never zero.
func ParseNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || !isFinite(value) {
		return 0, false
	}
	return value, true
}

func truncYears(years float64) int {
	if !isFinite(years) {
		return 0
	}
	return int(math.Trunc(years))
}

func isFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
