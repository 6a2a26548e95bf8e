package domain

import "time"

// CatalogItem is a purchasable photovoltaic system. The JSON field names
// follow the catalog document consumed by the sales frontends; the two term
// maps are keyed by repayment duration in whole months.
type CatalogItem struct {
	ID            string          `json:"id" yaml:"id"`
	Label         string          `json:"label" yaml:"label"`
	Category      string          `json:"category" yaml:"category"`
	PriceEUR      float64         `json:"prezzo_eur" yaml:"prezzo_eur"`
	PowerKW       float64         `json:"potenza_kw" yaml:"potenza_kw"`
	StorageKWh    float64         `json:"accumulo_kwh,omitempty" yaml:"accumulo_kwh,omitempty"`
	MonthlyByTerm map[int]float64 `json:"rate_mensili_eur" yaml:"rate_mensili_eur"`
	APRByTerm     map[int]float64 `json:"taeg_annuo_percent_by_term,omitempty" yaml:"taeg_annuo_percent_by_term,omitempty"`
	Active        bool            `json:"active" yaml:"active"`
}

// CatalogDocument is the on-disk catalog file shape (YAML or JSON).
type CatalogDocument struct {
	Items []CatalogItem `json:"items" yaml:"items"`
}

type CatalogItemCreateRequest struct {
	ID            string          `json:"id"`
	Label         string          `json:"label"`
	Category      string          `json:"category"`
	PriceEUR      float64         `json:"prezzo_eur"`
	PowerKW       float64         `json:"potenza_kw"`
	StorageKWh    float64         `json:"accumulo_kwh,omitempty"`
	MonthlyByTerm map[int]float64 `json:"rate_mensili_eur"`
	APRByTerm     map[int]float64 `json:"taeg_annuo_percent_by_term,omitempty"`
}

type CatalogItemUpdateRequest struct {
	Label         *string          `json:"label,omitempty"`
	Category      *string          `json:"category,omitempty"`
	PriceEUR      *float64         `json:"prezzo_eur,omitempty"`
	PowerKW       *float64         `json:"potenza_kw,omitempty"`
	StorageKWh    *float64         `json:"accumulo_kwh,omitempty"`
	MonthlyByTerm *map[int]float64 `json:"rate_mensili_eur,omitempty"`
	APRByTerm     *map[int]float64 `json:"taeg_annuo_percent_by_term,omitempty"`
	Active        *bool            `json:"active,omitempty"`
}

// CalcRequest is the normalized financing payload sent to the pricing
// calculator. Field names are the pricing wire contract and must not change.
type CalcRequest struct {
	AnnualConsumptionKWh   float64  `json:"consumo_annuo_kwh"`
	EnergyPriceEURPerKWh   float64  `json:"prezzo_energia_eur_kwh"`
	FixedAnnualFeeEUR      float64  `json:"quota_fissa_annua_eur"`
	SystemCostEUR          float64  `json:"costo_impianto_eur"`
	FinancedAmountEUR      *float64 `json:"costo_finanziato_eur"`
	FinancingYears         int      `json:"anni_finanziamento"`
	UseFlatRate            bool     `json:"usa_rata_semplice"`
	APRPercent             float64  `json:"taeg_annuo_percent"`
	MonthlyOverrideEUR     *float64 `json:"rata_mensile_override_eur"`
	AnnualProductionKWh    float64  `json:"produzione_annua_kwh"`
	SelfConsumptionPercent float64  `json:"autoconsumo_percent"`
	GridPriceEURPerKWh     float64  `json:"prezzo_gse_eur_kwh"`
	DeductionPercent       float64  `json:"aliquota_detrazione_percent"`
	DeductionYears         int      `json:"anni_detrazione"`
	PrudenceFactor         float64  `json:"fattore_prudenza"`
}

type CashflowYear struct {
	Year       int     `json:"anno"`
	NetCostEUR float64 `json:"costo_netto_eur"`
}

// CalcResponse is the pricing calculator's projection: annual aggregate
// figures plus a 25-year cashflow series in chronological order.
type CalcResponse struct {
	CurrentAnnualSpendEUR float64        `json:"spesa_annua_attuale_eur"`
	AnnualInstallmentEUR  float64        `json:"rata_annua_impianto_eur"`
	AnnualDeductionEUR    float64        `json:"detrazione_annua_eur"`
	SelfConsumedKWh       float64        `json:"kwh_autoconsumati"`
	GridFedKWh            float64        `json:"kwh_immessi"`
	BillSavingsEUR        float64        `json:"risparmio_bolletta_eur"`
	GridRevenueEUR        float64        `json:"ricavo_gse_eur"`
	NetAnnualCostEUR      float64        `json:"costo_netto_annuo_eur"`
	DeltaVsCurrentEUR     float64        `json:"delta_vs_spesa_attuale_eur"`
	Message               string         `json:"messaggio"`
	CashflowYears         []CashflowYear `json:"cashflow_anni"`
}

// ChartSegment is a transient slice of the donut breakdown.
type ChartSegment struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// QuoteForm holds the raw user-editable form values. It is the manual-entry
// side of the reconciliation: catalog selection overwrites the derived
// fields, manual edits to those fields drop the selection.
type QuoteForm struct {
	AnnualConsumptionKWh   float64 `json:"consumo_annuo_kwh"`
	EnergyPriceEURPerKWh   float64 `json:"prezzo_energia_eur_kwh"`
	FixedAnnualFeeEUR      float64 `json:"quota_fissa_annua_eur"`
	SystemCostEUR          float64 `json:"costo_impianto_eur"`
	DownPaymentEUR         float64 `json:"anticipo_eur"`
	FinancingYears         float64 `json:"anni_finanziamento"`
	UseFlatRate            bool    `json:"usa_rata_semplice"`
	APRPercent             float64 `json:"taeg_annuo_percent"`
	AnnualProductionKWh    float64 `json:"produzione_annua_kwh"`
	SelfConsumptionPercent float64 `json:"autoconsumo_percent"`
	GridPriceEURPerKWh     float64 `json:"prezzo_gse_eur_kwh"`
	DeductionPercent       float64 `json:"aliquota_detrazione_percent"`
	DeductionYears         float64 `json:"anni_detrazione"`
	PrudenceFactor         float64 `json:"fattore_prudenza"`
	Provider               string  `json:"fornitore,omitempty"`
}

type QuoteFormUpdate struct {
	AnnualConsumptionKWh   *float64 `json:"consumo_annuo_kwh,omitempty"`
	EnergyPriceEURPerKWh   *float64 `json:"prezzo_energia_eur_kwh,omitempty"`
	FixedAnnualFeeEUR      *float64 `json:"quota_fissa_annua_eur,omitempty"`
	SystemCostEUR          *float64 `json:"costo_impianto_eur,omitempty"`
	DownPaymentEUR         *float64 `json:"anticipo_eur,omitempty"`
	FinancingYears         *float64 `json:"anni_finanziamento,omitempty"`
	UseFlatRate            *bool    `json:"usa_rata_semplice,omitempty"`
	APRPercent             *float64 `json:"taeg_annuo_percent,omitempty"`
	AnnualProductionKWh    *float64 `json:"produzione_annua_kwh,omitempty"`
	SelfConsumptionPercent *float64 `json:"autoconsumo_percent,omitempty"`
	GridPriceEURPerKWh     *float64 `json:"prezzo_gse_eur_kwh,omitempty"`
	DeductionPercent       *float64 `json:"aliquota_detrazione_percent,omitempty"`
	DeductionYears         *float64 `json:"anni_detrazione,omitempty"`
	PrudenceFactor         *float64 `json:"fattore_prudenza,omitempty"`
	Provider               *string  `json:"fornitore,omitempty"`
	Theme                  *string  `json:"theme,omitempty"`
}

type SessionCreateRequest struct {
	Theme string            `json:"theme,omitempty"`
	Form  *QuoteForm        `json:"form,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

type SessionInfo struct {
	ID        string    `json:"id"`
	Theme     string    `json:"theme"`
	CreatedAt time.Time `json:"created_at"`
}

type SelectOfferRequest struct {
	OfferID string `json:"offer_id"`
}

type SelectTermRequest struct {
	TermMonths int `json:"term_months"`
}

// QuoteCustomer identifies the recipient of an issued quote document.
type QuoteCustomer struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// QuoteRecord is a persisted issued quote: the customer, the request that
// was priced and the projection it produced, snapshotted at issue time.
type QuoteRecord struct {
	ID         string        `json:"id"`
	Customer   QuoteCustomer `json:"customer"`
	OfferID    string        `json:"offer_id,omitempty"`
	OfferLabel string        `json:"offer_label,omitempty"`
	TermMonths int           `json:"term_months,omitempty"`
	Request    CalcRequest   `json:"request"`
	Response   CalcResponse  `json:"response"`
	IssuedBy   string        `json:"issued_by"`
	CreatedAt  time.Time     `json:"created_at"`
}

type QuoteCreateRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	Customer  QuoteCustomer `json:"customer"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type AgentCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AgentUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	SessionStatusIdle      = "idle"
	SessionStatusComputing = "computing"
	SessionStatusReady     = "ready"
	SessionStatusError     = "error"
)

const (
	RoleAgent = "agent"
	RoleAdmin = "admin"
)
