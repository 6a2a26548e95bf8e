package quote

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/offer"
	"github.com/cristal-orion/superagente/internal/pricing"
	"github.com/cristal-orion/superagente/internal/store"
	"github.com/cristal-orion/superagente/internal/xid"
)

var ErrSessionNotFound = errors.New("session not found")

// DefaultEnergyPriceEURPerKWh pre-fills new sessions and is restored when
// the customer's provider changes.
const DefaultEnergyPriceEURPerKWh = 0.30

// Providers lists the energy retailers offered in the provider picker.
var Providers = []string{
	"Enel Energia",
	"Eni Plenitude",
	"Edison",
	"Hera",
	"A2A Energia",
	"Iren",
	"Sorgenia",
	"Altro",
}

const (
	defaultDebounce  = 300 * time.Millisecond
	defaultTheme     = "light"
	recomputeTimeout = 15 * time.Second
	sessionTTL       = 30 * time.Minute
)

// DefaultForm returns the starting form for a fresh session. Consumption
// and system cost start empty so the projection stays in the error state
// until the agent fills them in.
func DefaultForm() domain.QuoteForm {
	return domain.QuoteForm{
		EnergyPriceEURPerKWh:   DefaultEnergyPriceEURPerKWh,
		FinancingYears:         10,
		UseFlatRate:            true,
		SelfConsumptionPercent: 40,
		GridPriceEURPerKWh:     0.10,
		DeductionPercent:       50,
		DeductionYears:         10,
		PrudenceFactor:         1,
	}
}

// Result is the session's last projection snapshot. Status tells the client
// whether Computation is current, still being recomputed, or replaced by a
// validation error.
type Result struct {
	Status      string       `json:"status"`
	Seq         uint64       `json:"seq"`
	Error       string       `json:"error,omitempty"`
	Computation *Computation `json:"computation,omitempty"`
}

// SessionView is the form-side snapshot handed to clients: the raw form,
// the current selection and the terms it offers.
type SessionView struct {
	ID             string             `json:"id"`
	Theme          string             `json:"theme"`
	Form           domain.QuoteForm   `json:"form"`
	OfferID        string             `json:"offer_id,omitempty"`
	OfferLabel     string             `json:"offer_label,omitempty"`
	TermMonths     int                `json:"term_months,omitempty"`
	AvailableTerms []int              `json:"available_terms,omitempty"`
	Request        domain.CalcRequest `json:"request"`
}

type session struct {
	id        string
	theme     string
	createdAt time.Time

	mu          sync.Mutex
	form        domain.QuoteForm
	selection   *offer.State
	seq         uint64
	timer       *time.Timer
	result      Result
	lastTouched time.Time

	// request/response pair backing the last ready result, kept for
	// quote issuance.
	lastRequest domain.CalcRequest
}

// Manager owns the live quoting sessions. Every form edit bumps the
// session's sequence number and schedules a debounced recompute; a
// projection that lands after a newer edit is dropped on the floor.
type Manager struct {
	computer *Computer
	debounce time.Duration

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewManager(computer *Computer, debounce time.Duration) *Manager {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Manager{
		computer: computer,
		debounce: debounce,
		sessions: make(map[string]*session),
	}
}

func (m *Manager) Create(req domain.SessionCreateRequest) domain.SessionInfo {
	form := DefaultForm()
	if req.Form != nil {
		form = *req.Form
	}
	theme := req.Theme
	if theme == "" {
		theme = defaultTheme
	}

	m.expireIdle()

	s := &session{
		id:          xid.New("sess"),
		theme:       theme,
		createdAt:   time.Now().UTC(),
		form:        form,
		selection:   offer.NewState(),
		result:      Result{Status: domain.SessionStatusIdle},
		lastTouched: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.schedule(s)
	return domain.SessionInfo{ID: s.id, Theme: s.theme, CreatedAt: s.createdAt}
}

func (m *Manager) get(id string) (*session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.mu.Lock()
	expired := time.Since(s.lastTouched) > sessionTTL
	if !expired {
		s.lastTouched = time.Now()
	}
	s.mu.Unlock()
	if expired {
		_ = m.Close(id)
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// expireIdle closes sessions untouched for longer than sessionTTL. Called on
// session creation so abandoned sessions do not accumulate.
func (m *Manager) expireIdle() {
	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		s.mu.Lock()
		if time.Since(s.lastTouched) > sessionTTL {
			stale = append(stale, id)
		}
		s.mu.Unlock()
	}
	m.mu.RUnlock()

	for _, id := range stale {
		_ = m.Close(id)
	}
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	s.seq++ // orphan any in-flight recompute
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return nil
}

// UpdateForm applies the set fields of the patch. A manual edit to a field
// the catalog selection controls drops the selection; the financing request
// from then on is built from the form alone.
func (m *Manager) UpdateForm(id string, patch domain.QuoteFormUpdate) (*SessionView, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	clearsSelection := false

	setFloat := func(dst *float64, src *float64, controlled bool) {
		if src == nil {
			return
		}
		*dst = *src
		if controlled {
			clearsSelection = true
		}
	}

	setFloat(&s.form.AnnualConsumptionKWh, patch.AnnualConsumptionKWh, false)
	setFloat(&s.form.EnergyPriceEURPerKWh, patch.EnergyPriceEURPerKWh, false)
	setFloat(&s.form.FixedAnnualFeeEUR, patch.FixedAnnualFeeEUR, false)
	setFloat(&s.form.SystemCostEUR, patch.SystemCostEUR, true)
	setFloat(&s.form.DownPaymentEUR, patch.DownPaymentEUR, false)
	setFloat(&s.form.FinancingYears, patch.FinancingYears, true)
	setFloat(&s.form.APRPercent, patch.APRPercent, true)
	setFloat(&s.form.AnnualProductionKWh, patch.AnnualProductionKWh, false)
	setFloat(&s.form.SelfConsumptionPercent, patch.SelfConsumptionPercent, false)
	setFloat(&s.form.GridPriceEURPerKWh, patch.GridPriceEURPerKWh, false)
	setFloat(&s.form.DeductionPercent, patch.DeductionPercent, false)
	setFloat(&s.form.DeductionYears, patch.DeductionYears, false)
	setFloat(&s.form.PrudenceFactor, patch.PrudenceFactor, false)

	if patch.UseFlatRate != nil {
		s.form.UseFlatRate = *patch.UseFlatRate
		clearsSelection = true
	}
	if patch.Provider != nil && *patch.Provider != s.form.Provider {
		s.form.Provider = *patch.Provider
		if patch.EnergyPriceEURPerKWh == nil {
			s.form.EnergyPriceEURPerKWh = DefaultEnergyPriceEURPerKWh
		}
	}
	if patch.Theme != nil {
		s.theme = *patch.Theme
	}

	if clearsSelection {
		s.selection.Clear()
	}

	view := s.viewLocked()
	s.mu.Unlock()

	m.schedule(s)
	return view, nil
}

// applyOffer installs a catalog item as the session's selection. The
// engine auto-picks a default term and overwrites the derived form fields.
func (m *Manager) applyOffer(id string, item domain.CatalogItem) (*SessionView, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.selection.SelectOffer(item, &s.form)
	view := s.viewLocked()
	s.mu.Unlock()

	m.schedule(s)
	return view, nil
}

// SelectTerm switches the repayment term of the selected offer. An invalid
// term leaves the session untouched and no recompute is scheduled.
func (m *Manager) SelectTerm(id string, months int) (*SessionView, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if err := s.selection.SelectTerm(months, &s.form); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	view := s.viewLocked()
	s.mu.Unlock()

	m.schedule(s)
	return view, nil
}

func (m *Manager) View(id string) (*SessionView, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	view := s.viewLocked()
	s.mu.Unlock()
	return view, nil
}

// Result returns the last projection snapshot for the session.
func (m *Manager) Result(id string) (*Result, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	snapshot := s.result
	s.mu.Unlock()
	return &snapshot, nil
}

// issueSnapshot returns what a saved quote needs: the priced request, its
// projection and the selection it came from. Only a ready session can be
// issued.
func (m *Manager) issueSnapshot(id string) (domain.CalcRequest, *domain.CalcResponse, *domain.CatalogItem, int, error) {
	s, err := m.get(id)
	if err != nil {
		return domain.CalcRequest{}, nil, nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result.Status != domain.SessionStatusReady || s.result.Computation == nil {
		return domain.CalcRequest{}, nil, nil, 0, store.ErrInvalidInput
	}
	item, term := s.selection.Selected()
	if item != nil {
		copied := *item
		item = &copied
	}
	return s.lastRequest, s.result.Computation.Response, item, term, nil
}

func (s *session) viewLocked() *SessionView {
	view := &SessionView{
		ID:      s.id,
		Theme:   s.theme,
		Form:    s.form,
		Request: s.selection.BuildRequest(s.form),
	}
	if item, term := s.selection.Selected(); item != nil {
		view.OfferID = item.ID
		view.OfferLabel = item.Label
		view.TermMonths = term
		view.AvailableTerms = s.selection.AvailableTerms()
	}
	return view
}

// schedule bumps the sequence, marks the session computing and arms
// the debounce timer. The previous timer, if still pending, is stopped so a
// burst of edits produces one recompute.
func (m *Manager) schedule(s *session) {
	s.mu.Lock()
	s.seq++
	mySeq := s.seq
	s.result.Status = domain.SessionStatusComputing
	s.result.Seq = mySeq
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(m.debounce, func() {
		m.recompute(s, mySeq)
	})
	s.mu.Unlock()
}

// recompute prices the session's current request. The sequence captured at
// scheduling time gates both the request build and the result store: if a
// newer edit arrived while the calculator ran, the stale projection is
// discarded.
func (m *Manager) recompute(s *session, mySeq uint64) {
	s.mu.Lock()
	if mySeq != s.seq {
		s.mu.Unlock()
		return
	}
	req := s.selection.BuildRequest(s.form)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()
	comp, err := m.computer.Compute(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if mySeq != s.seq {
		return
	}

	if err != nil {
		var vErr *pricing.ValidationError
		if errors.As(err, &vErr) {
			s.result = Result{Status: domain.SessionStatusError, Seq: mySeq, Error: vErr.Detail}
			return
		}
		log.Printf("[quote] WARN: projection failed for session %s: %v", s.id, err)
		s.result = Result{Status: domain.SessionStatusError, Seq: mySeq, Error: "calcolo non disponibile, riprova"}
		return
	}

	s.lastRequest = req
	s.result = Result{Status: domain.SessionStatusReady, Seq: mySeq, Computation: comp}
}
