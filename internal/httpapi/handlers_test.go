package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/pricing"
	"github.com/cristal-orion/superagente/internal/quote"
	"github.com/cristal-orion/superagente/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	computer := quote.NewComputer(pricing.NewEngine(), nil, time.Minute)
	sessions := quote.NewManager(computer, 5*time.Millisecond)
	svc := quote.New(repo, computer, sessions)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCatalog_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleCatalog_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Items []domain.CatalogItem `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) == 0 {
		t.Fatalf("expected seeded catalog items, got none")
	}
}

func TestHandleCalc_ValidationErrorIs422(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"consumo_annuo_kwh": -5,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calc", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleCalc_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"consumo_annuo_kwh":           3200,
		"prezzo_energia_eur_kwh":      0.30,
		"quota_fissa_annua_eur":       120,
		"costo_impianto_eur":          10000,
		"costo_finanziato_eur":        nil,
		"anni_finanziamento":          10,
		"usa_rata_semplice":           true,
		"taeg_annuo_percent":          0,
		"rata_mensile_override_eur":   nil,
		"produzione_annua_kwh":        4950,
		"autoconsumo_percent":         40,
		"prezzo_gse_eur_kwh":          0.10,
		"aliquota_detrazione_percent": 50,
		"anni_detrazione":             10,
		"fattore_prudenza":            1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/calc", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body quote.Computation
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Response == nil || len(body.Response.CashflowYears) != 25 {
		t.Fatalf("expected full projection in response")
	}
	if len(body.Donut.Segments) == 0 || len(body.Bars.Bars) == 0 {
		t.Fatalf("expected chart layouts in response")
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	do := func(method string, path string, payload any) *httptest.ResponseRecorder {
		t.Helper()
		var body *bytes.Reader
		if payload != nil {
			raw, _ := json.Marshal(payload)
			body = bytes.NewReader(raw)
		} else {
			body = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-CSRF-Token", csrf)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/v1/sessions", map[string]any{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var created struct {
		Session domain.SessionInfo `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	sessionID := created.Session.ID

	rec = do(http.MethodPatch, "/api/v1/sessions/"+sessionID+"/form", map[string]any{
		"consumo_annuo_kwh": 3200,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch form: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/select-offer", map[string]any{
		"offer_id": "pv-6kw",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("select offer: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var selected struct {
		Session quote.SessionView `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&selected); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if selected.Session.OfferID != "pv-6kw" || selected.Session.TermMonths != 120 {
		t.Fatalf("unexpected selection %+v", selected.Session)
	}

	rec = do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/select-term", map[string]any{
		"term_months": 48,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid term: expected 400, got %d", rec.Code)
	}

	// poll until the debounced projection is ready
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = do(http.MethodGet, "/api/v1/sessions/"+sessionID+"/result", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("result: expected 200, got %d", rec.Code)
		}
		var result quote.Result
		if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
			t.Fatalf("decode result: %v", err)
		}
		if result.Status == domain.SessionStatusReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("projection never became ready, last status %q error %q", result.Status, result.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}

	rec = do(http.MethodPost, "/api/v1/quotes", map[string]any{
		"session_id": sessionID,
		"customer":   map[string]string{"name": "Mario Rossi"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("save quote: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var saved struct {
		Quote domain.QuoteRecord `json:"quote"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode quote: %v", err)
	}

	rec = do(http.MethodGet, "/api/v1/quotes/"+saved.Quote.ID+"/pdf", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("quote pdf: expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("quote pdf content type = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("quote pdf body does not look like a PDF")
	}

	rec = do(http.MethodDelete, "/api/v1/sessions/"+sessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close session: expected 200, got %d", rec.Code)
	}
	rec = do(http.MethodGet, "/api/v1/sessions/"+sessionID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("closed session: expected 404, got %d", rec.Code)
	}
}

func TestCatalogMutationForbiddenForAgents(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)

	body, _ := json.Marshal(domain.LoginRequest{Username: "agente", Password: "agent123"})
	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	loginReq.Header.Set("Content-Type", "application/json")
	loginRec := httptest.NewRecorder()
	handler.ServeHTTP(loginRec, loginReq)
	if loginRec.Code != http.StatusOK {
		t.Fatalf("agent login failed: %d", loginRec.Code)
	}
	var loginResp domain.LoginResponse
	if err := json.NewDecoder(loginRec.Body).Decode(&loginResp); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	price := 100.0
	payload, _ := json.Marshal(domain.CatalogItemUpdateRequest{PriceEUR: &price})
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/catalog/pv-3kw", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+loginResp.AccessToken)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for agent catalog patch, got %d", rec.Code)
	}
}
