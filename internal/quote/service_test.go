package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/pricing"
	"github.com/cristal-orion/superagente/internal/store"
	"github.com/cristal-orion/superagente/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.NewSeeded()
	computer := NewComputer(pricing.NewEngine(), nil, time.Minute)
	return New(repo, computer, NewManager(computer, 5*time.Millisecond)), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
}

func agentCtx(username string) context.Context {
	return WithActor(context.Background(), domain.Actor{Username: username, Role: domain.RoleAgent})
}

func TestCreateOfferRequiresAdmin(t *testing.T) {
	svc, _ := newTestService(t)

	req := domain.CatalogItemCreateRequest{
		ID: "pv-test", Label: "Test", Category: "fotovoltaico",
		PriceEUR: 9000, PowerKW: 4,
		MonthlyByTerm: map[int]float64{120: 100},
	}

	if _, err := svc.CreateOffer(agentCtx("paola"), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("agent create err = %v, want ErrForbidden", err)
	}
	if _, err := svc.CreateOffer(context.Background(), req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous create err = %v, want ErrForbidden", err)
	}

	created, err := svc.CreateOffer(adminCtx(), req)
	if err != nil {
		t.Fatalf("admin create err = %v", err)
	}
	if !created.Active {
		t.Fatalf("new offer should start active")
	}

	logs, err := svc.ListAuditLogs(adminCtx(), time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("ListAuditLogs: %v", err)
	}
	if len(logs) == 0 || logs[0].Action != "catalog_item_created" || logs[0].ActorUsername != "admin" {
		t.Fatalf("audit trail missing create entry: %+v", logs)
	}
}

func TestUpdateOfferPatchesFields(t *testing.T) {
	svc, _ := newTestService(t)

	price := 7999.0
	active := false
	updated, err := svc.UpdateOffer(adminCtx(), "pv-3kw", domain.CatalogItemUpdateRequest{
		PriceEUR: &price,
		Active:   &active,
	})
	if err != nil {
		t.Fatalf("UpdateOffer: %v", err)
	}
	if updated.PriceEUR != 7999 || updated.Active {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Label == "" || len(updated.MonthlyByTerm) == 0 {
		t.Fatalf("untouched fields lost: %+v", updated)
	}

	if _, err := svc.UpdateOffer(adminCtx(), "missing", domain.CatalogItemUpdateRequest{PriceEUR: &price}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update of unknown offer err = %v", err)
	}
}

func TestListOffersHidesInactiveFromAgents(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.DeactivateOffer(adminCtx(), "pv-3kw"); err != nil {
		t.Fatalf("DeactivateOffer: %v", err)
	}

	visible, err := svc.ListOffers(agentCtx("paola"), false)
	if err != nil {
		t.Fatalf("ListOffers: %v", err)
	}
	for _, item := range visible {
		if item.ID == "pv-3kw" {
			t.Fatalf("inactive offer still listed for agents")
		}
	}

	if _, err := svc.ListOffers(agentCtx("paola"), true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("agent full-list err = %v, want ErrForbidden", err)
	}
	all, err := svc.ListOffers(adminCtx(), true)
	if err != nil {
		t.Fatalf("admin ListOffers: %v", err)
	}
	if len(all) != len(visible)+1 {
		t.Fatalf("admin list has %d items, agents see %d", len(all), len(visible))
	}
}

func TestSelectOfferRejectsInactive(t *testing.T) {
	svc, _ := newTestService(t)
	info := svc.Sessions().Create(domain.SessionCreateRequest{})

	if _, err := svc.DeactivateOffer(adminCtx(), "pv-3kw"); err != nil {
		t.Fatalf("DeactivateOffer: %v", err)
	}
	if _, err := svc.SelectOffer(context.Background(), info.ID, "pv-3kw"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("inactive select err = %v, want ErrNotFound", err)
	}

	view, err := svc.SelectOffer(context.Background(), info.ID, "pv-6kw")
	if err != nil {
		t.Fatalf("SelectOffer: %v", err)
	}
	if view.OfferID != "pv-6kw" || view.TermMonths != 120 {
		t.Fatalf("selection view = %+v", view)
	}
	if view.Form.SystemCostEUR != 13900 {
		t.Fatalf("derived system cost = %v", view.Form.SystemCostEUR)
	}
}

func TestSaveQuoteSnapshotsSession(t *testing.T) {
	svc, _ := newTestService(t)
	m := svc.Sessions()
	info := m.Create(domain.SessionCreateRequest{})

	consumption := 4200.0
	if _, err := m.UpdateForm(info.ID, domain.QuoteFormUpdate{AnnualConsumptionKWh: &consumption}); err != nil {
		t.Fatalf("UpdateForm: %v", err)
	}
	if _, err := svc.SelectOffer(context.Background(), info.ID, "pv-6kw"); err != nil {
		t.Fatalf("SelectOffer: %v", err)
	}
	waitForStatus(t, m, info.ID, domain.SessionStatusReady)

	ctx := agentCtx("paola")
	saved, err := svc.SaveQuote(ctx, domain.QuoteCreateRequest{
		SessionID: info.ID,
		Customer:  domain.QuoteCustomer{Name: "Mario Rossi", Email: "mario@example.com"},
	})
	if err != nil {
		t.Fatalf("SaveQuote: %v", err)
	}
	if saved.ID == "" || saved.IssuedBy != "paola" {
		t.Fatalf("saved quote %+v", saved)
	}
	if saved.OfferID != "pv-6kw" || saved.TermMonths != 120 {
		t.Fatalf("selection not snapshotted: %+v", saved)
	}
	if saved.Request.SystemCostEUR != 13900 || saved.Request.FinancedAmountEUR == nil {
		t.Fatalf("priced request not snapshotted: %+v", saved.Request)
	}
	if len(saved.Response.CashflowYears) != 25 {
		t.Fatalf("projection not snapshotted, %d cashflow years", len(saved.Response.CashflowYears))
	}

	// a later catalog edit does not touch the stored quote
	price := 999.0
	if _, err := svc.UpdateOffer(adminCtx(), "pv-6kw", domain.CatalogItemUpdateRequest{PriceEUR: &price}); err != nil {
		t.Fatalf("UpdateOffer: %v", err)
	}
	reloaded, err := svc.GetQuote(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if reloaded.Request.SystemCostEUR != 13900 {
		t.Fatalf("stored quote changed after catalog edit: %v", reloaded.Request.SystemCostEUR)
	}
}

func TestSaveQuoteRejectsUnreadySession(t *testing.T) {
	svc, _ := newTestService(t)
	info := svc.Sessions().Create(domain.SessionCreateRequest{})

	// default form never validates, so the session sits in the error state
	waitForStatus(t, svc.Sessions(), info.ID, domain.SessionStatusError)

	_, err := svc.SaveQuote(agentCtx("paola"), domain.QuoteCreateRequest{
		SessionID: info.ID,
		Customer:  domain.QuoteCustomer{Name: "Mario Rossi"},
	})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("SaveQuote on unready session err = %v", err)
	}

	_, err = svc.SaveQuote(agentCtx("paola"), domain.QuoteCreateRequest{SessionID: info.ID})
	if !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("SaveQuote without customer name err = %v", err)
	}
}

func TestListQuotesScopedToAgent(t *testing.T) {
	svc, _ := newTestService(t)
	m := svc.Sessions()

	issue := func(agent string, customer string) *domain.QuoteRecord {
		info := m.Create(domain.SessionCreateRequest{})
		consumption := 3000.0
		if _, err := m.UpdateForm(info.ID, domain.QuoteFormUpdate{AnnualConsumptionKWh: &consumption}); err != nil {
			t.Fatalf("UpdateForm: %v", err)
		}
		if _, err := svc.SelectOffer(context.Background(), info.ID, "pv-3kw"); err != nil {
			t.Fatalf("SelectOffer: %v", err)
		}
		waitForStatus(t, m, info.ID, domain.SessionStatusReady)
		saved, err := svc.SaveQuote(agentCtx(agent), domain.QuoteCreateRequest{
			SessionID: info.ID,
			Customer:  domain.QuoteCustomer{Name: customer},
		})
		if err != nil {
			t.Fatalf("SaveQuote: %v", err)
		}
		return saved
	}

	paolaQuote := issue("paola", "Cliente A")
	issue("marco", "Cliente B")

	mine, err := svc.ListQuotes(agentCtx("paola"), "", time.Time{}, time.Time{}, 50)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if len(mine) != 1 || mine[0].IssuedBy != "paola" {
		t.Fatalf("agent sees %+v", mine)
	}

	all, err := svc.ListQuotes(adminCtx(), "", time.Time{}, time.Time{}, 50)
	if err != nil {
		t.Fatalf("admin ListQuotes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d quotes, want 2", len(all))
	}

	if _, err := svc.GetQuote(agentCtx("marco"), paolaQuote.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-agent GetQuote err = %v", err)
	}
	if _, err := svc.GetQuote(adminCtx(), paolaQuote.ID); err != nil {
		t.Fatalf("admin GetQuote err = %v", err)
	}
}

func TestCreateAgentValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.CreateAgent(agentCtx("paola"), domain.AgentCreateRequest{Username: "x", Password: "longenough"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("agent-created-agent err = %v", err)
	}
	if _, err := svc.CreateAgent(adminCtx(), domain.AgentCreateRequest{Username: "nuovo", Password: "short"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("short password err = %v", err)
	}

	created, err := svc.CreateAgent(adminCtx(), domain.AgentCreateRequest{Username: "  Nuovo ", Password: "longenough"})
	if err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}
	if created.Username != "nuovo" || created.Role != domain.RoleAgent || !created.Active {
		t.Fatalf("created agent %+v", created)
	}

	if err := svc.SetAgentActive(adminCtx(), "admin", false); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("self-deactivation err = %v", err)
	}
	if err := svc.SetAgentActive(adminCtx(), "nuovo", false); err != nil {
		t.Fatalf("SetAgentActive: %v", err)
	}
}
