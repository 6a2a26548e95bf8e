package quote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/store"
)

// ErrForbidden is returned when the acting user's role does not permit the
// operation.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

// WithActor attaches the authenticated actor to the context for audit
// logging and role checks.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Service is the application core: catalog administration, live quoting
// sessions and issued-quote persistence, with audit logging on every
// mutation.
type Service struct {
	repo     store.Repository
	computer *Computer
	sessions *Manager
}

func New(repo store.Repository, computer *Computer, sessions *Manager) *Service {
	return &Service{
		repo:     repo,
		computer: computer,
		sessions: sessions,
	}
}

func (s *Service) Sessions() *Manager {
	return s.sessions
}

// Compute prices a request directly, outside any session. Used by the
// stateless calc endpoint.
func (s *Service) Compute(ctx context.Context, req domain.CalcRequest) (*Computation, error) {
	return s.computer.Compute(ctx, req)
}

// ListOffers returns the catalog visible to the caller. Agents only see
// active items; admins can ask for the full list.
func (s *Service) ListOffers(ctx context.Context, includeInactive bool) ([]domain.CatalogItem, error) {
	if includeInactive {
		if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
			return nil, err
		}
	}
	return s.repo.ListCatalogItems(ctx, includeInactive)
}

func (s *Service) GetOffer(ctx context.Context, id string) (*domain.CatalogItem, error) {
	return s.repo.GetCatalogItem(ctx, id)
}

func (s *Service) CreateOffer(ctx context.Context, req domain.CatalogItemCreateRequest) (*domain.CatalogItem, error) {
	if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}

	item := domain.CatalogItem{
		ID:            strings.TrimSpace(req.ID),
		Label:         strings.TrimSpace(req.Label),
		Category:      strings.TrimSpace(req.Category),
		PriceEUR:      req.PriceEUR,
		PowerKW:       req.PowerKW,
		StorageKWh:    req.StorageKWh,
		MonthlyByTerm: req.MonthlyByTerm,
		APRByTerm:     req.APRByTerm,
		Active:        true,
	}
	created, err := s.repo.CreateCatalogItem(ctx, item)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "catalog_item_created", "catalog_item", created.ID, fmt.Sprintf("label=%s prezzo=%.2f", created.Label, created.PriceEUR))
	return created, nil
}

func (s *Service) UpdateOffer(ctx context.Context, id string, req domain.CatalogItemUpdateRequest) (*domain.CatalogItem, error) {
	if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}

	current, err := s.repo.GetCatalogItem(ctx, id)
	if err != nil {
		return nil, err
	}
	item := *current
	if req.Label != nil {
		item.Label = strings.TrimSpace(*req.Label)
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
	}
	if req.PriceEUR != nil {
		item.PriceEUR = *req.PriceEUR
	}
	if req.PowerKW != nil {
		item.PowerKW = *req.PowerKW
	}
	if req.StorageKWh != nil {
		item.StorageKWh = *req.StorageKWh
	}
	if req.MonthlyByTerm != nil {
		item.MonthlyByTerm = *req.MonthlyByTerm
	}
	if req.APRByTerm != nil {
		item.APRByTerm = *req.APRByTerm
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	updated, err := s.repo.UpdateCatalogItem(ctx, item)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "catalog_item_updated", "catalog_item", id, "")
	return updated, nil
}

// DeactivateOffer hides an item from agents without losing the quotes that
// reference it.
func (s *Service) DeactivateOffer(ctx context.Context, id string) (*domain.CatalogItem, error) {
	inactive := false
	return s.UpdateOffer(ctx, id, domain.CatalogItemUpdateRequest{Active: &inactive})
}

// SelectOffer resolves the catalog item and installs it into the session.
// Inactive items are not selectable and report not-found, same as unknown
// IDs.
func (s *Service) SelectOffer(ctx context.Context, sessionID string, offerID string) (*SessionView, error) {
	item, err := s.repo.GetCatalogItem(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, store.ErrNotFound
	}
	return s.sessions.applyOffer(sessionID, *item)
}

// SaveQuote persists the session's current projection as an issued quote.
// The session must hold a ready result; the priced request, its projection
// and the selection are snapshotted so later catalog edits cannot change
// what the customer was shown.
func (s *Service) SaveQuote(ctx context.Context, req domain.QuoteCreateRequest) (*domain.QuoteRecord, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	calcReq, calcResp, item, term, err := s.sessions.issueSnapshot(req.SessionID)
	if err != nil {
		return nil, err
	}

	record := domain.QuoteRecord{
		Customer: req.Customer,
		Request:  calcReq,
		Response: *calcResp,
		IssuedBy: actor.Username,
	}
	if item != nil {
		record.OfferID = item.ID
		record.OfferLabel = item.Label
		record.TermMonths = term
	}

	created, err := s.repo.CreateQuote(ctx, record)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, "quote_issued", "quote", created.ID, fmt.Sprintf("customer=%s offer=%s", created.Customer.Name, created.OfferID))
	return created, nil
}

// ListQuotes returns issued quotes, newest first. Agents only see their own;
// admins see everything and can filter by issuer.
func (s *Service) ListQuotes(ctx context.Context, issuedBy string, from time.Time, to time.Time, limit int) ([]domain.QuoteRecord, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	if actor.Role != domain.RoleAdmin {
		issuedBy = actor.Username
	}
	return s.repo.ListQuotes(ctx, issuedBy, from, to, limit)
}

func (s *Service) GetQuote(ctx context.Context, id string) (*domain.QuoteRecord, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return nil, ErrForbidden
	}
	record, err := s.repo.GetQuoteByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && record.IssuedBy != actor.Username {
		return nil, store.ErrNotFound
	}
	return record, nil
}

// CreateAgent provisions a sales-agent account. Admin only.
func (s *Service) CreateAgent(ctx context.Context, req domain.AgentCreateRequest) (*domain.AgentUser, error) {
	if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 8 {
		return nil, store.ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash agent password: %w", err)
	}

	account := domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      domain.RoleAgent,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		return nil, err
	}
	s.logAudit(ctx, "agent_created", "user", account.Username, "")
	return &domain.AgentUser{
		Username:  account.Username,
		Role:      account.Role,
		Active:    account.Active,
		CreatedAt: account.CreatedAt,
	}, nil
}

func (s *Service) ListAgents(ctx context.Context) ([]domain.AgentUser, error) {
	if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	agents := make([]domain.AgentUser, 0, len(accounts))
	for _, account := range accounts {
		agents = append(agents, domain.AgentUser{
			Username:  account.Username,
			Role:      account.Role,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	return agents, nil
}

func (s *Service) SetAgentActive(ctx context.Context, username string, active bool) error {
	if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
		return err
	}
	actor, _ := ActorFromContext(ctx)
	username = strings.ToLower(strings.TrimSpace(username))
	if username == actor.Username {
		return store.ErrInvalidInput
	}
	if err := s.repo.SetUserActive(ctx, username, active); err != nil {
		return err
	}
	s.logAudit(ctx, "agent_active_changed", "user", username, fmt.Sprintf("active=%t", active))
	return nil
}

func (s *Service) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if err := s.requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, from, to, limit)
}

func (s *Service) requireRole(ctx context.Context, roles ...string) error {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// logAudit records a mutation. Audit failures never fail the operation.
func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
	})
	if err != nil {
		log.Printf("[quote] WARN: audit log write failed for action %s: %v", action, err)
	}
}
