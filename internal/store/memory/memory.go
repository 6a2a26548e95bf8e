package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/store"
	"github.com/cristal-orion/superagente/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	catalogByID     map[string]domain.CatalogItem
	quotesByID      map[string]domain.QuoteRecord
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_AGENT_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	agentPwd := envOr("SEED_AGENT_PASSWORD", "agent123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_AGENT_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_AGENT_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"agente", agentPwd, domain.RoleAgent},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func New() *Store {
	return &Store{
		catalogByID:     make(map[string]domain.CatalogItem),
		quotesByID:      make(map[string]domain.QuoteRecord),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func NewSeeded() *Store {
	items := []domain.CatalogItem{
		{
			ID: "pv-3kw", Label: "Impianto fotovoltaico 3 kW", Category: "fotovoltaico",
			PriceEUR: 7500, PowerKW: 3,
			MonthlyByTerm: map[int]float64{60: 152, 84: 115, 120: 87},
			APRByTerm:     map[int]float64{60: 5.9, 84: 6.2, 120: 6.5},
			Active:        true,
		},
		{
			ID: "pv-6kw", Label: "Impianto fotovoltaico 6 kW", Category: "fotovoltaico",
			PriceEUR: 13900, PowerKW: 6,
			MonthlyByTerm: map[int]float64{60: 281, 84: 213, 120: 161},
			APRByTerm:     map[int]float64{60: 5.9, 84: 6.2, 120: 6.5},
			Active:        true,
		},
		{
			ID: "pv-6kw-acc10", Label: "Impianto 6 kW con accumulo 10 kWh", Category: "fotovoltaico-accumulo",
			PriceEUR: 19900, PowerKW: 6, StorageKWh: 10,
			MonthlyByTerm: map[int]float64{84: 305, 120: 231},
			APRByTerm:     map[int]float64{84: 6.2, 120: 6.5},
			Active:        true,
		},
		{
			ID: "pv-10kw-acc15", Label: "Impianto 10 kW con accumulo 15 kWh", Category: "fotovoltaico-accumulo",
			PriceEUR: 28500, PowerKW: 10, StorageKWh: 15,
			MonthlyByTerm: map[int]float64{120: 330},
			Active:        true,
		},
	}

	catalog := make(map[string]domain.CatalogItem, len(items))
	for _, item := range items {
		catalog[item.ID] = item
	}

	s := New()
	s.catalogByID = catalog
	return s
}

func (s *Store) ListCatalogItems(_ context.Context, includeInactive bool) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.CatalogItem, 0, len(s.catalogByID))
	for _, item := range s.catalogByID {
		if !item.Active && !includeInactive {
			continue
		}
		items = append(items, cloneCatalogItem(item))
	}

	slices.SortFunc(items, func(a, b domain.CatalogItem) int {
		if a.Category == b.Category {
			return cmpString(a.ID, b.ID)
		}
		return cmpString(a.Category, b.Category)
	})

	return items, nil
}

func (s *Store) GetCatalogItem(_ context.Context, id string) (*domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.catalogByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyItem := cloneCatalogItem(item)
	return &copyItem, nil
}

func (s *Store) CreateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.Label == "" || item.PriceEUR <= 0 || item.PowerKW <= 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.catalogByID[item.ID]; exists {
		return nil, store.ErrAlreadyExists
	}

	item.Active = true
	s.catalogByID[item.ID] = cloneCatalogItem(item)
	created := cloneCatalogItem(item)
	return &created, nil
}

func (s *Store) UpdateCatalogItem(_ context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" || item.Label == "" || item.PriceEUR <= 0 || item.PowerKW <= 0 {
		return nil, store.ErrInvalidInput
	}
	if _, exists := s.catalogByID[item.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.catalogByID[item.ID] = cloneCatalogItem(item)
	updated := cloneCatalogItem(item)
	return &updated, nil
}

func (s *Store) ReplaceCatalog(_ context.Context, items []domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]domain.CatalogItem, len(items))
	for _, item := range items {
		if item.ID == "" || item.Label == "" || item.PriceEUR <= 0 || item.PowerKW <= 0 {
			return store.ErrInvalidInput
		}
		next[item.ID] = cloneCatalogItem(item)
	}
	s.catalogByID = next
	return nil
}

func (s *Store) CreateQuote(_ context.Context, quote domain.QuoteRecord) (*domain.QuoteRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(quote.Customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if quote.ID == "" {
		quote.ID = xid.New("quote")
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.quotesByID[quote.ID]; exists {
		return nil, store.ErrAlreadyExists
	}

	s.quotesByID[quote.ID] = cloneQuote(quote)
	saved := cloneQuote(quote)
	return &saved, nil
}

func (s *Store) GetQuoteByID(_ context.Context, id string) (*domain.QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quote, exists := s.quotesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyQuote := cloneQuote(quote)
	return &copyQuote, nil
}

func (s *Store) ListQuotes(_ context.Context, issuedBy string, from time.Time, to time.Time, limit int) ([]domain.QuoteRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.QuoteRecord, 0, 64)
	for _, quote := range s.quotesByID {
		if issuedBy != "" && quote.IssuedBy != issuedBy {
			continue
		}
		if !from.IsZero() && quote.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !quote.CreatedAt.Before(to) {
			continue
		}
		result = append(result, cloneQuote(quote))
	}

	slices.SortFunc(result, func(a, b domain.QuoteRecord) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrAlreadyExists
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleAgent
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) SetUserActive(_ context.Context, username string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Active = active
	s.usersByUsername[username] = user
	return nil
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneCatalogItem(src domain.CatalogItem) domain.CatalogItem {
	dup := src
	if src.MonthlyByTerm != nil {
		dup.MonthlyByTerm = make(map[int]float64, len(src.MonthlyByTerm))
		for term, monthly := range src.MonthlyByTerm {
			dup.MonthlyByTerm[term] = monthly
		}
	}
	if src.APRByTerm != nil {
		dup.APRByTerm = make(map[int]float64, len(src.APRByTerm))
		for term, apr := range src.APRByTerm {
			dup.APRByTerm[term] = apr
		}
	}
	return dup
}

func cloneQuote(src domain.QuoteRecord) domain.QuoteRecord {
	dup := src
	cashflow := make([]domain.CashflowYear, len(src.Response.CashflowYears))
	copy(cashflow, src.Response.CashflowYears)
	dup.Response.CashflowYears = cashflow
	return dup
}
