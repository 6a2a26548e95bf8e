package store

import (
	"context"
	"errors"
	"time"

	"github.com/cristal-orion/superagente/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
)

type Repository interface {
	ListCatalogItems(ctx context.Context, includeInactive bool) ([]domain.CatalogItem, error)
	GetCatalogItem(ctx context.Context, id string) (*domain.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
	ReplaceCatalog(ctx context.Context, items []domain.CatalogItem) error
	CreateQuote(ctx context.Context, quote domain.QuoteRecord) (*domain.QuoteRecord, error)
	GetQuoteByID(ctx context.Context, id string) (*domain.QuoteRecord, error)
	ListQuotes(ctx context.Context, issuedBy string, from time.Time, to time.Time, limit int) ([]domain.QuoteRecord, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	SetUserActive(ctx context.Context, username string, active bool) error
}
