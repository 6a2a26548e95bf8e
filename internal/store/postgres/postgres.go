package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cristal-orion/superagente/internal/domain"
	"github.com/cristal-orion/superagente/internal/store"
	"github.com/cristal-orion/superagente/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCatalogItems(ctx context.Context, includeInactive bool) ([]domain.CatalogItem, error) {
	query := `
		SELECT id, label, category, price_eur, power_kw, storage_kwh, monthly_by_term, apr_by_term, active
		FROM catalog_items
	`
	if !includeInactive {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY category, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.CatalogItem, 0, 32)
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func (s *Store) GetCatalogItem(ctx context.Context, id string) (*domain.CatalogItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, category, price_eur, power_kw, storage_kwh, monthly_by_term, apr_by_term, active
		FROM catalog_items
		WHERE id = $1
	`, id)
	item, err := scanCatalogItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) CreateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if item.ID == "" || item.Label == "" || item.PriceEUR <= 0 || item.PowerKW <= 0 {
		return nil, store.ErrInvalidInput
	}

	monthly, apr, err := marshalTermMaps(item)
	if err != nil {
		return nil, err
	}

	item.Active = true
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO catalog_items (id, label, category, price_eur, power_kw, storage_kwh, monthly_by_term, apr_by_term, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
	`, item.ID, item.Label, item.Category, item.PriceEUR, item.PowerKW, item.StorageKWh, monthly, apr, item.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}

	created := item
	return &created, nil
}

func (s *Store) UpdateCatalogItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	if item.ID == "" || item.Label == "" || item.PriceEUR <= 0 || item.PowerKW <= 0 {
		return nil, store.ErrInvalidInput
	}

	monthly, apr, err := marshalTermMaps(item)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE catalog_items
		SET label = $2, category = $3, price_eur = $4, power_kw = $5, storage_kwh = $6,
			monthly_by_term = $7, apr_by_term = $8, active = $9, updated_at = now()
		WHERE id = $1
	`, item.ID, item.Label, item.Category, item.PriceEUR, item.PowerKW, item.StorageKWh, monthly, apr, item.Active)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := item
	return &updated, nil
}

func (s *Store) ReplaceCatalog(ctx context.Context, items []domain.CatalogItem) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_items`); err != nil {
		return err
	}
	for _, item := range items {
		if item.ID == "" || item.Label == "" || item.PriceEUR <= 0 || item.PowerKW <= 0 {
			return store.ErrInvalidInput
		}
		monthly, apr, err := marshalTermMaps(item)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO catalog_items (id, label, category, price_eur, power_kw, storage_kwh, monthly_by_term, apr_by_term, active, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
		`, item.ID, item.Label, item.Category, item.PriceEUR, item.PowerKW, item.StorageKWh, monthly, apr, item.Active)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateQuote(ctx context.Context, quote domain.QuoteRecord) (*domain.QuoteRecord, error) {
	if strings.TrimSpace(quote.Customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if quote.ID == "" {
		quote.ID = xid.New("quote")
	}
	if quote.CreatedAt.IsZero() {
		quote.CreatedAt = time.Now().UTC()
	}

	customerJSON, err := json.Marshal(quote.Customer)
	if err != nil {
		return nil, err
	}
	requestJSON, err := json.Marshal(quote.Request)
	if err != nil {
		return nil, err
	}
	responseJSON, err := json.Marshal(quote.Response)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (id, customer, offer_id, offer_label, term_months, request, response, issued_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, quote.ID, customerJSON, nullIfEmpty(quote.OfferID), nullIfEmpty(quote.OfferLabel), quote.TermMonths, requestJSON, responseJSON, quote.IssuedBy, quote.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists
		}
		return nil, err
	}

	saved := quote
	return &saved, nil
}

func (s *Store) GetQuoteByID(ctx context.Context, id string) (*domain.QuoteRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer, offer_id, offer_label, term_months, request, response, issued_by, created_at
		FROM quotes
		WHERE id = $1
	`, id)
	quote, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return quote, nil
}

func (s *Store) ListQuotes(ctx context.Context, issuedBy string, from time.Time, to time.Time, limit int) ([]domain.QuoteRecord, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer, offer_id, offer_label, term_months, request, response, issued_by, created_at
		FROM quotes
		WHERE ($1 = '' OR issued_by = $1)
			AND ($2::timestamptz IS NULL OR created_at >= $2)
			AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4
	`, issuedBy, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quotes := make([]domain.QuoteRecord, 0, limit)
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, *quote)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return quotes, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, nullTime(from), nullTime(to), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleAgent
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, username string, active bool) error {
	username = strings.ToLower(strings.TrimSpace(username))

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET active = $2, updated_at = now()
		WHERE username = $1
	`, username, active)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (*domain.CatalogItem, error) {
	var item domain.CatalogItem
	var monthlyRaw []byte
	var aprRaw []byte
	if err := row.Scan(&item.ID, &item.Label, &item.Category, &item.PriceEUR, &item.PowerKW, &item.StorageKWh, &monthlyRaw, &aprRaw, &item.Active); err != nil {
		return nil, err
	}
	if len(monthlyRaw) > 0 {
		if err := json.Unmarshal(monthlyRaw, &item.MonthlyByTerm); err != nil {
			return nil, err
		}
	}
	if len(aprRaw) > 0 {
		if err := json.Unmarshal(aprRaw, &item.APRByTerm); err != nil {
			return nil, err
		}
	}
	return &item, nil
}

func scanQuote(row rowScanner) (*domain.QuoteRecord, error) {
	var quote domain.QuoteRecord
	var customerRaw []byte
	var requestRaw []byte
	var responseRaw []byte
	var offerID sql.NullString
	var offerLabel sql.NullString
	if err := row.Scan(&quote.ID, &customerRaw, &offerID, &offerLabel, &quote.TermMonths, &requestRaw, &responseRaw, &quote.IssuedBy, &quote.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(customerRaw, &quote.Customer); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(requestRaw, &quote.Request); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(responseRaw, &quote.Response); err != nil {
		return nil, err
	}
	if offerID.Valid {
		quote.OfferID = offerID.String
	}
	if offerLabel.Valid {
		quote.OfferLabel = offerLabel.String
	}
	quote.CreatedAt = quote.CreatedAt.UTC()
	return &quote, nil
}

func marshalTermMaps(item domain.CatalogItem) ([]byte, []byte, error) {
	monthly, err := json.Marshal(item.MonthlyByTerm)
	if err != nil {
		return nil, nil, err
	}
	apr, err := json.Marshal(item.APRByTerm)
	if err != nil {
		return nil, nil, err
	}
	return monthly, apr, nil
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
