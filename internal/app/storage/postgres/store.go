package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/transaction"
	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL. Each entity
// is kept as a JSONB document next to the scalar columns used for lookups,
// uniqueness and ordering.
type Store struct {
	db *sqlx.DB
}

var _ storage.ApplicationStore = (*Store)(nil)
var _ storage.CollectionStore = (*Store)(nil)
var _ storage.OrdinalStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func mapErr(kind string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s %s: %w", kind, pqErr.Constraint, storage.ErrConflict)
	}
	return fmt.Errorf("%s: %w", kind, err)
}

func getDoc[T any](ctx context.Context, q sqlx.QueryerContext, kind, key, query string, args ...interface{}) (T, error) {
	var out T
	var raw []byte
	if err := sqlx.GetContext(ctx, q, &raw, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return out, fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
		}
		return out, mapErr(kind, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", kind, err)
	}
	return out, nil
}

func selectDocs[T any](ctx context.Context, q sqlx.QueryerContext, kind, query string, args ...interface{}) ([]T, error) {
	var raws [][]byte
	if err := sqlx.SelectContext(ctx, q, &raws, query, args...); err != nil {
		return nil, mapErr(kind, err)
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		out = append(out, item)
	}
	return out, nil
}

func requireRow(result sql.Result, kind, key string) error {
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
	}
	return nil
}

// --- ApplicationStore -------------------------------------------------------

func (s *Store) CreateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	if app.ID == "" {
		app.ID = domain.NewID()
	}
	if app.Assets.Images == nil {
		app.Assets.Images = []string{}
	}
	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	doc, err := json.Marshal(app)
	if err != nil {
		return application.Application{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ordz_applications (id, slug, status, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, app.ID, app.Slug, string(app.Status), app.CreatedAt, app.UpdatedAt, doc)
	if err != nil {
		return application.Application{}, mapErr("application", err)
	}
	return app, nil
}

func (s *Store) UpdateApplication(ctx context.Context, app application.Application) (application.Application, error) {
	app.UpdatedAt = time.Now().UTC()
	if app.Assets.Images == nil {
		app.Assets.Images = []string{}
	}
	doc, err := json.Marshal(app)
	if err != nil {
		return application.Application{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE ordz_applications
		SET slug = $2, status = $3, updated_at = $4, doc = $5
		WHERE id = $1
	`, app.ID, app.Slug, string(app.Status), app.UpdatedAt, doc)
	if err != nil {
		return application.Application{}, mapErr("application", err)
	}
	if err := requireRow(result, "application", app.ID); err != nil {
		return application.Application{}, err
	}
	return app, nil
}

func (s *Store) GetApplication(ctx context.Context, id string) (application.Application, error) {
	return getDoc[application.Application](ctx, s.db, "application", id,
		`SELECT doc FROM ordz_applications WHERE id = $1`, id)
}

func (s *Store) ListApplications(ctx context.Context) ([]application.Application, error) {
	return selectDocs[application.Application](ctx, s.db, "application",
		`SELECT doc FROM ordz_applications ORDER BY created_at DESC, id DESC`)
}

// --- CollectionStore --------------------------------------------------------

func (s *Store) CreateCollectionWithOrdinals(ctx context.Context, col collection.Collection, ords []ordinal.Ordinal) (collection.Collection, []ordinal.Ordinal, error) {
	if col.ID == "" {
		col.ID = domain.NewID()
	}
	now := time.Now().UTC()
	col.CreatedAt = now
	col.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return collection.Collection{}, nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertCollection(ctx, tx, col); err != nil {
		return collection.Collection{}, nil, err
	}

	created := make([]ordinal.Ordinal, 0, len(ords))
	for _, ord := range ords {
		if ord.ID == "" {
			ord.ID = domain.NewID()
		}
		ord.CollectionID = col.ID
		ord.CreatedAt = now
		ord.UpdatedAt = now
		if err := insertOrdinal(ctx, tx, ord); err != nil {
			return collection.Collection{}, nil, err
		}
		created = append(created, ord)
	}

	if err := tx.Commit(); err != nil {
		return collection.Collection{}, nil, fmt.Errorf("commit: %w", err)
	}
	return col, created, nil
}

func insertCollection(ctx context.Context, tx *sqlx.Tx, col collection.Collection) error {
	doc, err := json.Marshal(col)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ordz_collections (id, slug, application_id, is_visible, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, col.ID, col.Slug, col.ApplicationID, col.Settings.IsVisible, col.CreatedAt, col.UpdatedAt, doc)
	return mapErr("collection", err)
}

func insertOrdinal(ctx context.Context, tx *sqlx.Tx, ord ordinal.Ordinal) error {
	doc, err := json.Marshal(ord)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ordz_ordinals (id, collection_id, ordinal_number, name, owner, status, listed, price, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, ord.ID, ord.CollectionID, ord.OrdinalNumber, ord.Name, ord.Owner, string(ord.Status), ord.Listed, numericPrice(ord.Price), ord.CreatedAt, ord.UpdatedAt, doc)
	return mapErr("ordinal", err)
}

func numericPrice(raw string) sql.NullFloat64 {
	v, err := domain.ParsePrice(raw)
	if err != nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func (s *Store) UpdateCollection(ctx context.Context, col collection.Collection) (collection.Collection, error) {
	col.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(col)
	if err != nil {
		return collection.Collection{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE ordz_collections
		SET slug = $2, is_visible = $3, updated_at = $4, doc = $5
		WHERE id = $1
	`, col.ID, col.Slug, col.Settings.IsVisible, col.UpdatedAt, doc)
	if err != nil {
		return collection.Collection{}, mapErr("collection", err)
	}
	if err := requireRow(result, "collection", col.ID); err != nil {
		return collection.Collection{}, err
	}
	return col, nil
}

func (s *Store) GetCollection(ctx context.Context, id string) (collection.Collection, error) {
	return getDoc[collection.Collection](ctx, s.db, "collection", id,
		`SELECT doc FROM ordz_collections WHERE id = $1`, id)
}

func (s *Store) GetCollectionBySlug(ctx context.Context, slug string) (collection.Collection, error) {
	return getDoc[collection.Collection](ctx, s.db, "collection", slug,
		`SELECT doc FROM ordz_collections WHERE slug = $1`, slug)
}

func (s *Store) GetCollectionByApplication(ctx context.Context, applicationID string) (collection.Collection, error) {
	return getDoc[collection.Collection](ctx, s.db, "collection for application", applicationID,
		`SELECT doc FROM ordz_collections WHERE application_id = $1 LIMIT 1`, applicationID)
}

func (s *Store) ListCollections(ctx context.Context, visibleOnly bool) ([]collection.Collection, error) {
	query := `SELECT doc FROM ordz_collections`
	if visibleOnly {
		query += ` WHERE is_visible`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return selectDocs[collection.Collection](ctx, s.db, "collection", query)
}

// --- OrdinalStore -----------------------------------------------------------

func (s *Store) UpdateOrdinal(ctx context.Context, ord ordinal.Ordinal) (ordinal.Ordinal, error) {
	ord.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(ord)
	if err != nil {
		return ordinal.Ordinal{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE ordz_ordinals
		SET name = $2, owner = $3, status = $4, listed = $5, price = $6, updated_at = $7, doc = $8
		WHERE id = $1
	`, ord.ID, ord.Name, ord.Owner, string(ord.Status), ord.Listed, numericPrice(ord.Price), ord.UpdatedAt, doc)
	if err != nil {
		return ordinal.Ordinal{}, mapErr("ordinal", err)
	}
	if err := requireRow(result, "ordinal", ord.ID); err != nil {
		return ordinal.Ordinal{}, err
	}
	return ord, nil
}

func (s *Store) GetOrdinal(ctx context.Context, id string) (ordinal.Ordinal, error) {
	return getDoc[ordinal.Ordinal](ctx, s.db, "ordinal", id,
		`SELECT doc FROM ordz_ordinals WHERE id = $1`, id)
}

func (s *Store) ListOrdinals(ctx context.Context, filter ordinal.Filter) ([]ordinal.Ordinal, int, error) {
	where, args := ordinalWhere(filter)

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM ordz_ordinals`+where, args...); err != nil {
		return nil, 0, mapErr("ordinal", err)
	}

	query := `SELECT doc FROM ordz_ordinals` + where + ` ORDER BY created_at, collection_id, ordinal_number`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	items, err := selectDocs[ordinal.Ordinal](ctx, s.db, "ordinal", query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// likeEscaper makes LIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func ordinalWhere(f ordinal.Filter) (string, []interface{}) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.CollectionID != "" {
		add("collection_id = $%d", f.CollectionID)
	}
	if f.Owner != "" {
		add("owner = $%d", f.Owner)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Listed != nil {
		add("listed = $%d", *f.Listed)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		add(`name ILIKE $%d ESCAPE '\'`, "%"+likeEscaper.Replace(q)+"%")
	}
	if f.MinPrice != nil {
		add("price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= $%d", *f.MaxPrice)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = domain.NewID()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	doc, err := json.Marshal(u)
	if err != nil {
		return user.User{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ordz_users (id, username, address, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Username, u.Address, u.CreatedAt, u.UpdatedAt, doc)
	if err != nil {
		return user.User{}, mapErr("user", err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(u)
	if err != nil {
		return user.User{}, err
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE ordz_users
		SET username = $2, address = $3, updated_at = $4, doc = $5
		WHERE id = $1
	`, u.ID, u.Username, u.Address, u.UpdatedAt, doc)
	if err != nil {
		return user.User{}, mapErr("user", err)
	}
	if err := requireRow(result, "user", u.ID); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return getDoc[user.User](ctx, s.db, "user", username,
		`SELECT doc FROM ordz_users WHERE username = $1`, username)
}

func (s *Store) GetUserByAddress(ctx context.Context, address string) (user.User, error) {
	return getDoc[user.User](ctx, s.db, "user with address", address,
		`SELECT doc FROM ordz_users WHERE address = $1`, address)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	return selectDocs[user.User](ctx, s.db, "user", `SELECT doc FROM ordz_users ORDER BY username`)
}

// --- TransactionStore -------------------------------------------------------

func (s *Store) CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	if tx.ID == "" {
		tx.ID = domain.NewID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	doc, err := json.Marshal(tx)
	if err != nil {
		return transaction.Transaction{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ordz_transactions (id, type, ordinal_id, collection_id, ts, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tx.ID, string(tx.Type), tx.OrdinalID, tx.CollectionID, tx.Timestamp, doc)
	if err != nil {
		return transaction.Transaction{}, mapErr("transaction", err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter transaction.Filter) ([]transaction.Transaction, error) {
	var (
		clauses []string
		args    []interface{}
	)
	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Type != "" {
		add("type = $%d", string(filter.Type))
	}
	if filter.OrdinalID != "" {
		add("ordinal_id = $%d", filter.OrdinalID)
	}
	if filter.CollectionID != "" {
		add("collection_id = $%d", filter.CollectionID)
	}
	if !filter.Since.IsZero() {
		add("ts >= $%d", filter.Since)
	}

	query := `SELECT doc FROM ordz_transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY ts DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return selectDocs[transaction.Transaction](ctx, s.db, "transaction", query, args...)
}
