package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3E-Network/ordzaar/internal/app/domain"
	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/transaction"
	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu           sync.RWMutex
	applications map[string]application.Application
	collections  map[string]collection.Collection
	ordinals     map[string]ordinal.Ordinal
	users        map[string]user.User
	transactions []transaction.Transaction
}

var _ storage.ApplicationStore = (*Store)(nil)
var _ storage.CollectionStore = (*Store)(nil)
var _ storage.OrdinalStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		applications: make(map[string]application.Application),
		collections:  make(map[string]collection.Collection),
		ordinals:     make(map[string]ordinal.Ordinal),
		users:        make(map[string]user.User),
	}
}

func notFound(kind, key string) error {
	return fmt.Errorf("%s %s: %w", kind, key, storage.ErrNotFound)
}

func conflict(kind, field, value string) error {
	return fmt.Errorf("%s %s %q: %w", kind, field, value, storage.ErrConflict)
}

// ApplicationStore implementation ---------------------------------------------

func (s *Store) CreateApplication(_ context.Context, app application.Application) (application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if app.ID == "" {
		app.ID = domain.NewID()
	} else if _, exists := s.applications[app.ID]; exists {
		return application.Application{}, conflict("application", "id", app.ID)
	}
	if err := s.checkApplicationSlugLocked(app.ID, app.Slug); err != nil {
		return application.Application{}, err
	}

	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now
	app = cloneApplication(app)

	s.applications[app.ID] = app
	return cloneApplication(app), nil
}

func (s *Store) UpdateApplication(_ context.Context, app application.Application) (application.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.applications[app.ID]
	if !ok {
		return application.Application{}, notFound("application", app.ID)
	}
	if err := s.checkApplicationSlugLocked(app.ID, app.Slug); err != nil {
		return application.Application{}, err
	}

	app.CreatedAt = original.CreatedAt
	app.UpdatedAt = time.Now().UTC()
	app = cloneApplication(app)

	s.applications[app.ID] = app
	return cloneApplication(app), nil
}

func (s *Store) checkApplicationSlugLocked(id, slug string) error {
	for _, existing := range s.applications {
		if existing.ID != id && existing.Slug == slug {
			return conflict("application", "slug", slug)
		}
	}
	return nil
}

func (s *Store) GetApplication(_ context.Context, id string) (application.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	app, ok := s.applications[id]
	if !ok {
		return application.Application{}, notFound("application", id)
	}
	return cloneApplication(app), nil
}

func (s *Store) ListApplications(_ context.Context) ([]application.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]application.Application, 0, len(s.applications))
	for _, app := range s.applications {
		result = append(result, cloneApplication(app))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CollectionStore implementation ----------------------------------------------

func (s *Store) CreateCollectionWithOrdinals(_ context.Context, col collection.Collection, ords []ordinal.Ordinal) (collection.Collection, []ordinal.Ordinal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col.ID == "" {
		col.ID = domain.NewID()
	} else if _, exists := s.collections[col.ID]; exists {
		return collection.Collection{}, nil, conflict("collection", "id", col.ID)
	}
	for _, existing := range s.collections {
		if existing.Slug == col.Slug {
			return collection.Collection{}, nil, conflict("collection", "slug", col.Slug)
		}
	}

	now := time.Now().UTC()
	col.CreatedAt = now
	col.UpdatedAt = now

	created := make([]ordinal.Ordinal, 0, len(ords))
	for _, ord := range ords {
		if ord.ID == "" {
			ord.ID = domain.NewID()
		}
		ord.CollectionID = col.ID
		ord.CreatedAt = now
		ord.UpdatedAt = now
		created = append(created, cloneOrdinal(ord))
	}

	// Validation is complete; nothing below can fail.
	s.collections[col.ID] = col
	for _, ord := range created {
		s.ordinals[ord.ID] = ord
	}

	out := make([]ordinal.Ordinal, len(created))
	for i, ord := range created {
		out[i] = cloneOrdinal(ord)
	}
	return col, out, nil
}

func (s *Store) UpdateCollection(_ context.Context, col collection.Collection) (collection.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.collections[col.ID]
	if !ok {
		return collection.Collection{}, notFound("collection", col.ID)
	}
	for _, existing := range s.collections {
		if existing.ID != col.ID && existing.Slug == col.Slug {
			return collection.Collection{}, conflict("collection", "slug", col.Slug)
		}
	}

	col.CreatedAt = original.CreatedAt
	col.UpdatedAt = time.Now().UTC()
	s.collections[col.ID] = col
	return col, nil
}

func (s *Store) GetCollection(_ context.Context, id string) (collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[id]
	if !ok {
		return collection.Collection{}, notFound("collection", id)
	}
	return col, nil
}

func (s *Store) GetCollectionBySlug(_ context.Context, slug string) (collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, col := range s.collections {
		if col.Slug == slug {
			return col, nil
		}
	}
	return collection.Collection{}, notFound("collection", slug)
}

func (s *Store) GetCollectionByApplication(_ context.Context, applicationID string) (collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, col := range s.collections {
		if col.ApplicationID == applicationID {
			return col, nil
		}
	}
	return collection.Collection{}, notFound("collection for application", applicationID)
}

func (s *Store) ListCollections(_ context.Context, visibleOnly bool) ([]collection.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]collection.Collection, 0, len(s.collections))
	for _, col := range s.collections {
		if visibleOnly && !col.Settings.IsVisible {
			continue
		}
		result = append(result, col)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// OrdinalStore implementation -------------------------------------------------

func (s *Store) UpdateOrdinal(_ context.Context, ord ordinal.Ordinal) (ordinal.Ordinal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.ordinals[ord.ID]
	if !ok {
		return ordinal.Ordinal{}, notFound("ordinal", ord.ID)
	}

	ord.CreatedAt = original.CreatedAt
	ord.UpdatedAt = time.Now().UTC()
	ord = cloneOrdinal(ord)
	s.ordinals[ord.ID] = ord
	return cloneOrdinal(ord), nil
}

func (s *Store) GetOrdinal(_ context.Context, id string) (ordinal.Ordinal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ord, ok := s.ordinals[id]
	if !ok {
		return ordinal.Ordinal{}, notFound("ordinal", id)
	}
	return cloneOrdinal(ord), nil
}

func (s *Store) ListOrdinals(_ context.Context, filter ordinal.Filter) ([]ordinal.Ordinal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]ordinal.Ordinal, 0)
	for _, ord := range s.ordinals {
		if matchOrdinal(ord, filter) {
			matches = append(matches, ord)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.CollectionID != b.CollectionID {
			return a.CollectionID < b.CollectionID
		}
		return a.OrdinalNumber < b.OrdinalNumber
	})

	total := len(matches)
	start := filter.Offset
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}

	page := make([]ordinal.Ordinal, 0, end-start)
	for _, ord := range matches[start:end] {
		page = append(page, cloneOrdinal(ord))
	}
	return page, total, nil
}

func matchOrdinal(ord ordinal.Ordinal, f ordinal.Filter) bool {
	if f.CollectionID != "" && ord.CollectionID != f.CollectionID {
		return false
	}
	if f.Owner != "" && ord.Owner != f.Owner {
		return false
	}
	if f.Status != "" && ord.Status != f.Status {
		return false
	}
	if f.Listed != nil && ord.Listed != *f.Listed {
		return false
	}
	if q := strings.TrimSpace(f.Query); q != "" && !strings.Contains(strings.ToLower(ord.Name), strings.ToLower(q)) {
		return false
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price, err := domain.ParsePrice(ord.Price)
		if err != nil {
			return false
		}
		if f.MinPrice != nil && price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && price > *f.MaxPrice {
			return false
		}
	}
	return true
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = domain.NewID()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, conflict("user", "id", u.ID)
	}
	if err := s.checkUserUniqueLocked(u); err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, notFound("user", u.ID)
	}
	if err := s.checkUserUniqueLocked(u); err != nil {
		return user.User{}, err
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) checkUserUniqueLocked(u user.User) error {
	for _, existing := range s.users {
		if existing.ID == u.ID {
			continue
		}
		if existing.Username == u.Username {
			return conflict("user", "username", u.Username)
		}
		if existing.Address == u.Address {
			return conflict("user", "address", u.Address)
		}
	}
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return user.User{}, notFound("user", username)
}

func (s *Store) GetUserByAddress(_ context.Context, address string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Address == address {
			return u, nil
		}
	}
	return user.User{}, notFound("user with address", address)
}

func (s *Store) ListUsers(_ context.Context) ([]user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// TransactionStore implementation ---------------------------------------------

func (s *Store) CreateTransaction(_ context.Context, tx transaction.Transaction) (transaction.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = domain.NewID()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	s.transactions = append(s.transactions, tx)
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, filter transaction.Filter) ([]transaction.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]transaction.Transaction, 0)
	// Newest first: walk the append-only log backwards.
	for i := len(s.transactions) - 1; i >= 0; i-- {
		tx := s.transactions[i]
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.OrdinalID != "" && tx.OrdinalID != filter.OrdinalID {
			continue
		}
		if filter.CollectionID != "" && tx.CollectionID != filter.CollectionID {
			continue
		}
		if !filter.Since.IsZero() && tx.Timestamp.Before(filter.Since) {
			continue
		}
		result = append(result, tx)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

// helpers --------------------------------------------------------------------

func cloneApplication(app application.Application) application.Application {
	app.Assets.Images = append([]string(nil), app.Assets.Images...)
	if app.Assets.Images == nil {
		app.Assets.Images = []string{}
	}
	return app
}

func cloneOrdinal(ord ordinal.Ordinal) ordinal.Ordinal {
	if ord.BlockchainData != nil {
		data := *ord.BlockchainData
		ord.BlockchainData = &data
	}
	if ord.MintedAt != nil {
		at := *ord.MintedAt
		ord.MintedAt = &at
	}
	return ord
}
