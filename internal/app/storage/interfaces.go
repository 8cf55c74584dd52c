package storage

import (
	"context"
	"errors"

	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/transaction"
	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique key
	// (slug, username or address).
	ErrConflict = errors.New("duplicate key")
)

// ApplicationStore persists creator applications.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app application.Application) (application.Application, error)
	UpdateApplication(ctx context.Context, app application.Application) (application.Application, error)
	GetApplication(ctx context.Context, id string) (application.Application, error)
	// ListApplications returns applications newest first.
	ListApplications(ctx context.Context) ([]application.Application, error)
}

// CollectionStore persists collections.
type CollectionStore interface {
	// CreateCollectionWithOrdinals inserts col and ords as one unit. Either all
	// records are visible afterwards or none are. Returned ordinals carry their
	// generated ids and the collection id.
	CreateCollectionWithOrdinals(ctx context.Context, col collection.Collection, ords []ordinal.Ordinal) (collection.Collection, []ordinal.Ordinal, error)
	UpdateCollection(ctx context.Context, col collection.Collection) (collection.Collection, error)
	GetCollection(ctx context.Context, id string) (collection.Collection, error)
	GetCollectionBySlug(ctx context.Context, slug string) (collection.Collection, error)
	GetCollectionByApplication(ctx context.Context, applicationID string) (collection.Collection, error)
	ListCollections(ctx context.Context, visibleOnly bool) ([]collection.Collection, error)
}

// OrdinalStore persists ordinals. Ordinals are created through
// CollectionStore.CreateCollectionWithOrdinals.
type OrdinalStore interface {
	UpdateOrdinal(ctx context.Context, ord ordinal.Ordinal) (ordinal.Ordinal, error)
	GetOrdinal(ctx context.Context, id string) (ordinal.Ordinal, error)
	// ListOrdinals returns the page selected by filter.Offset/Limit and the
	// total number of matches.
	ListOrdinals(ctx context.Context, filter ordinal.Filter) ([]ordinal.Ordinal, int, error)
}

// UserStore persists marketplace users.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByAddress(ctx context.Context, address string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
}

// TransactionStore persists the marketplace activity log.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, tx transaction.Transaction) (transaction.Transaction, error)
	// ListTransactions returns matches newest first.
	ListTransactions(ctx context.Context, filter transaction.Filter) ([]transaction.Transaction, error)
}
