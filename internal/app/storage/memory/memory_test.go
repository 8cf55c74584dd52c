package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/domain/transaction"
	"github.com/R3E-Network/ordzaar/internal/app/domain/user"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
)

func TestApplicationSlugUnique(t *testing.T) {
	store := New()
	ctx := context.Background()

	app, err := store.CreateApplication(ctx, application.Application{Name: "Punks", Slug: "punks-1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if app.ID == "" || app.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps to be set: %+v", app)
	}
	if app.Assets.Images == nil {
		t.Fatalf("expected empty image slice, got nil")
	}

	_, err = store.CreateApplication(ctx, application.Application{Name: "Punks", Slug: "punks-1"})
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := store.GetApplication(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestApplicationImagesAreCopied(t *testing.T) {
	store := New()
	ctx := context.Background()

	images := []string{"a.png"}
	app, err := store.CreateApplication(ctx, application.Application{Slug: "s", Assets: application.Assets{Images: images}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	images[0] = "mutated"

	got, _ := store.GetApplication(ctx, app.ID)
	if got.Assets.Images[0] != "a.png" {
		t.Fatalf("store shares caller slice: %v", got.Assets.Images)
	}
}

func TestCreateCollectionWithOrdinals(t *testing.T) {
	store := New()
	ctx := context.Background()

	ords := make([]ordinal.Ordinal, 3)
	for i := range ords {
		ords[i] = ordinal.Ordinal{Name: fmt.Sprintf("Punk #%d", i+1), OrdinalNumber: i + 1, Status: ordinal.StatusPending, Price: "0.01"}
	}
	col, created, err := store.CreateCollectionWithOrdinals(ctx, collection.Collection{Name: "Punks", Slug: "punks", ApplicationID: "app-1", Settings: collection.Settings{IsVisible: true}}, ords)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 ordinals, got %d", len(created))
	}
	for _, ord := range created {
		if ord.CollectionID != col.ID || ord.ID == "" {
			t.Fatalf("ordinal not linked: %+v", ord)
		}
	}

	// A slug clash must not leave a partial write behind.
	_, _, err = store.CreateCollectionWithOrdinals(ctx, collection.Collection{Slug: "punks"}, ords)
	if !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	all, total, _ := store.ListOrdinals(ctx, ordinal.Filter{})
	if total != 3 || len(all) != 3 {
		t.Fatalf("expected 3 ordinals after failed insert, got %d", total)
	}

	byApp, err := store.GetCollectionByApplication(ctx, "app-1")
	if err != nil || byApp.ID != col.ID {
		t.Fatalf("lookup by application: %v", err)
	}
}

func TestListOrdinalsFilterAndPaging(t *testing.T) {
	store := New()
	ctx := context.Background()

	ords := make([]ordinal.Ordinal, 5)
	for i := range ords {
		ords[i] = ordinal.Ordinal{Name: fmt.Sprintf("Ape #%d", i+1), OrdinalNumber: i + 1, Price: fmt.Sprintf("0.%d", i+1), Status: ordinal.StatusPending}
	}
	ords[4].Name = "Golden Ape"
	ords[4].Listed = true
	if _, _, err := store.CreateCollectionWithOrdinals(ctx, collection.Collection{Slug: "apes"}, ords); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, total, err := store.ListOrdinals(ctx, ordinal.Filter{Offset: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(page) != 2 || page[0].OrdinalNumber != 3 {
		t.Fatalf("unexpected page total=%d page=%+v", total, page)
	}

	listed := true
	minPrice := 0.25
	hits, total, _ := store.ListOrdinals(ctx, ordinal.Filter{Query: "golden", Listed: &listed, MinPrice: &minPrice})
	if total != 1 || hits[0].Name != "Golden Ape" {
		t.Fatalf("unexpected search result %+v", hits)
	}
}

func TestUserUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Username: "alice", Address: "bc1qalice", Role: user.RoleUser}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Username: "alice", Address: "bc1qother"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Username: "bob", Address: "bc1qalice"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected address conflict, got %v", err)
	}
	u, err := store.GetUserByAddress(ctx, "bc1qalice")
	if err != nil || u.Username != "alice" {
		t.Fatalf("lookup by address: %v", err)
	}
}

func TestTransactionsNewestFirst(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := store.CreateTransaction(ctx, transaction.Transaction{TxID: fmt.Sprintf("tx%d", i), Type: transaction.TypeSale, OrdinalID: "o1"}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_, _ = store.CreateTransaction(ctx, transaction.Transaction{TxID: "mint", Type: transaction.TypeMint, OrdinalID: "o1"})

	sales, err := store.ListTransactions(ctx, transaction.Filter{Type: transaction.TypeSale, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sales) != 2 || sales[0].TxID != "tx2" || sales[1].TxID != "tx1" {
		t.Fatalf("unexpected order %+v", sales)
	}
}
