package ordinals

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/storage/memory"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
)

func seed(t *testing.T, n int) (*memory.Store, collection.Collection, []ordinal.Ordinal) {
	t.Helper()
	store := memory.New()
	ords := make([]ordinal.Ordinal, n)
	for i := range ords {
		ords[i] = ordinal.Ordinal{
			Name:          fmt.Sprintf("Sat Cats #%d", i+1),
			OrdinalNumber: i + 1,
			Price:         fmt.Sprintf("0.0%d", i+1),
			Owner:         "bc1qowner",
			Status:        ordinal.StatusPending,
		}
	}
	col, created, err := store.CreateCollectionWithOrdinals(context.Background(), collection.Collection{Name: "Sat Cats", Slug: "sat-cats"}, ords)
	if err != nil {
		t.Fatalf("seed collection: %v", err)
	}
	return store, col, created
}

func httpStatus(err error) int {
	if se := apperrors.GetServiceError(err); se != nil {
		return se.HTTPStatus
	}
	return 0
}

func TestService_ListPaging(t *testing.T) {
	store, _, _ := seed(t, 5)
	svc := New(store, nil)

	page, err := svc.List(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 5 || len(page.Items) != 2 || page.Page != 2 || page.Limit != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Items[0].OrdinalNumber != 3 {
		t.Fatalf("expected third ordinal first on page 2, got %d", page.Items[0].OrdinalNumber)
	}

	page, err = svc.List(context.Background(), 0, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 1 || page.Limit != MaxLimit {
		t.Fatalf("expected normalised paging, got page=%d limit=%d", page.Page, page.Limit)
	}
}

func TestService_Search(t *testing.T) {
	store, col, _ := seed(t, 5)
	svc := New(store, nil)

	lo, hi := 0.02, 0.04
	page, err := svc.Search(context.Background(), SearchParams{Query: "sat cats", CollectionID: col.ID, MinPrice: &lo, MaxPrice: &hi})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if page.Total != 3 {
		t.Fatalf("expected 3 matches, got %d", page.Total)
	}

	if _, err := svc.Search(context.Background(), SearchParams{Status: "burned"}); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status, got %v", err)
	}
	if _, err := svc.Search(context.Background(), SearchParams{MinPrice: &hi, MaxPrice: &lo}); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %v", err)
	}
}

func TestService_Get(t *testing.T) {
	store, _, ords := seed(t, 1)
	svc := New(store, nil)

	got, err := svc.Get(context.Background(), ords[0].ID)
	if err != nil || got.Name != "Sat Cats #1" {
		t.Fatalf("get: %v %+v", err, got)
	}
	if _, err := svc.Get(context.Background(), "zzz"); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "64b7f0c2a1b2c3d4e5f60718"); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestService_ListForSale(t *testing.T) {
	store, _, ords := seed(t, 1)
	svc := New(store, nil)
	ctx := context.Background()

	if _, err := svc.ListForSale(ctx, ords[0].ID, "bc1qstranger", "0.5"); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %v", err)
	}
	if _, err := svc.ListForSale(ctx, ords[0].ID, "bc1qowner", "0"); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero price, got %v", err)
	}

	listed, err := svc.ListForSale(ctx, ords[0].ID, "bc1qowner", "0.50")
	if err != nil {
		t.Fatalf("list for sale: %v", err)
	}
	if !listed.Listed || listed.ListPrice != "0.5" {
		t.Fatalf("unexpected listing: %+v", listed)
	}

	unlisted, err := svc.Unlist(ctx, ords[0].ID, "bc1qowner")
	if err != nil {
		t.Fatalf("unlist: %v", err)
	}
	if unlisted.Listed || unlisted.ListPrice != "" {
		t.Fatalf("expected unlisted ordinal: %+v", unlisted)
	}
}
