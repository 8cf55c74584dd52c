package collections

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/storage/memory"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
)

const placeholder = "http://localhost:5000/uploads/placeholder.jpg"

var seeded int

func seedApplication(t *testing.T, store *memory.Store, mutate func(*application.Application)) application.Application {
	t.Helper()
	seeded++
	app := application.Application{
		Name:        "Rare Sats",
		Slug:        fmt.Sprintf("rare-sats-%d", seeded),
		Description: "Uncommon sats",
		Creator:     "bc1qcreator",
		Price:       "0.02",
		Status:      application.StatusApproved,
		IsComplete:  true,
		Stats:       application.Stats{TotalSupply: 4},
		Assets:      application.Assets{Images: []string{"a.png", "b.png", "c.png"}},
	}
	if mutate != nil {
		mutate(&app)
	}
	created, err := store.CreateApplication(context.Background(), app)
	require.NoError(t, err)
	return created
}

func errMessage(err error) string {
	if se := apperrors.GetServiceError(err); se != nil {
		return se.Message
	}
	return ""
}

func TestMaterializeBuildsOrdinals(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	app := seedApplication(t, store, nil)

	col, ords, err := svc.Materialize(context.Background(), app)
	require.NoError(t, err)

	assert.Equal(t, app.Slug, col.Slug)
	assert.Equal(t, "a.png", col.Image)
	assert.Equal(t, 4, col.TotalSupply)
	assert.Equal(t, "0.02", col.Stats.FloorPrice)
	assert.True(t, col.Settings.IsVisible)
	assert.Equal(t, float64(collection.DefaultRoyaltyPercentage), col.Settings.RoyaltyPercentage)

	require.Len(t, ords, 4)
	assert.Equal(t, "Rare Sats #1", ords[0].Name)
	assert.Equal(t, "a.png", ords[3].Image)
	assert.Equal(t, 4, ords[3].OrdinalNumber)
	for _, ord := range ords {
		assert.Equal(t, col.ID, ord.CollectionID)
		assert.Equal(t, "bc1qcreator", ord.Owner)
		assert.Equal(t, ordinal.StatusPending, ord.Status)
	}
}

func TestMaterializeDefaults(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	app := seedApplication(t, store, func(a *application.Application) {
		a.Stats.TotalSupply = 0
		a.Assets.Images = nil
	})

	col, ords, err := svc.Materialize(context.Background(), app)
	require.NoError(t, err)
	assert.Equal(t, placeholder, col.Image)
	assert.Len(t, ords, DefaultSupply)
	assert.Equal(t, placeholder, ords[9].Image)
}

func TestMaterializeSupplyLimit(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	svc.SetMaxSupply(3)
	app := seedApplication(t, store, nil)

	_, ords, err := svc.Materialize(context.Background(), app)
	require.Error(t, err)
	assert.Nil(t, ords)
	assert.Equal(t, "totalSupply cannot exceed 3", errMessage(err))

	_, total, err := store.ListOrdinals(context.Background(), ordinal.Filter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCreateFromApplicationChecks(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	ctx := context.Background()

	_, err := svc.CreateFromApplication(ctx, "")
	assert.Equal(t, "Application ID is required", errMessage(err))

	_, err = svc.CreateFromApplication(ctx, "xyz")
	assert.Equal(t, "Invalid application ID format: xyz", errMessage(err))

	_, err = svc.CreateFromApplication(ctx, "64b7f0c2a1b2c3d4e5f60718")
	assert.Equal(t, http.StatusNotFound, apperrors.GetServiceError(err).HTTPStatus)

	incomplete := seedApplication(t, store, func(a *application.Application) { a.IsComplete = false })
	_, err = svc.CreateFromApplication(ctx, incomplete.ID)
	assert.Equal(t, "Application is not complete", errMessage(err))

	pending := seedApplication(t, store, func(a *application.Application) { a.Status = application.StatusPending })
	_, err = svc.CreateFromApplication(ctx, pending.ID)
	assert.Equal(t, "Application has not been approved", errMessage(err))

	ready := seedApplication(t, store, nil)
	created, err := svc.CreateFromApplication(ctx, ready.ID)
	require.NoError(t, err)
	assert.Len(t, created.Ordinals, 4)

	app, err := store.GetApplication(ctx, ready.ID)
	require.NoError(t, err)
	assert.True(t, app.CollectionCreated)

	_, err = svc.CreateFromApplication(ctx, ready.ID)
	assert.Equal(t, "Collection already exists for this application", errMessage(err))
}

func TestOrdinalsBySlugSorted(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	app := seedApplication(t, store, nil)
	col, _, err := svc.Materialize(context.Background(), app)
	require.NoError(t, err)

	ords, err := svc.OrdinalsBySlug(context.Background(), col.Slug)
	require.NoError(t, err)
	for i, ord := range ords {
		assert.Equal(t, i+1, ord.OrdinalNumber)
	}

	_, err = svc.OrdinalsBySlug(context.Background(), "missing")
	assert.Equal(t, "Collection not found", errMessage(err))
}

func TestUpdatePartial(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	app := seedApplication(t, store, nil)
	col, _, err := svc.Materialize(context.Background(), app)
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), col.ID, []byte(`{"description":"new","settings":{"isVisible":false},"stats":{"floorPrice":"0.5"}}`))
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Description)
	assert.False(t, updated.Settings.IsVisible)
	assert.Equal(t, "0.5", updated.Stats.FloorPrice)
	assert.Equal(t, col.Name, updated.Name)
	assert.Equal(t, float64(5), updated.Settings.RoyaltyPercentage)

	_, err = svc.Update(context.Background(), col.ID, []byte(`{"settings":{"royaltyPercentage":150}}`))
	assert.Equal(t, "Royalty percentage must be between 0 and 100", errMessage(err))

	for _, body := range []string{`{"price":"NaN"}`, `{"stats":{"floorPrice":"Inf"}}`, `{"price":"-2"}`} {
		_, err = svc.Update(context.Background(), col.ID, []byte(body))
		assert.Equal(t, "Invalid price", errMessage(err), body)
	}

	_, err = svc.Update(context.Background(), col.ID, []byte(`{not json`))
	assert.Equal(t, "Invalid JSON body", errMessage(err))

	visible, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, visible)
}

func TestFixImages(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, placeholder, nil)
	ctx := context.Background()

	_, _, err := store.CreateCollectionWithOrdinals(ctx, collection.Collection{Name: "Bare", Slug: "bare"}, nil)
	require.NoError(t, err)
	_, _, err = store.CreateCollectionWithOrdinals(ctx, collection.Collection{Name: "Art", Slug: "art", Image: "/uploads/x.png"}, nil)
	require.NoError(t, err)

	report, err := svc.FixImages(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalCollections)
	assert.Equal(t, 1, report.CollectionsWithoutImages)
	assert.Equal(t, 1, report.ImagesStartingWithUpload)
	assert.Zero(t, report.CollectionsFixed)

	report, err = svc.FixImages(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CollectionsFixed)

	col, err := store.GetCollectionBySlug(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, placeholder, col.Image)
}
