package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/ordzaar/internal/app/domain/application"
	"github.com/R3E-Network/ordzaar/internal/app/domain/collection"
	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestCreateApplication(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_applications")).
		WithArgs(sqlmock.AnyArg(), "punks-123456", "pending", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	app, err := store.CreateApplication(context.Background(), application.Application{
		Name:   "Punks",
		Slug:   "punks-123456",
		Status: application.StatusPending,
	})
	require.NoError(t, err)
	assert.Len(t, app.ID, 24)
	assert.NotNil(t, app.Assets.Images)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateApplicationDuplicateSlug(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_applications")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "ordz_applications_slug_key"})

	_, err := store.CreateApplication(context.Background(), application.Application{Slug: "dup"})
	assert.True(t, errors.Is(err, storage.ErrConflict), "got %v", err)
}

func TestGetApplication(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc FROM ordz_applications WHERE id = $1")).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"_id":"abc","name":"Punks","status":"approved","stats":{"totalSupply":3,"minted":0},"assets":{"images":["a.png"]}}`)))

	app, err := store.GetApplication(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Punks", app.Name)
	assert.Equal(t, application.StatusApproved, app.Status)
	assert.Equal(t, 3, app.Stats.TotalSupply)
	assert.Equal(t, []string{"a.png"}, app.Assets.Images)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc FROM ordz_applications WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"doc"}))

	_, err = store.GetApplication(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestCreateCollectionWithOrdinalsCommits(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_collections")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_ordinals")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_ordinals")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	col, ords, err := store.CreateCollectionWithOrdinals(context.Background(),
		collection.Collection{Name: "Punks", Slug: "punks"},
		[]ordinal.Ordinal{{Name: "Punks #1", OrdinalNumber: 1, Price: "0.01"}, {Name: "Punks #2", OrdinalNumber: 2, Price: "0.01"}})
	require.NoError(t, err)
	require.Len(t, ords, 2)
	for _, ord := range ords {
		assert.Equal(t, col.ID, ord.CollectionID)
		assert.NotEmpty(t, ord.ID)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCollectionWithOrdinalsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_collections")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ordz_ordinals")).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, _, err := store.CreateCollectionWithOrdinals(context.Background(),
		collection.Collection{Slug: "punks"},
		[]ordinal.Ordinal{{Name: "Punks #1", OrdinalNumber: 1}})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrdinalsBuildsFilter(t *testing.T) {
	store, mock := newMockStore(t)
	listed := true

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM ordz_ordinals WHERE collection_id = $1 AND listed = $2")).
		WithArgs("col1", true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc FROM ordz_ordinals WHERE collection_id = $1 AND listed = $2 ORDER BY created_at, collection_id, ordinal_number LIMIT $3 OFFSET $4")).
		WithArgs("col1", true, 2, 4).
		WillReturnRows(sqlmock.NewRows([]string{"doc"}).
			AddRow([]byte(`{"_id":"o5","name":"Punks #5","ordinalNumber":5,"listed":true}`)))

	items, total, err := store.ListOrdinals(context.Background(), ordinal.Filter{CollectionID: "col1", Listed: &listed, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].OrdinalNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdinalWhereEscapesWildcards(t *testing.T) {
	where, args := ordinalWhere(ordinal.Filter{Query: ` 50%_off\ `})
	assert.Equal(t, ` WHERE name ILIKE $1 ESCAPE '\'`, where)
	assert.Equal(t, []interface{}{`%50\%\_off\\%`}, args)
}

func TestUpdateOrdinalMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE ordz_ordinals")).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := store.UpdateOrdinal(context.Background(), ordinal.Ordinal{ID: "gone"})
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

func TestNumericPrice(t *testing.T) {
	assert.False(t, numericPrice("free").Valid)
	p := numericPrice("0.25")
	assert.True(t, p.Valid)
	assert.Equal(t, 0.25, p.Float64)
}
