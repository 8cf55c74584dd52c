package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "github.com/R3E-Network/ordzaar/internal/app"
	"github.com/R3E-Network/ordzaar/internal/app/services/wallet"
	"github.com/R3E-Network/ordzaar/internal/middleware"
)

type collectionDoc struct {
	ID    string `json:"_id"`
	Image string `json:"image"`
	Price string `json:"price"`
	Stats struct {
		Volume float64 `json:"volume"`
		Sales  int     `json:"sales"`
	} `json:"stats"`
}

func (s *testServer) collection(slug string) collectionDoc {
	s.t.Helper()
	rec, env := s.do(http.MethodGet, "/api/v1/collections/"+slug, nil, "")
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var col collectionDoc
	decodeData(s.t, env, &col)
	return col
}

func (s *testServer) ordinalIDs(slug string) []string {
	s.t.Helper()
	_, env := s.do(http.MethodGet, "/api/v1/collections/"+slug+"/ordinals", nil, "")
	var ords []struct {
		ID string `json:"_id"`
	}
	decodeData(s.t, env, &ords)
	ids := make([]string, 0, len(ords))
	for _, o := range ords {
		ids = append(ids, o.ID)
	}
	return ids
}

func TestNonFinitePricesRejected(t *testing.T) {
	s := newTestServer(t)

	for _, price := range []string{"NaN", "Inf", "+Inf", "1e308"} {
		rec, env := s.do(http.MethodPost, "/api/v1/applications", map[string]interface{}{
			"name":        "Broken",
			"description": "bad price",
			"creator":     "bc1qcreator",
			"price":       price,
			"stats":       map[string]interface{}{"totalSupply": 1},
		}, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, price)
		assert.Equal(t, "Invalid price", env.Error, price)
	}

	_, slug := s.createApprovedCollection(1)
	id := s.ordinalIDs(slug)[0]
	rec, _ := s.do(http.MethodPost, "/api/v1/ordinals/mint", map[string]string{"ordinalId": id, "provider": "xverse", "address": "bc1qseller"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	seller := token(t, "seller", "bc1qseller", middleware.RoleUser)
	for _, price := range []string{"NaN", "Inf", "-Inf", "1e308"} {
		rec, env := s.do(http.MethodPut, "/api/v1/ordinals/"+id+"/list", map[string]string{"price": price}, seller)
		assert.Equal(t, http.StatusBadRequest, rec.Code, price)
		assert.Equal(t, "Price must be greater than zero", env.Error, price)
	}

	rec, env := s.do(http.MethodPost, "/api/v1/ordinals/"+id+"/buy", map[string]string{"provider": "unisat", "address": "bc1qbuyer"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, env.Error)

	rec, env = s.do(http.MethodGet, "/api/v1/marketplace/stats", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "0.01", s.collection(slug).Price)

	rec, env = s.do(http.MethodGet, "/api/v1/ordinals/search?maxPrice=NaN", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid maxPrice", env.Error)
}

func TestTotalSupplyBounds(t *testing.T) {
	s := newTestServerWith(t, app.Options{MaxSupply: 50})
	create := func(supply interface{}) (*httptest.ResponseRecorder, envelope) {
		return s.do(http.MethodPost, "/api/v1/applications", map[string]interface{}{
			"name":        "Bounded",
			"description": "supply checks",
			"creator":     "bc1qcreator",
			"price":       "0.01",
			"stats":       map[string]interface{}{"totalSupply": supply},
		}, "")
	}

	rec, env := create(51)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "totalSupply cannot exceed 50", env.Error)

	for _, supply := range []interface{}{10.7, "3.5", 1e12, "1e300"} {
		rec, env = create(supply)
		assert.Equal(t, http.StatusBadRequest, rec.Code, supply)
		assert.Equal(t, "Invalid JSON body", env.Error, supply)
	}

	rec, env = create("50")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID    string `json:"_id"`
		Stats struct {
			TotalSupply int `json:"totalSupply"`
		} `json:"stats"`
	}
	decodeData(t, env, &created)
	assert.Equal(t, 50, created.Stats.TotalSupply)

	rec, env = s.do(http.MethodPut, "/api/v1/applications/"+created.ID, map[string]interface{}{
		"stats": map[string]interface{}{"totalSupply": 5000},
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "totalSupply cannot exceed 50", env.Error)
}

func TestPriceHistory(t *testing.T) {
	s := newTestServer(t)
	_, slug := s.createApprovedCollection(2)
	col := s.collection(slug)
	ids := s.ordinalIDs(slug)

	for i, id := range ids {
		seller := "bc1qseller" + string(rune('a'+i))
		rec, _ := s.do(http.MethodPost, "/api/v1/ordinals/mint", map[string]string{"ordinalId": id, "provider": "xverse", "address": seller}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		price := []string{"0.5", "0.75"}[i]
		rec, _ = s.do(http.MethodPut, "/api/v1/ordinals/"+id+"/list", map[string]string{"price": price}, token(t, seller, seller, middleware.RoleUser))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec, _ = s.do(http.MethodPost, "/api/v1/ordinals/"+id+"/buy", map[string]string{"provider": "unisat", "address": "bc1qbuyer"}, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	type sale struct {
		Type      string `json:"type"`
		Amount    string `json:"amount"`
		OrdinalID string `json:"ordinalId"`
	}

	rec, env := s.do(http.MethodGet, "/api/v1/marketplace/price-history/"+col.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var history []sale
	decodeData(t, env, &history)
	require.Len(t, history, 2)
	assert.ElementsMatch(t, []string{"0.5", "0.75"}, []string{history[0].Amount, history[1].Amount})
	for _, tx := range history {
		assert.Equal(t, "sale", tx.Type)
	}

	rec, env = s.do(http.MethodGet, "/api/v1/marketplace/price-history/"+ids[1], nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	history = nil
	decodeData(t, env, &history)
	require.Len(t, history, 1)
	assert.Equal(t, ids[1], history[0].OrdinalID)
	assert.Equal(t, "0.75", history[0].Amount)

	rec, env = s.do(http.MethodGet, "/api/v1/marketplace/price-history/5f1d7f3b9c1e4a2b3c4d5e6f", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Collection or ordinal not found", env.Error)

	rec, env = s.do(http.MethodGet, "/api/v1/marketplace/price-history/not-an-id", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid ID", env.Error)

	updated := s.collection(slug)
	assert.Equal(t, 2, updated.Stats.Sales)
	assert.InDelta(t, 1.25, updated.Stats.Volume, 1e-9)
}

func TestWalletBalance(t *testing.T) {
	s := newTestServer(t)

	type balance struct {
		Address    string `json:"address"`
		Balance    int64  `json:"balance"`
		Configured bool   `json:"configured"`
	}

	rec, env := s.do(http.MethodGet, "/api/v1/wallet/balance/bc1qalice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got balance
	decodeData(t, env, &got)
	assert.Equal(t, balance{Address: "bc1qalice"}, got)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/address/bc1qalice") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":"bc1qalice","chain_stats":{"funded_txo_sum":150000,"spent_txo_sum":50000}}`))
	}))
	t.Cleanup(api.Close)

	live := newTestServerWith(t, app.Options{Wallet: wallet.Config{APIURL: api.URL}})
	rec, env = live.do(http.MethodGet, "/api/v1/wallet/balance/bc1qalice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = balance{}
	decodeData(t, env, &got)
	assert.Equal(t, balance{Address: "bc1qalice", Balance: 100000, Configured: true}, got)
}

func TestDebugCollectionImages(t *testing.T) {
	s := newTestServer(t)
	admin := token(t, "admin", "", middleware.RoleAdmin)
	_, slug := s.createApprovedCollection(1)
	col := s.collection(slug)

	rec, _ := s.do(http.MethodGet, "/api/v1/collections/debug-images", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/v1/collections/debug-images", nil, token(t, "u1", "bc1qu1", middleware.RoleUser))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPut, "/api/v1/collections/"+col.ID, map[string]string{"image": ""}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	type report struct {
		TotalCollections         int `json:"totalCollections"`
		CollectionsWithoutImages int `json:"collectionsWithoutImages"`
		CollectionsFixed         int `json:"collectionsFixed"`
		CollectionDetails        []struct {
			ImageValue string `json:"imageValue"`
			Fixed      bool   `json:"fixed"`
		} `json:"collectionDetails"`
	}

	rec, env := s.do(http.MethodGet, "/api/v1/collections/debug-images", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var r report
	decodeData(t, env, &r)
	assert.Equal(t, 1, r.TotalCollections)
	assert.Equal(t, 1, r.CollectionsWithoutImages)
	assert.Zero(t, r.CollectionsFixed)
	require.Len(t, r.CollectionDetails, 1)
	assert.Equal(t, "null", r.CollectionDetails[0].ImageValue)
	assert.Empty(t, s.collection(slug).Image)

	rec, env = s.do(http.MethodGet, "/api/v1/collections/debug-images?fix=true", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	r = report{}
	decodeData(t, env, &r)
	assert.Equal(t, 1, r.CollectionsFixed)
	assert.True(t, r.CollectionDetails[0].Fixed)
	assert.Equal(t, s.uploads.PlaceholderURL(), s.collection(slug).Image)
}
