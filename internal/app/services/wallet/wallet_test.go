package wallet

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/ordzaar/internal/app/domain/ordinal"
	apperrors "github.com/R3E-Network/ordzaar/internal/errors"
)

func newBalanceServer(t *testing.T, funded, spent int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/address/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"address":"bc1q","chain_stats":{"funded_txo_sum":` +
			strconv.Itoa(funded) + `,"spent_txo_sum":` + strconv.Itoa(spent) + `}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider(" Xverse ")
	require.NoError(t, err)
	assert.Equal(t, ProviderXverse, p)

	_, err = ParseProvider("metamask")
	require.Error(t, err)
	assert.Equal(t, "Unsupported wallet provider", apperrors.GetServiceError(err).Message)
}

func TestBalanceWithoutAPI(t *testing.T) {
	w := New(Config{}, nil)
	bal, err := w.Balance(context.Background(), "bc1qbuyer")
	require.NoError(t, err)
	assert.Zero(t, bal)
	assert.False(t, w.BalanceConfigured())
}

func TestBalanceFromAPI(t *testing.T) {
	srv := newBalanceServer(t, 150000, 50000)
	w := New(Config{APIURL: srv.URL}, nil)

	bal, err := w.Balance(context.Background(), "bc1qbuyer")
	require.NoError(t, err)
	assert.Equal(t, int64(100000), bal)
}

func TestMintRequiresSession(t *testing.T) {
	w := New(Config{}, nil)
	_, err := w.Mint(context.Background(), Session{}, ordinal.Ordinal{ID: "o1"})
	require.Error(t, err)
	assert.Equal(t, "Wallet not connected", apperrors.GetServiceError(err).Message)
}

func TestMintReturnsPlaceholderTx(t *testing.T) {
	w := New(Config{}, nil)
	w.now = func() time.Time { return time.UnixMilli(1700000000000) }

	session, err := w.Connect("unisat", "bc1qminter")
	require.NoError(t, err)
	txid, err := w.Mint(context.Background(), session, ordinal.Ordinal{ID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, "mock_txid_1700000000000", txid)
}

func TestPurchaseChecksBalance(t *testing.T) {
	srv := newBalanceServer(t, 1000, 0)
	w := New(Config{APIURL: srv.URL}, nil)
	session, err := w.Connect("xverse", "bc1qbuyer")
	require.NoError(t, err)

	_, err = w.Purchase(context.Background(), session, ordinal.Ordinal{ID: "o1"}, 0.01)
	require.Error(t, err)
	assert.Equal(t, "Insufficient balance", apperrors.GetServiceError(err).Message)

	txid, err := w.Purchase(context.Background(), session, ordinal.Ordinal{ID: "o1"}, 0.00001)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(txid, "mock_txid_"))
}

func TestPlaceholderDelayHonoursContext(t *testing.T) {
	w := New(Config{Delay: time.Minute}, nil)
	session, err := w.Connect("xverse", "bc1q")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.Mint(ctx, session, ordinal.Ordinal{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
