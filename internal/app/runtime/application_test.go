package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/ordzaar/internal/config"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  config.ServerConfig{Port: 5000, URL: "http://localhost:5000", ShutdownTimeout: time.Second},
		Storage: config.StorageConfig{Driver: config.DriverMemory},
		Uploads: config.UploadConfig{Dir: t.TempDir()},
		Security: config.SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimitRPS:   1,
			RateLimitBurst: 2,
		},
		Market: config.MarketConfig{StatsSchedule: "@every 1m"},
	}
}

func newTestApplication(t *testing.T) *Application {
	t.Helper()
	a, err := NewApplication(context.Background(), testConfig(t), logger.NewDefault("runtime-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestNewApplicationWiring(t *testing.T) {
	a := newTestApplication(t)

	assert.ElementsMatch(t, []string{"market-stats", "ratelimit-cleanup"}, a.App().Scheduler.Jobs())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/placeholder.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitApplied(t *testing.T) {
	a := newTestApplication(t)

	var last int
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/collections", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		a.Handler().ServeHTTP(rec, req)
		last = rec.Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestOpenBackendMemory(t *testing.T) {
	cfg := testConfig(t)
	b, err := OpenBackend(context.Background(), cfg, logger.NewDefault("runtime-test"))
	require.NoError(t, err)
	assert.Nil(t, b.Stores.Applications)
	assert.Nil(t, b.DB)
	require.NoError(t, b.Close(context.Background()))
}

func TestOpenDatabaseRequiresURL(t *testing.T) {
	if _, err := OpenDatabase(context.Background(), config.StorageConfig{}); err == nil {
		t.Fatalf("expected error without database url")
	}
}
