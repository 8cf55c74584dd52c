package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000", cfg.Server.URL)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "uploads", cfg.Uploads.Dir)
	assert.Equal(t, DefaultAllowedOrigins, cfg.Security.AllowedOrigins)
	assert.Equal(t, 20.0, cfg.Security.RateLimitRPS)
	assert.Equal(t, 40, cfg.Security.RateLimitBurst)
	assert.Equal(t, 1500*time.Millisecond, cfg.Wallet.PlaceholderDelay)
	assert.Equal(t, "@every 1m", cfg.Market.StatsSchedule)
	assert.Equal(t, 10000, cfg.Market.MaxSupply)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SERVER_URL", "https://api.example.com/")
	t.Setenv("STORAGE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/ordzaar?sslmode=disable")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("MAX_TOTAL_SUPPLY", "250")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "https://api.example.com", cfg.Server.URL)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "s3cret", cfg.Security.JWTSecret)
	assert.Equal(t, 250, cfg.Market.MaxSupply)
}

func TestLoadYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordzaar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 6000
security:
  allowedOrigins: ["https://app.example"]
  rateLimitBurst: 5
market:
  statsSchedule: "@every 30s"
`), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Server.Port)
	assert.Equal(t, []string{"https://app.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, 5, cfg.Security.RateLimitBurst)
	assert.Equal(t, "@every 30s", cfg.Market.StatsSchedule)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORAGE_DRIVER": "postgres", "DATABASE_URL": ""},
		"unknown driver":       {"STORAGE_DRIVER": "sqlite"},
		"bad port":             {"PORT": "70000"},
		"zero max supply":      {"MAX_TOTAL_SUPPLY": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}

	t.Run("missing config file", func(t *testing.T) {
		t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
		if _, err := Load(); err == nil {
			t.Fatalf("expected error")
		}
	})
}
