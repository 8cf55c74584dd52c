// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongodb"
)

// DefaultAllowedOrigins are the frontend origins accepted when
// CORS_ALLOWED_ORIGINS is unset.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host string `env:"HOST" yaml:"host"`
	Port int    `env:"PORT,default=5000" yaml:"port"`
	// URL is the public base used to build upload links.
	URL             string        `env:"SERVER_URL" yaml:"url"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=30s" yaml:"readTimeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=60s" yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdownTimeout"`
}

// Addr is the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver          string        `env:"STORAGE_DRIVER,default=memory" yaml:"driver"`
	DatabaseURL     string        `env:"DATABASE_URL" yaml:"-"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10" yaml:"maxOpenConns"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=5m" yaml:"connMaxLifetime"`
	MongoURI        string        `env:"MONGODB_URI,default=mongodb://localhost:27017/ordzaar" yaml:"-"`
	MongoDatabase   string        `env:"MONGODB_DATABASE" yaml:"mongoDatabase"`
}

// CacheConfig points the statistics cache at Redis. An empty URL keeps the
// cache in process.
type CacheConfig struct {
	RedisURL string        `env:"REDIS_URL" yaml:"-"`
	StatsTTL time.Duration `env:"MARKET_STATS_TTL,default=5m" yaml:"statsTTL"`
}

// UploadConfig locates stored artwork.
type UploadConfig struct {
	Dir string `env:"UPLOAD_DIR,default=uploads" yaml:"dir"`
}

// SecurityConfig covers CORS, tokens and rate limiting.
type SecurityConfig struct {
	// Origins is the comma separated CORS_ALLOWED_ORIGINS value.
	Origins        string   `env:"CORS_ALLOWED_ORIGINS" yaml:"-"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	// JWTSecret signs bearer tokens. Empty disables authentication.
	JWTSecret      string  `env:"JWT_SECRET" yaml:"-"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS,default=20" yaml:"rateLimitRPS"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST,default=40" yaml:"rateLimitBurst"`
	AuditLogPath   string  `env:"AUDIT_LOG_PATH" yaml:"auditLogPath"`
}

// WalletConfig configures the placeholder wallet operations.
type WalletConfig struct {
	APIURL           string        `env:"WALLET_API_URL" yaml:"apiURL"`
	APIKey           string        `env:"WALLET_API_KEY" yaml:"-"`
	PlaceholderDelay time.Duration `env:"WALLET_PLACEHOLDER_DELAY,default=1500ms" yaml:"placeholderDelay"`
}

// MarketConfig schedules background statistics work and bounds collection
// sizes.
type MarketConfig struct {
	StatsSchedule string `env:"MARKET_STATS_SCHEDULE,default=@every 1m" yaml:"statsSchedule"`
	MaxSupply     int    `env:"MAX_TOTAL_SUPPLY,default=10000" yaml:"maxSupply"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format     string `env:"LOG_FORMAT,default=text" yaml:"format"`
	Output     string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=ordzaar" yaml:"filePrefix"`
}

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Cache    CacheConfig    `yaml:"cache"`
	Uploads  UploadConfig   `yaml:"uploads"`
	Security SecurityConfig `yaml:"security"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Market   MarketConfig   `yaml:"market"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads .env (when present), decodes the environment and applies the
// YAML file named by CONFIG_FILE. Keys present in the file override the
// environment; secrets are only read from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.overlay(path); err != nil {
			return nil, err
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.Driver == "mongo" {
		c.Storage.Driver = DriverMongo
	}
	if c.Server.URL == "" {
		c.Server.URL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")

	if len(c.Security.AllowedOrigins) == 0 && c.Security.Origins != "" {
		c.Security.AllowedOrigins = strings.Split(c.Security.Origins, ",")
	}
	var origins []string
	for _, o := range c.Security.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	c.Security.AllowedOrigins = origins
	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = append([]string{}, DefaultAllowedOrigins...)
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("MONGODB_URI is required for the mongodb driver")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Security.RateLimitRPS < 0 || c.Security.RateLimitBurst < 0 {
		return errors.New("rate limit settings must not be negative")
	}
	if c.Market.MaxSupply < 1 {
		return errors.New("MAX_TOTAL_SUPPLY must be at least 1")
	}
	return nil
}
