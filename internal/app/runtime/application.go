// Package runtime wires configuration, storage and the HTTP server into a
// runnable service.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/R3E-Network/ordzaar/internal/app"
	"github.com/R3E-Network/ordzaar/internal/app/cache"
	"github.com/R3E-Network/ordzaar/internal/app/httpapi"
	"github.com/R3E-Network/ordzaar/internal/app/services/wallet"
	"github.com/R3E-Network/ordzaar/internal/app/storage/mongodb"
	"github.com/R3E-Network/ordzaar/internal/app/storage/postgres"
	"github.com/R3E-Network/ordzaar/internal/config"
	"github.com/R3E-Network/ordzaar/internal/middleware"
	"github.com/R3E-Network/ordzaar/internal/uploads"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// limiterCleanupSchedule prunes idle rate limiter entries.
const limiterCleanupSchedule = "@every 5m"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	backend    *Backend
	uploads    *uploads.Store
	limiter    *middleware.RateLimiter
	handler    http.Handler
	httpServer *http.Server
}

// Backend holds the open storage and cache connections.
type Backend struct {
	Stores app.Stores
	Cache  cache.Cache
	DB     *sqlx.DB
	Mongo  *mongodb.Store
}

// Close releases every open connection.
func (b *Backend) Close(ctx context.Context) error {
	var errs []error
	if b.Cache != nil {
		errs = append(errs, b.Cache.Close())
	}
	if b.DB != nil {
		errs = append(errs, b.DB.Close())
	}
	if b.Mongo != nil {
		errs = append(errs, b.Mongo.Close(ctx))
	}
	return errors.Join(errs...)
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		FilePrefix: cfg.FilePrefix,
	})
}

// OpenDatabase opens and pings the postgres pool described by cfg.
func OpenDatabase(ctx context.Context, cfg config.StorageConfig) (*sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("database url not configured")
	}
	db, err := sqlx.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// OpenBackend connects the configured storage driver and cache. Postgres
// schemas are migrated to the latest version.
func OpenBackend(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backend, error) {
	b := &Backend{}
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := OpenDatabase(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.DB = db
		if err := postgres.MigrateUp(db.DB); err != nil {
			b.Close(ctx)
			return nil, err
		}
		store := postgres.New(db)
		b.Stores = app.Stores{Applications: store, Collections: store, Ordinals: store, Users: store, Transactions: store}
	case config.DriverMongo:
		store, err := mongodb.Connect(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, log.Component("mongo"))
		if err != nil {
			return nil, err
		}
		b.Mongo = store
		b.Stores = app.Stores{Applications: store, Collections: store, Ordinals: store, Users: store, Transactions: store}
	default:
		log.Warn("using in-memory storage; data is lost on restart")
	}

	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.Cache.RedisURL, "ordzaar:")
		if err != nil {
			b.Close(ctx)
			return nil, err
		}
		b.Cache = rc
	}
	return b, nil
}

// NewApplication constructs the service from cfg. A nil cfg is loaded from
// the environment.
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if log == nil {
		log = NewLogger(cfg.Logging)
	}

	files, err := uploads.New(cfg.Uploads.Dir, cfg.Server.URL, log.Component("uploads"))
	if err != nil {
		return nil, fmt.Errorf("configure uploads: %w", err)
	}
	if err := files.EnsurePlaceholder(); err != nil {
		return nil, fmt.Errorf("write placeholder image: %w", err)
	}

	backend, err := OpenBackend(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	cors := middleware.NewCORSMiddleware(cfg.Security.AllowedOrigins)
	application, err := app.New(backend.Stores, app.Options{
		PlaceholderURL: files.PlaceholderURL(),
		Wallet: wallet.Config{
			APIURL: cfg.Wallet.APIURL,
			APIKey: cfg.Wallet.APIKey,
			Delay:  cfg.Wallet.PlaceholderDelay,
		},
		Cache:         backend.Cache,
		StatsTTL:      cfg.Cache.StatsTTL,
		StatsSchedule: cfg.Market.StatsSchedule,
		MaxSupply:     cfg.Market.MaxSupply,
		AllowOrigin:   cors.AllowOrigin,
	}, log)
	if err != nil {
		backend.Close(ctx)
		return nil, err
	}

	limiter := middleware.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst, log.Component("ratelimit"))
	if err := application.Scheduler.Add("ratelimit-cleanup", limiterCleanupSchedule, 0, func(context.Context) error {
		if n := limiter.Cleanup(middleware.DefaultLimiterIdle); n > 0 {
			log.WithField("removed", n).Debug("pruned idle rate limiters")
		}
		return nil
	}); err != nil {
		backend.Close(ctx)
		return nil, err
	}

	router, err := httpapi.NewRouter(application, httpapi.Options{
		Auth:      middleware.NewAuthMiddleware([]byte(cfg.Security.JWTSecret), log.Component("auth")),
		Uploads:   files,
		Storage:   cfg.Storage.Driver,
		AuditPath: cfg.Security.AuditLogPath,
		Log:       log.Component("httpapi"),
	})
	if err != nil {
		backend.Close(ctx)
		return nil, err
	}

	var handler http.Handler = router
	handler = limiter.Handler(handler)
	handler = cors.Handler(handler)
	handler = middleware.MetricsMiddleware(router)(handler)
	handler = middleware.NewTracingMiddleware(log.Component("http")).Handler(handler)

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     application,
		backend: backend,
		uploads: files,
		limiter: limiter,
		handler: handler,
		httpServer: &http.Server{
			Addr:              cfg.Server.Addr(),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
		},
	}, nil
}

// App exposes the wired services.
func (a *Application) App() *app.Application { return a.app }

// Handler is the fully wrapped HTTP handler.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts the services and the HTTP server and blocks until the context is
// cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s (storage=%s)", a.httpServer.Addr, a.cfg.Storage.Driver)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, the services and the storage
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	if err := a.backend.Close(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error closing storage connections")
	}
	return errors.Join(errs...)
}
