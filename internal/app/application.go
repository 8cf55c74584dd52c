package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/R3E-Network/ordzaar/internal/app/cache"
	"github.com/R3E-Network/ordzaar/internal/app/events"
	"github.com/R3E-Network/ordzaar/internal/app/jobs"
	"github.com/R3E-Network/ordzaar/internal/app/services/applications"
	"github.com/R3E-Network/ordzaar/internal/app/services/collections"
	"github.com/R3E-Network/ordzaar/internal/app/services/marketplace"
	"github.com/R3E-Network/ordzaar/internal/app/services/ordinals"
	"github.com/R3E-Network/ordzaar/internal/app/services/users"
	"github.com/R3E-Network/ordzaar/internal/app/services/wallet"
	"github.com/R3E-Network/ordzaar/internal/app/storage"
	"github.com/R3E-Network/ordzaar/internal/app/storage/memory"
	"github.com/R3E-Network/ordzaar/internal/app/system"
	"github.com/R3E-Network/ordzaar/pkg/logger"
)

// DefaultStatsSchedule refreshes the cached market stats once a minute.
const DefaultStatsSchedule = "@every 1m"

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Applications storage.ApplicationStore
	Collections  storage.CollectionStore
	Ordinals     storage.OrdinalStore
	Users        storage.UserStore
	Transactions storage.TransactionStore
}

// Options tune the services built by New. The zero value is usable.
type Options struct {
	// PlaceholderURL is the image given to collections and ordinals that
	// have no artwork.
	PlaceholderURL string
	Wallet         wallet.Config
	// Cache backs the market stats. Nil uses an in-process cache.
	Cache         cache.Cache
	StatsTTL      time.Duration
	StatsSchedule string
	// MaxSupply bounds totalSupply on applications. Zero uses
	// application.DefaultMaxSupply.
	MaxSupply int
	// AllowOrigin decides which browser origins may open the event stream.
	// Nil allows all.
	AllowOrigin func(origin string) bool
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Applications *applications.Service
	Collections  *collections.Service
	Ordinals     *ordinals.Service
	Users        *users.Service
	Marketplace  *marketplace.Service
	Wallet       *wallet.Wallet

	Events    *events.Hub
	Scheduler *jobs.Scheduler
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Applications == nil {
		stores.Applications = mem
	}
	if stores.Collections == nil {
		stores.Collections = mem
	}
	if stores.Ordinals == nil {
		stores.Ordinals = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}

	hub := events.NewHub(opts.AllowOrigin, log.Component("events"))

	walletSvc := wallet.New(opts.Wallet, log.Component("wallet"))
	if !walletSvc.BalanceConfigured() {
		log.Warn("WALLET_API_URL not set; balances report 0 and purchases skip the balance check")
	}

	collectionSvc := collections.New(stores.Collections, stores.Ordinals, stores.Applications, opts.PlaceholderURL, log.Component("collections"))
	collectionSvc.AttachPublisher(hub)
	collectionSvc.SetMaxSupply(opts.MaxSupply)

	applicationSvc := applications.New(stores.Applications, stores.Collections, log.Component("applications"))
	applicationSvc.AttachMaterializer(collectionSvc)
	applicationSvc.AttachPublisher(hub)
	applicationSvc.SetMaxSupply(opts.MaxSupply)

	ordinalSvc := ordinals.New(stores.Ordinals, log.Component("ordinals"))
	ordinalSvc.AttachPublisher(hub)

	userSvc := users.New(stores.Users, stores.Ordinals, log.Component("users"))

	marketSvc := marketplace.New(stores.Ordinals, stores.Collections, stores.Transactions, walletSvc, opts.Cache, log.Component("marketplace"))
	marketSvc.AttachPublisher(hub)
	if opts.StatsTTL > 0 {
		marketSvc.SetStatsTTL(opts.StatsTTL)
	}

	scheduler := jobs.NewScheduler(log.Component("jobs"))
	schedule := strings.TrimSpace(opts.StatsSchedule)
	if schedule == "" {
		schedule = DefaultStatsSchedule
	}
	if err := scheduler.Add("market-stats", schedule, 30*time.Second, func(ctx context.Context) error {
		_, err := marketSvc.RefreshStats(ctx)
		return err
	}); err != nil {
		return nil, fmt.Errorf("schedule market stats: %w", err)
	}

	manager := system.NewManager()
	for _, name := range []string{"applications", "collections", "ordinals", "users", "marketplace"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}
	for _, svc := range []system.Service{hub, scheduler} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:      manager,
		log:          log,
		Applications: applicationSvc,
		Collections:  collectionSvc,
		Ordinals:     ordinalSvc,
		Users:        userSvc,
		Marketplace:  marketSvc,
		Wallet:       walletSvc,
		Events:       hub,
		Scheduler:    scheduler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services. Jobs must be added to Scheduler
// before Start.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Services lists the names of the registered lifecycle services.
func (a *Application) Services() []string {
	svcs := a.manager.Services()
	names := make([]string, 0, len(svcs))
	for _, svc := range svcs {
		names = append(names, svc.Name())
	}
	return names
}
