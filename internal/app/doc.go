// Package app composes the marketplace services into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Domain models (applications, collections, ordinals, users, transactions)
//	├── storage/            # Store interfaces and the memory, postgres and mongodb backends
//	├── services/           # Business rules per domain plus the wallet wrapper
//	├── httpapi/            # REST handlers and routing
//	├── events/             # Websocket hub for marketplace events
//	├── jobs/               # Cron scheduled background work
//	├── cache/              # Memory and redis caches for computed stats
//	├── metrics/            # Prometheus collectors
//	├── runtime/            # Config driven process wiring and HTTP server
//	└── system/             # Lifecycle manager
//
// # Dependency Direction
//
//	cmd/ordzaar → internal/cli → internal/app/runtime
//	      │
//	      ▼
//	internal/app (composition) ──► services ──► storage ──► domain
//
// Handlers never touch stores directly; every operation goes through a
// service so the HTTP layer and the CLI seed command share one code path.
package app
