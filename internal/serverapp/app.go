// Package serverapp owns the server lifecycle: observability providers, the
// database pool, the schema snapshot and the HTTP server.
package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"table-graphql/internal/config"
	"table-graphql/internal/logging"
	"table-graphql/internal/observability"
	"table-graphql/internal/schemabuild"
	"table-graphql/internal/schemarefresh"
	"table-graphql/internal/sqlutil"
)

// App owns runtime resources for the table-graphql server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider

	dialect sqlutil.Dialect

	meterProvider        *observability.MeterProvider
	graphqlMetrics       *observability.GraphQLMetrics
	schemaRefreshMetrics *observability.SchemaRefreshMetrics
	tracerProvider       *observability.TracerProvider

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }

	manager      *schemarefresh.Manager
	schemaCancel context.CancelFunc

	mux     *http.ServeMux
	handler http.Handler

	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dialect, err := cfg.Database.Dialect()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database dialect: %w", err)
	}

	return &App{
		cfg:     cfg,
		logger:  logger,
		dialect: dialect,
	}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Snapshot returns the active schema snapshot, or nil before Init.
func (a *App) Snapshot() *schemabuild.Snapshot {
	a.stateMu.Lock()
	manager := a.manager
	a.stateMu.Unlock()
	if manager == nil {
		return nil
	}
	return manager.CurrentSnapshot()
}

// Handler returns the fully wrapped HTTP handler built during Init.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
