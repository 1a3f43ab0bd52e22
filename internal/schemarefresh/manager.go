// Package schemarefresh keeps the active schema snapshot current by rebuilding
// it on a polling interval or on demand and swapping it in when the table
// metadata fingerprint changes.
package schemarefresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"table-graphql/internal/logging"
	"table-graphql/internal/observability"
	"table-graphql/internal/schemabuild"
)

const (
	TriggerStartup = "startup"
	TriggerPoll    = "poll"
	TriggerManual  = "manual"
)

// Config controls schema refresh behavior. A zero MinInterval disables polling;
// manual refreshes still work.
type Config struct {
	Build       schemabuild.Config
	Logger      *logging.Logger
	Metrics     *observability.SchemaRefreshMetrics
	MinInterval time.Duration
	MaxInterval time.Duration

	// build replaces schemabuild.Build in tests.
	build func(context.Context, schemabuild.Config) (*schemabuild.Snapshot, error)
}

// Manager maintains and refreshes schema snapshots.
type Manager struct {
	buildCfg    schemabuild.Config
	build       func(context.Context, schemabuild.Config) (*schemabuild.Snapshot, error)
	logger      *logging.Logger
	metrics     *observability.SchemaRefreshMetrics
	minInterval time.Duration
	maxInterval time.Duration

	active    atomic.Pointer[schemabuild.Snapshot]
	refreshMu sync.Mutex
	wg        sync.WaitGroup
}

// NewManager builds the initial snapshot and returns a manager serving it.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.Logger == nil {
		cfg.Logger = &logging.Logger{Logger: slog.Default()}
	}
	if cfg.build == nil {
		cfg.build = schemabuild.Build
	}

	maxInterval := cfg.MaxInterval
	if maxInterval < cfg.MinInterval {
		maxInterval = cfg.MinInterval
	}

	m := &Manager{
		buildCfg:    cfg.Build,
		build:       cfg.build,
		logger:      cfg.Logger.WithFields(slog.String("component", "schema_refresh")),
		metrics:     cfg.Metrics,
		minInterval: cfg.MinInterval,
		maxInterval: maxInterval,
	}

	if _, err := m.refresh(ctx, TriggerStartup); err != nil {
		return nil, err
	}
	return m, nil
}

// Start begins the background refresh loop. It returns immediately when
// polling is disabled.
func (m *Manager) Start(ctx context.Context) {
	if m.minInterval <= 0 {
		m.logger.Info("schema refresh polling disabled")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.refreshLoop(ctx)
	}()
}

// ServeHTTP dispatches to the handler of the snapshot active when the request arrives.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	snapshot := m.CurrentSnapshot()
	if snapshot == nil || snapshot.Handler == nil {
		http.Error(w, "schema not ready", http.StatusServiceUnavailable)
		return
	}
	snapshot.Handler.ServeHTTP(w, r)
}

// CurrentSnapshot returns the active schema snapshot.
func (m *Manager) CurrentSnapshot() *schemabuild.Snapshot {
	return m.active.Load()
}

// RefreshNowContext forces a rebuild and reports whether the active snapshot changed.
func (m *Manager) RefreshNowContext(ctx context.Context) (bool, error) {
	return m.refresh(ctx, TriggerManual)
}

// Wait blocks until the refresh loop exits or the context is canceled.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refreshLoop(ctx context.Context) {
	interval := m.minInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("schema refresh stopped")
			return
		case <-timer.C:
			swapped, err := m.refresh(ctx, TriggerPoll)
			switch {
			case err != nil:
				m.logger.Warn("schema refresh failed", slog.String("error", err.Error()))
				interval = m.minInterval
			case swapped:
				interval = m.minInterval
			default:
				interval = nextInterval(interval, m.minInterval, m.maxInterval)
			}
			timer.Reset(interval)
		}
	}
}

// refresh rebuilds the snapshot and swaps it in only when the fingerprint differs.
func (m *Manager) refresh(ctx context.Context, trigger string) (bool, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	snapshot, err := m.build(ctx, m.buildCfg)
	if err != nil {
		m.record(ctx, time.Since(start), trigger, false, false)
		return false, fmt.Errorf("schema %s refresh: %w", trigger, err)
	}

	current := m.active.Load()
	if current != nil && current.Fingerprint == snapshot.Fingerprint {
		m.record(ctx, time.Since(start), trigger, true, false)
		m.logger.Debug("schema unchanged", slog.String("fingerprint", current.Fingerprint))
		return false, nil
	}

	m.active.Store(snapshot)
	m.record(ctx, time.Since(start), trigger, true, true)
	if current != nil {
		m.logger.Info("schema change detected, snapshot swapped",
			slog.String("trigger", trigger),
			slog.String("previous_fingerprint", current.Fingerprint),
			slog.String("fingerprint", snapshot.Fingerprint),
		)
	}
	return true, nil
}

func (m *Manager) record(ctx context.Context, duration time.Duration, trigger string, success, swapped bool) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordRefresh(context.WithoutCancel(ctx), duration, trigger, success, swapped)
}

func nextInterval(current, minInterval, maxInterval time.Duration) time.Duration {
	if current < minInterval {
		return minInterval
	}
	next := current + current/2
	if next > maxInterval {
		return maxInterval
	}
	return next
}
