package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"table-graphql/internal/logging"
)

// cleanupStack releases resources acquired during Init, newest first.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run executes every cleanup even when earlier ones fail and returns the joined failures.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		started := time.Now()
		err := item.fn(ctx)
		if logger != nil {
			attrs := []any{
				slog.String("component", item.name),
				slog.Duration("took", time.Since(started)),
			}
			if err != nil {
				logger.Warn("release failed", append(attrs, slog.String("error", err.Error()))...)
			} else {
				logger.Debug("released", attrs...)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
		}
	}
	s.items = nil
	return errors.Join(errs...)
}

// Shutdown releases everything Init acquired. Only the first call does work;
// later calls return nil.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.started = false
		a.stateMu.Unlock()

		components := len(cleanup.items)
		err = cleanup.run(ctx, a.logger)
		if a.logger != nil {
			a.logger.Info("table-graphql resources released", slog.Int("components", components))
		}
	})
	return err
}
