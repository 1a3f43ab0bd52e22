package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemaRefreshMetrics tracks metadata rebuilds and snapshot swaps.
type SchemaRefreshMetrics struct {
	attempts        metric.Int64Counter
	failures        metric.Int64Counter
	swaps           metric.Int64Counter
	duration        metric.Float64Histogram
	lastSuccessUnix atomic.Int64
}

// InitSchemaRefreshMetrics creates the refresh instruments on the global meter provider.
func InitSchemaRefreshMetrics(logger *slog.Logger) (*SchemaRefreshMetrics, error) {
	meter := otel.Meter(ServiceName)

	attempts, err := meter.Int64Counter(
		"schema.refresh.total",
		metric.WithDescription("Total number of schema rebuild attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema refresh counter: %w", err)
	}

	failures, err := meter.Int64Counter(
		"schema.refresh.errors.total",
		metric.WithDescription("Total number of failed schema rebuild attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema refresh error counter: %w", err)
	}

	swaps, err := meter.Int64Counter(
		"schema.snapshot.swaps",
		metric.WithDescription("Number of times a rebuilt snapshot replaced the active one"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot swap counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		"schema.refresh.duration",
		metric.WithDescription("Duration of schema rebuild attempts in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema refresh duration histogram: %w", err)
	}

	lastSuccess, err := meter.Int64ObservableGauge(
		"schema.refresh.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful schema rebuild"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema refresh last success gauge: %w", err)
	}

	metrics := &SchemaRefreshMetrics{
		attempts: attempts,
		failures: failures,
		swaps:    swaps,
		duration: duration,
	}

	_, err = meter.RegisterCallback(
		func(_ context.Context, observer metric.Observer) error {
			if value := metrics.lastSuccessUnix.Load(); value > 0 {
				observer.ObserveInt64(lastSuccess, value)
			}
			return nil
		},
		lastSuccess,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register schema refresh gauge callback: %w", err)
	}

	logger.Debug("schema refresh metrics initialized")
	return metrics, nil
}

// RecordRefresh records one rebuild attempt. trigger is "startup", "poll" or
// "manual"; swapped reports whether the active snapshot changed.
func (m *SchemaRefreshMetrics) RecordRefresh(ctx context.Context, duration time.Duration, trigger string, success, swapped bool) {
	attrs := metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("success", success),
	)
	m.attempts.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(duration.Milliseconds()), attrs)

	if !success {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
		return
	}
	m.lastSuccessUnix.Store(time.Now().Unix())
	if swapped {
		m.swaps.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
	}
}
