package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records execution metrics for outbound calls.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordAttempt records one network attempt with duration and error status.
	RecordAttempt(ctx context.Context, meta CallMeta, duration time.Duration, err error)

	// RecordBreakerTransition records a circuit breaker state change on a key.
	RecordBreakerTransition(ctx context.Context, key, from, to string)

	// RecordRateLimited records a rejected rate-limit acquisition.
	RecordRateLimited(ctx context.Context, key, priority string)

	// RecordColdStartWait records a completed cold-start wait session.
	RecordColdStartWait(ctx context.Context, key string, waited time.Duration)

	// RecordMalformedFrame records a skipped malformed stream frame.
	RecordMalformedFrame(ctx context.Context, key string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter           metric.Meter
	attemptCount    metric.Int64Counter
	attemptErrors   metric.Int64Counter
	attemptDuration metric.Float64Histogram
	breakerChanges  metric.Int64Counter
	rateLimited     metric.Int64Counter
	coldStartWait   metric.Float64Histogram
	malformedFrames metric.Int64Counter
}

// newMetrics creates a new Metrics instance with the given meter.
func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	attemptCount, err := meter.Int64Counter(
		"gateway.attempt.total",
		metric.WithDescription("Total number of network attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	attemptErrors, err := meter.Int64Counter(
		"gateway.attempt.errors",
		metric.WithDescription("Total number of failed network attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	attemptDuration, err := meter.Float64Histogram(
		"gateway.attempt.duration_ms",
		metric.WithDescription("Network attempt duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	breakerChanges, err := meter.Int64Counter(
		"gateway.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	rateLimited, err := meter.Int64Counter(
		"gateway.ratelimit.rejections",
		metric.WithDescription("Rate-limit acquisitions rejected"),
		metric.WithUnit("{rejection}"),
	)
	if err != nil {
		return nil, err
	}

	coldStartWait, err := meter.Float64Histogram(
		"gateway.coldstart.wait_ms",
		metric.WithDescription("Time spent waiting on warming targets"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	malformedFrames, err := meter.Int64Counter(
		"gateway.stream.malformed_frames",
		metric.WithDescription("Malformed stream frames skipped"),
		metric.WithUnit("{frame}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:           meter,
		attemptCount:    attemptCount,
		attemptErrors:   attemptErrors,
		attemptDuration: attemptDuration,
		breakerChanges:  breakerChanges,
		rateLimited:     rateLimited,
		coldStartWait:   coldStartWait,
		malformedFrames: malformedFrames,
	}, nil
}

// RecordAttempt records metrics for one network attempt.
func (m *metricsImpl) RecordAttempt(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("target.key", meta.Key),
		attribute.String("call.operation", meta.Operation),
	}
	if meta.Provider != "" {
		attrs = append(attrs, attribute.String("call.provider", meta.Provider))
	}
	opt := metric.WithAttributes(attrs...)

	m.attemptCount.Add(ctx, 1, opt)
	if err != nil {
		m.attemptErrors.Add(ctx, 1, opt)
	}
	m.attemptDuration.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordBreakerTransition(ctx context.Context, key, from, to string) {
	m.breakerChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target.key", key),
		attribute.String("breaker.from", from),
		attribute.String("breaker.to", to),
	))
}

func (m *metricsImpl) RecordRateLimited(ctx context.Context, key, priority string) {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target.key", key),
		attribute.String("call.priority", priority),
	))
}

func (m *metricsImpl) RecordColdStartWait(ctx context.Context, key string, waited time.Duration) {
	m.coldStartWait.Record(ctx, float64(waited.Milliseconds()), metric.WithAttributes(
		attribute.String("target.key", key),
	))
}

func (m *metricsImpl) RecordMalformedFrame(ctx context.Context, key string) {
	m.malformedFrames.Add(ctx, 1, metric.WithAttributes(
		attribute.String("target.key", key),
	))
}

// NewMetrics creates a Metrics instance from an Observer's meter.
func NewMetrics(obs Observer) (Metrics, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return newMetrics(obs.Meter())
}

// NoopMetrics returns a Metrics implementation that does nothing.
func NoopMetrics() Metrics {
	return &noopMetrics{}
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

func (m *noopMetrics) RecordAttempt(ctx context.Context, meta CallMeta, duration time.Duration, err error) {
}
func (m *noopMetrics) RecordBreakerTransition(ctx context.Context, key, from, to string) {}
func (m *noopMetrics) RecordRateLimited(ctx context.Context, key, priority string)       {}
func (m *noopMetrics) RecordColdStartWait(ctx context.Context, key string, waited time.Duration) {
}
func (m *noopMetrics) RecordMalformedFrame(ctx context.Context, key string) {}
