package resilience

import (
	"context"
	"time"
)

// Operation is a single outbound attempt.
type Operation func(ctx context.Context) error

// OrchestratorConfig configures the composed execution path.
type OrchestratorConfig struct {
	// Breaker configures the per-key circuit breakers.
	Breaker CircuitBreakerConfig

	// RateLimit configures the per-key, per-priority token buckets.
	RateLimit RateLimiterConfig

	// Retry configures the retry executor shared across keys.
	Retry RetryConfig

	// MaxInFlight caps concurrent calls per key. 0 disables the bulkhead.
	MaxInFlight int64

	// AttemptTimeout bounds each individual attempt. 0 disables it.
	AttemptTimeout time.Duration
}

// Orchestrator composes the circuit breaker, rate limiter, bulkhead and
// retry executor into the single execute entry point used by every call
// site.
//
// The per-call ordering is load-shedding first:
//
//  1. Breaker pre-check: if the key's circuit is open, fail fast with
//     *CircuitOpenError. No token and no attempt is spent on a target
//     known to be failing.
//  2. Rate limit: acquire a token or surface *RateLimitedError with the
//     exact wait. Never retried internally.
//  3. Bulkhead: claim an in-flight slot for the key, if configured.
//  4. Retry loop: each individual attempt passes through the breaker so
//     its state updates regardless of which attempt succeeds or fails,
//     and through the attempt timeout when configured.
//
// All per-key state lives on the orchestrator instance; there are no
// process-wide singletons, and unrelated keys share no locks.
type Orchestrator struct {
	breakers  *BreakerSet
	buckets   *BucketSet
	bulkheads *BulkheadSet
	retry     *Retry
	timeout   *Timeout
}

// NewOrchestrator creates an orchestrator with the given configuration.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		breakers: NewBreakerSet(cfg.Breaker),
		buckets:  NewBucketSet(cfg.RateLimit),
		retry:    NewRetry(cfg.Retry),
	}
	if cfg.MaxInFlight > 0 {
		o.bulkheads = NewBulkheadSet(BulkheadConfig{MaxInFlight: cfg.MaxInFlight})
	}
	if cfg.AttemptTimeout > 0 {
		o.timeout = NewTimeout(TimeoutConfig{Timeout: cfg.AttemptTimeout})
	}
	return o
}

// Execute runs op for the given routing key with the configured classifier.
func (o *Orchestrator) Execute(ctx context.Context, key string, priority Priority, op Operation) error {
	return o.ExecuteWith(ctx, key, priority, nil, op)
}

// ExecuteWith runs op with a per-call retry classifier. A nil classifier
// falls back to the configured one.
func (o *Orchestrator) ExecuteWith(ctx context.Context, key string, priority Priority, classify Classifier, op Operation) error {
	breaker := o.breakers.ForKey(key)

	// Fail fast before spending a token or an attempt.
	if err := breaker.Allow(); err != nil {
		return err
	}

	if err := o.buckets.Acquire(key, priority); err != nil {
		return err
	}

	if o.bulkheads != nil {
		bh := o.bulkheads.ForKey(key)
		if err := bh.Acquire(); err != nil {
			return err
		}
		defer bh.Release()
	}

	attempt := func(ctx context.Context) error {
		return breaker.Execute(ctx, o.attemptOp(op))
	}

	return o.retry.ExecuteWith(ctx, classify, attempt)
}

func (o *Orchestrator) attemptOp(op Operation) func(context.Context) error {
	if o.timeout == nil {
		return op
	}
	return func(ctx context.Context) error {
		return o.timeout.Execute(ctx, op)
	}
}

// Breakers exposes the per-key breaker set, primarily for health reporting.
func (o *Orchestrator) Breakers() *BreakerSet {
	return o.breakers
}

// Buckets exposes the per-key bucket set.
func (o *Orchestrator) Buckets() *BucketSet {
	return o.buckets
}
