package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// DecisionKind is the outcome of classifying a failed attempt.
type DecisionKind int

const (
	// DecisionStop surfaces the error without another attempt.
	DecisionStop DecisionKind = iota
	// DecisionBackoff retries after the policy's exponential delay.
	DecisionBackoff
	// DecisionAfter retries after an exact, server-supplied delay.
	DecisionAfter
)

// Decision tells the retry executor what to do with a failed attempt.
type Decision struct {
	Kind  DecisionKind
	After time.Duration // used only with DecisionAfter
}

// Stop surfaces the error without retrying.
func Stop() Decision { return Decision{Kind: DecisionStop} }

// Backoff retries after the policy's backoff delay.
func Backoff() Decision { return Decision{Kind: DecisionBackoff} }

// After retries after exactly d.
func After(d time.Duration) Decision { return Decision{Kind: DecisionAfter, After: d} }

// Classifier decides whether (and how) a failed attempt is retried.
type Classifier func(err error) Decision

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	// Default: 3
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the backoff delay between retries.
	// Default: 30s
	MaxDelay time.Duration

	// Multiplier is the exponential backoff multiplier.
	// Default: 2.0
	Multiplier float64

	// JitterFraction spreads each delay uniformly over
	// [delay*(1-f), delay*(1+f)].
	// Default: 0 (no jitter)
	JitterFraction float64

	// Classify decides retryability per error.
	// Default: retry all non-nil errors with backoff.
	Classify Classifier

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)

	// Sleep waits for the given duration, honoring ctx cancellation.
	// Overridable in tests. Default: timer-based sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Retry executes operations with classified, bounded retries.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a new retry executor.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Classify == nil {
		config.Classify = func(err error) Decision {
			if err == nil {
				return Stop()
			}
			return Backoff()
		}
	}
	if config.Sleep == nil {
		config.Sleep = sleepCtx
	}

	return &Retry{config: config}
}

// Execute runs op until it succeeds, the classifier stops it, or attempts
// are exhausted. op is invoked at most MaxAttempts times.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	return r.ExecuteWith(ctx, r.config.Classify, op)
}

// ExecuteWith runs op with a per-call classifier, overriding the configured
// one. The gateway uses this to apply idempotency gating per operation.
func (r *Retry) ExecuteWith(ctx context.Context, classify Classifier, op func(context.Context) error) error {
	if classify == nil {
		classify = r.config.Classify
	}

	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		decision := classify(err)
		if decision.Kind == DecisionStop {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := decision.After
		if decision.Kind == DecisionBackoff {
			delay = r.backoffDelay(attempt)
		}

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := r.config.Sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// backoffDelay computes the jittered delay after the given attempt number
// (1-based). The undithered base is min(initial * multiplier^(attempt-1), max).
func (r *Retry) backoffDelay(attempt int) time.Duration {
	base := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if base > float64(r.config.MaxDelay) {
		base = float64(r.config.MaxDelay)
	}

	if f := r.config.JitterFraction; f > 0 {
		// Uniform over [base*(1-f), base*(1+f)].
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		base *= 1 + f*(2*rand.Float64()-1)
	}

	return time.Duration(base)
}

// Config returns the retry configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
