package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/inferops/resilience"
	"github.com/jonwraymond/inferops/route"
)

// BreakerChecker reports target health from circuit breaker state. A target
// with an open breaker is known to be failing; the checker degrades when
// some breakers are open and goes unhealthy when all of them are.
type BreakerChecker struct {
	name     string
	snapshot func() []resilience.CircuitBreakerMetrics
}

// NewBreakerChecker creates a checker over a breaker snapshot function,
// typically gateway.Client.BreakerSnapshot.
func NewBreakerChecker(name string, snapshot func() []resilience.CircuitBreakerMetrics) *BreakerChecker {
	return &BreakerChecker{name: name, snapshot: snapshot}
}

// Name returns the checker name.
func (c *BreakerChecker) Name() string {
	return c.name
}

// Check inspects the breaker snapshot.
func (c *BreakerChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	breakers := c.snapshot()

	open := 0
	details := make(map[string]any, len(breakers))
	for _, b := range breakers {
		details[b.Key] = map[string]any{
			"state":    b.State.String(),
			"failures": b.Failures,
		}
		if b.State == resilience.StateOpen {
			open++
		}
	}

	switch {
	case len(breakers) == 0:
		return Healthy("no targets seen yet")
	case open == 0:
		return Healthy(fmt.Sprintf("%d targets serving", len(breakers))).WithDetails(details)
	case open == len(breakers):
		return Unhealthy(
			fmt.Sprintf("all %d targets have open circuits", open),
			ErrCheckFailed,
		).WithDetails(details)
	default:
		return Degraded(
			fmt.Sprintf("%d of %d targets have open circuits", open, len(breakers)),
		).WithDetails(details)
	}
}

// CacheChecker reports endpoint cache effectiveness. Always healthy; the
// value is in the hit/miss details surfaced on the detailed endpoint.
type CacheChecker struct {
	name  string
	stats func() route.CacheStats
}

// NewCacheChecker creates a checker over a cache stats function, typically
// gateway.Client.CacheStats.
func NewCacheChecker(name string, stats func() route.CacheStats) *CacheChecker {
	return &CacheChecker{name: name, stats: stats}
}

// Name returns the checker name.
func (c *CacheChecker) Name() string {
	return c.name
}

// Check reports cache counters.
func (c *CacheChecker) Check(ctx context.Context) Result {
	s := c.stats()
	return Healthy("endpoint cache serving").WithDetails(map[string]any{
		"entries": s.Entries,
		"hits":    s.Hits,
		"misses":  s.Misses,
	})
}

// CredentialChecker verifies that the credential provider can produce an
// Authorization value. A failing provider fails every outbound call, so it
// is unhealthy rather than degraded.
type CredentialChecker struct {
	name     string
	provider func(ctx context.Context) (string, error)
}

// NewCredentialChecker creates a checker over a credential function,
// typically the Authorization method of a gateway.CredentialProvider.
func NewCredentialChecker(name string, provider func(ctx context.Context) (string, error)) *CredentialChecker {
	return &CredentialChecker{name: name, provider: provider}
}

// Name returns the checker name.
func (c *CredentialChecker) Name() string {
	return c.name
}

// Check asks the provider for a value without using it.
func (c *CredentialChecker) Check(ctx context.Context) Result {
	if _, err := c.provider(ctx); err != nil {
		return Unhealthy("credential provider failing", err)
	}
	return Healthy("credentials available")
}
