// Package resilience provides the request-execution core that wraps every
// outbound inference call.
//
// This package implements the resilience patterns shared by all API
// adapters. The patterns can be used independently, but most callers go
// through the Orchestrator, which composes them with a fixed ordering.
//
// # Patterns
//
//   - Circuit Breaker: tracks per-routing-key health and short-circuits
//     calls to targets in sustained failure. One breaker per key, created
//     lazily by a BreakerSet.
//
//   - Retry: retries failed attempts according to a classifier decision
//     (stop, backoff, or retry after an exact delay) with bounded
//     exponential backoff and uniform jitter.
//
//   - Rate Limiter: token bucket per (key, priority) pair. Acquire never
//     waits; it surfaces the exact wait until the next token so the caller
//     decides.
//
//   - Bulkhead: caps in-flight calls per key so one slow target cannot
//     absorb every worker.
//
//   - Timeout: bounds each individual attempt; attempt timeouts are never
//     auto-retried.
//
// # Usage
//
//	orch := resilience.NewOrchestrator(resilience.OrchestratorConfig{
//	    Breaker:   resilience.CircuitBreakerConfig{FailureThreshold: 5, OpenDuration: 30 * time.Second},
//	    RateLimit: resilience.RateLimiterConfig{Rate: 10, Capacity: 20},
//	    Retry:     resilience.RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond},
//	})
//
//	err := orch.Execute(ctx, "serverless:gpt-large", resilience.PriorityNormal,
//	    func(ctx context.Context) error {
//	        return sendRequest(ctx)
//	    })
//
// The ordering is load-shedding first: breaker check, then rate limit, then
// retry. A call to a target with an open circuit never burns a rate-limit
// token or a retry attempt.
package resilience
