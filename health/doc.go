// Package health reports the operational state of the gateway and its
// targets.
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy. The
// domain checkers read live gateway state: BreakerChecker inspects circuit
// breaker snapshots, CacheChecker surfaces endpoint cache counters, and
// CredentialChecker verifies the credential provider still produces a
// value.
//
// # Basic Usage
//
//	check := health.NewBreakerChecker("targets", client.BreakerSnapshot)
//
//	result := check.Check(ctx)
//	if result.Status == health.StatusUnhealthy {
//	    log.Printf("targets down: %s", result.Message)
//	}
//
// # Aggregating Health Checks
//
// Use Aggregator to combine multiple health checks into a single composite
// check:
//
//	agg := health.NewAggregator()
//	agg.Register("targets", health.NewBreakerChecker("targets", client.BreakerSnapshot))
//	agg.Register("endpoint-cache", health.NewCacheChecker("endpoint-cache", client.CacheStats))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe with component checks
//	http.Handle("/readyz", health.ReadinessHandler(aggregator))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(aggregator))
package health
