package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrMaxAttemptsExceeded is returned when retry attempts are exhausted.
	ErrMaxAttemptsExceeded = errors.New("resilience: max attempts exceeded")

	// ErrRateLimited is returned when the rate limit is exceeded.
	ErrRateLimited = errors.New("resilience: rate limited")

	// ErrBulkheadFull is returned when a target has no in-flight slots left.
	ErrBulkheadFull = errors.New("resilience: bulkhead at capacity")

	// ErrTimeout is returned when an operation exceeds its attempt timeout.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// CircuitOpenError is returned when a call is rejected because the breaker
// for its routing key is open. No network attempt is made; the fields carry
// enough context for the caller to decide on an outer retry.
type CircuitOpenError struct {
	// Key is the routing key whose breaker rejected the call.
	Key string

	// Since is how long the breaker has been open.
	Since time.Duration

	// RetryAfter is the remaining time before a probe will be admitted.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("resilience: circuit open for %s (open %v, retry after %v)",
		e.Key, e.Since.Round(time.Millisecond), e.RetryAfter.Round(time.Millisecond))
}

// Is allows CircuitOpenError to match ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}

// RateLimitedError is returned when no token is available for a routing key.
// RetryAfter is the exact wait until the next token accrues; the limiter
// never waits internally.
type RateLimitedError struct {
	// Key is the routing key whose bucket rejected the call.
	Key string

	// Priority is the tier whose bucket was consulted.
	Priority Priority

	// RetryAfter is the wait until one token will be available.
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("resilience: rate limited on %s, retry after %v",
		e.Key, e.RetryAfter.Round(time.Millisecond))
}

// Is allows RateLimitedError to match ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
