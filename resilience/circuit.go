package resilience

import (
	"context"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the target recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive breaker-relevant
	// failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// OpenDuration is how long the circuit stays open before admitting
	// a probe.
	// Default: 30 seconds
	OpenDuration time.Duration

	// HalfOpenMaxProbes is the max in-flight probes in half-open state.
	// Default: 1
	HalfOpenMaxProbes int

	// SuccessThreshold is the number of consecutive probe successes
	// required to close the circuit again.
	// Default: 1
	SuccessThreshold int

	// OnStateChange is called when the circuit state changes.
	OnStateChange func(key string, from, to State)

	// IsFailure determines if an error counts toward the failure
	// threshold. Client-side and validation errors should not trip the
	// breaker. Default: all non-nil errors count.
	IsFailure func(err error) bool
}

func (c *CircuitBreakerConfig) applyDefaults() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.OpenDuration <= 0 {
		c.OpenDuration = 30 * time.Second
	}
	if c.HalfOpenMaxProbes <= 0 {
		c.HalfOpenMaxProbes = 1
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
}

// CircuitBreaker tracks the health of a single routing key and
// short-circuits calls while the target is in sustained failure.
//
// Transitions and counter updates occur atomically with respect to
// concurrent callers on the same key.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	key    string

	mu            sync.Mutex
	state         State
	failures      int
	probeSuccess  int
	openedAt      time.Time
	halfOpenCount int
}

// NewCircuitBreaker creates a new circuit breaker for the given routing key.
func NewCircuitBreaker(key string, config CircuitBreakerConfig) *CircuitBreaker {
	config.applyDefaults()
	return &CircuitBreaker{
		config: config,
		key:    key,
		state:  StateClosed,
	}
}

// Key returns the routing key this breaker guards.
func (cb *CircuitBreaker) Key() string {
	return cb.key
}

// Allow reports whether a call would currently be admitted, without
// consuming a half-open probe slot. The orchestrator uses this as its
// fail-fast pre-check so it never burns a rate-limit token on a target
// known to be failing.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentStateLocked() == StateOpen {
		return cb.openErrLocked()
	}
	return nil
}

// Execute runs the operation through the circuit breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := op(ctx)
	cb.afterRequest(err)
	return err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentStateLocked()
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.probeSuccess = 0
	cb.halfOpenCount = 0

	if oldState != StateClosed && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.key, oldState, StateClosed)
	}
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentStateLocked() {
	case StateOpen:
		return cb.openErrLocked()
	case StateHalfOpen:
		if cb.halfOpenCount >= cb.config.HalfOpenMaxProbes {
			return cb.openErrLocked()
		}
		cb.halfOpenCount++
	}

	return nil
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	isFailure := cb.config.IsFailure(err)
	oldState := cb.state

	switch cb.state {
	case StateClosed:
		if isFailure {
			cb.failures++
			if cb.failures >= cb.config.FailureThreshold {
				cb.setState(StateOpen)
			}
		} else {
			// Consecutive counter: any success resets it.
			cb.failures = 0
		}

	case StateHalfOpen:
		cb.halfOpenCount--
		if isFailure {
			// A single probe failure re-opens with a fresh openedAt.
			cb.setState(StateOpen)
		} else {
			cb.probeSuccess++
			if cb.probeSuccess >= cb.config.SuccessThreshold {
				cb.setState(StateClosed)
				cb.failures = 0
				cb.probeSuccess = 0
			}
		}
	}

	if oldState != cb.state && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.key, oldState, cb.state)
	}
}

func (cb *CircuitBreaker) currentStateLocked() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.OpenDuration {
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
		cb.probeSuccess = 0
		if cb.config.OnStateChange != nil {
			cb.config.OnStateChange(cb.key, StateOpen, StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	switch state {
	case StateOpen:
		cb.openedAt = time.Now()
	case StateHalfOpen:
		cb.halfOpenCount = 0
		cb.probeSuccess = 0
	}
}

func (cb *CircuitBreaker) openErrLocked() error {
	since := time.Since(cb.openedAt)
	retryAfter := cb.config.OpenDuration - since
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &CircuitOpenError{Key: cb.key, Since: since, RetryAfter: retryAfter}
}

// Metrics returns current circuit breaker metrics.
func (cb *CircuitBreaker) Metrics() CircuitBreakerMetrics {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerMetrics{
		Key:      cb.key,
		State:    cb.currentStateLocked(),
		Failures: cb.failures,
		OpenedAt: cb.openedAt,
	}
}

// CircuitBreakerMetrics contains circuit breaker statistics.
type CircuitBreakerMetrics struct {
	Key      string
	State    State
	Failures int
	OpenedAt time.Time
}

// BreakerSet owns one circuit breaker per routing key. Breakers are created
// lazily on first use; different keys proceed fully in parallel with no
// cross-key coordination.
type BreakerSet struct {
	config CircuitBreakerConfig

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet creates a breaker set using config for every key.
func NewBreakerSet(config CircuitBreakerConfig) *BreakerSet {
	config.applyDefaults()
	return &BreakerSet{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// ForKey returns the breaker for key, creating it if needed.
func (s *BreakerSet) ForKey(key string) *CircuitBreaker {
	s.mu.RLock()
	cb, ok := s.breakers[key]
	s.mu.RUnlock()
	if ok {
		return cb
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[key]; ok {
		return cb
	}
	cb = NewCircuitBreaker(key, s.config)
	s.breakers[key] = cb
	return cb
}

// Snapshot returns metrics for every known key.
func (s *BreakerSet) Snapshot() []CircuitBreakerMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CircuitBreakerMetrics, 0, len(s.breakers))
	for _, cb := range s.breakers {
		out = append(out, cb.Metrics())
	}
	return out
}
