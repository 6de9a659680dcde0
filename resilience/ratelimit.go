package resilience

import (
	"sync"
	"time"
)

// Priority is the scheduling tier of an operation. Each tier draws from its
// own token bucket, so a burst of low-priority traffic cannot starve
// critical calls on the same key.
type Priority int

const (
	// PriorityLow is for background and best-effort work.
	PriorityLow Priority = iota
	// PriorityNormal is the default tier.
	PriorityNormal
	// PriorityHigh is for latency-sensitive calls.
	PriorityHigh
	// PriorityCritical is for calls that must not be shed first.
	PriorityCritical
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// RateLimiterConfig configures a token bucket.
type RateLimiterConfig struct {
	// Rate is the number of tokens accrued per second.
	// Default: 10
	Rate float64

	// Capacity is the maximum number of stored tokens.
	// Default: 10
	Capacity int
}

func (c *RateLimiterConfig) applyDefaults() {
	if c.Rate <= 0 {
		c.Rate = 10
	}
	if c.Capacity <= 0 {
		c.Capacity = 10
	}
}

// RateLimiter is a single token bucket. Tokens accrue continuously at the
// configured rate and are capped at capacity; they never go negative.
//
// Acquire never waits. When no token is available it returns a
// *RateLimitedError carrying the exact wait until the next token, and the
// caller decides whether to surface or sleep.
type RateLimiter struct {
	config RateLimiterConfig
	key    string

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a rate limiter for the given routing key.
func NewRateLimiter(key string, config RateLimiterConfig) *RateLimiter {
	config.applyDefaults()
	return &RateLimiter{
		config:     config,
		key:        key,
		tokens:     float64(config.Capacity),
		lastRefill: time.Now(),
	}
}

// Acquire consumes one token, or returns a *RateLimitedError with the wait
// until one would be available.
func (rl *RateLimiter) Acquire(priority Priority) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()

	if rl.tokens >= 1 {
		rl.tokens--
		return nil
	}

	need := 1 - rl.tokens
	wait := time.Duration(need / rl.config.Rate * float64(time.Second))
	return &RateLimitedError{Key: rl.key, Priority: priority, RetryAfter: wait}
}

func (rl *RateLimiter) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	rl.lastRefill = now

	rl.tokens += elapsed.Seconds() * rl.config.Rate
	if rl.tokens > float64(rl.config.Capacity) {
		rl.tokens = float64(rl.config.Capacity)
	}
}

// Tokens returns the current number of available tokens.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked()
	return rl.tokens
}

// Reset refills the bucket to capacity.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.tokens = float64(rl.config.Capacity)
	rl.lastRefill = time.Now()
}

// BucketSet owns one token bucket per (routing key, priority) pair. Buckets
// are created lazily; separate per-priority buckets keep tier isolation
// race-free without preemption.
type BucketSet struct {
	config RateLimiterConfig

	mu      sync.RWMutex
	buckets map[bucketKey]*RateLimiter
}

type bucketKey struct {
	key      string
	priority Priority
}

// NewBucketSet creates a bucket set using config for every bucket.
func NewBucketSet(config RateLimiterConfig) *BucketSet {
	config.applyDefaults()
	return &BucketSet{
		config:  config,
		buckets: make(map[bucketKey]*RateLimiter),
	}
}

// Acquire consumes a token from the bucket for (key, priority).
func (s *BucketSet) Acquire(key string, priority Priority) error {
	return s.forKey(key, priority).Acquire(priority)
}

// ForKey returns the bucket for (key, priority), creating it if needed.
func (s *BucketSet) ForKey(key string, priority Priority) *RateLimiter {
	return s.forKey(key, priority)
}

func (s *BucketSet) forKey(key string, priority Priority) *RateLimiter {
	bk := bucketKey{key: key, priority: priority}

	s.mu.RLock()
	rl, ok := s.buckets[bk]
	s.mu.RUnlock()
	if ok {
		return rl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rl, ok := s.buckets[bk]; ok {
		return rl
	}
	rl = NewRateLimiter(key, s.config)
	s.buckets[bk] = rl
	return rl
}
