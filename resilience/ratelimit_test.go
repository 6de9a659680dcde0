package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter("k", RateLimiterConfig{})

	if rl.config.Rate != 10 {
		t.Errorf("Rate = %v, want 10", rl.config.Rate)
	}
	if rl.config.Capacity != 10 {
		t.Errorf("Capacity = %d, want 10", rl.config.Capacity)
	}
	if rl.Tokens() != 10 {
		t.Errorf("Initial tokens = %v, want 10", rl.Tokens())
	}
}

func TestRateLimiter_AcquireConsumesToken(t *testing.T) {
	rl := NewRateLimiter("k", RateLimiterConfig{Rate: 1, Capacity: 3})

	for i := 0; i < 3; i++ {
		if err := rl.Acquire(PriorityNormal); err != nil {
			t.Fatalf("Acquire %d error = %v", i+1, err)
		}
	}

	err := rl.Acquire(PriorityNormal)
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("Acquire on empty bucket = %v, want ErrRateLimited", err)
	}
}

func TestRateLimiter_RetryAfterIsExact(t *testing.T) {
	// Scenario from the gateway contract: 2 tokens/sec, capacity 2.
	// Three instantaneous acquires: the first two succeed, the third
	// reports a retry-after of roughly half a second.
	rl := NewRateLimiter("k", RateLimiterConfig{Rate: 2, Capacity: 2})

	if err := rl.Acquire(PriorityNormal); err != nil {
		t.Fatalf("First acquire error = %v", err)
	}
	if err := rl.Acquire(PriorityNormal); err != nil {
		t.Fatalf("Second acquire error = %v", err)
	}

	err := rl.Acquire(PriorityNormal)
	var limited *RateLimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("Third acquire = %v, want *RateLimitedError", err)
	}
	if limited.Key != "k" {
		t.Errorf("RateLimitedError.Key = %q, want k", limited.Key)
	}
	// Allow for elapsed refill between the acquires.
	if limited.RetryAfter < 400*time.Millisecond || limited.RetryAfter > 500*time.Millisecond {
		t.Errorf("RetryAfter = %v, want ~500ms", limited.RetryAfter)
	}
}

func TestRateLimiter_TokensNeverExceedCapacity(t *testing.T) {
	rl := NewRateLimiter("k", RateLimiterConfig{Rate: 1000, Capacity: 5})

	time.Sleep(20 * time.Millisecond)

	if got := rl.Tokens(); got > 5 {
		t.Errorf("Tokens = %v, want <= 5", got)
	}
}

func TestRateLimiter_TokensNeverNegative(t *testing.T) {
	rl := NewRateLimiter("k", RateLimiterConfig{Rate: 0.001, Capacity: 1})

	_ = rl.Acquire(PriorityNormal)
	_ = rl.Acquire(PriorityNormal)
	_ = rl.Acquire(PriorityNormal)

	if got := rl.Tokens(); got < 0 {
		t.Errorf("Tokens = %v, want >= 0", got)
	}
}

func TestRateLimiter_Refill(t *testing.T) {
	rl := NewRateLimiter("k", RateLimiterConfig{Rate: 100, Capacity: 1})

	if err := rl.Acquire(PriorityNormal); err != nil {
		t.Fatalf("Acquire error = %v", err)
	}

	// 100 tokens/sec: one token is back within ~10ms.
	time.Sleep(20 * time.Millisecond)

	if err := rl.Acquire(PriorityNormal); err != nil {
		t.Errorf("Acquire after refill = %v, want nil", err)
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	rl := NewRateLimiter("k", RateLimiterConfig{Rate: 0.001, Capacity: 2})

	_ = rl.Acquire(PriorityNormal)
	_ = rl.Acquire(PriorityNormal)

	rl.Reset()

	if got := rl.Tokens(); got != 2 {
		t.Errorf("Tokens after reset = %v, want 2", got)
	}
}

func TestBucketSet_SeparateBucketPerPriority(t *testing.T) {
	set := NewBucketSet(RateLimiterConfig{Rate: 0.001, Capacity: 1})

	if err := set.Acquire("k", PriorityLow); err != nil {
		t.Fatalf("Low acquire error = %v", err)
	}
	// Low tier is now empty; critical tier still has its own token.
	if err := set.Acquire("k", PriorityCritical); err != nil {
		t.Errorf("Critical acquire = %v, want nil (separate bucket)", err)
	}
	if err := set.Acquire("k", PriorityLow); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Second low acquire = %v, want ErrRateLimited", err)
	}
}

func TestBucketSet_SeparateBucketPerKey(t *testing.T) {
	set := NewBucketSet(RateLimiterConfig{Rate: 0.001, Capacity: 1})

	if err := set.Acquire("a", PriorityNormal); err != nil {
		t.Fatalf("Acquire a error = %v", err)
	}
	if err := set.Acquire("b", PriorityNormal); err != nil {
		t.Errorf("Acquire b = %v, want nil (separate bucket)", err)
	}
}

func TestPriority_String(t *testing.T) {
	tests := []struct {
		priority Priority
		want     string
	}{
		{PriorityLow, "low"},
		{PriorityNormal, "normal"},
		{PriorityHigh, "high"},
		{PriorityCritical, "critical"},
		{Priority(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.priority.String(); got != tt.want {
				t.Errorf("Priority.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
