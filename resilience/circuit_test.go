package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{})

	if cb.State() != StateClosed {
		t.Errorf("Initial state = %v, want closed", cb.State())
	}
	if cb.Key() != "k" {
		t.Errorf("Key() = %q, want k", cb.Key())
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("FailureThreshold = %d, want 5", cb.config.FailureThreshold)
	}
	if cb.config.OpenDuration != 30*time.Second {
		t.Errorf("OpenDuration = %v, want 30s", cb.config.OpenDuration)
	}
	if cb.config.HalfOpenMaxProbes != 1 {
		t.Errorf("HalfOpenMaxProbes = %d, want 1", cb.config.HalfOpenMaxProbes)
	}
	if cb.config.SuccessThreshold != 1 {
		t.Errorf("SuccessThreshold = %d, want 1", cb.config.SuccessThreshold)
	}
}

func TestCircuitBreaker_OpenAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 3,
		OpenDuration:     time.Second,
	})

	testErr := errors.New("test error")

	// First 2 failures should not open
	for i := 0; i < 2; i++ {
		err := cb.Execute(context.Background(), func(ctx context.Context) error {
			return testErr
		})
		if err != testErr {
			t.Errorf("Execute() error = %v, want %v", err, testErr)
		}
		if cb.State() != StateClosed {
			t.Errorf("After %d failures, state = %v, want closed", i+1, cb.State())
		}
	}

	// Third failure should open
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if err != testErr {
		t.Errorf("Execute() error = %v, want %v", err, testErr)
	}
	if cb.State() != StateOpen {
		t.Errorf("After 3 failures, state = %v, want open", cb.State())
	}

	// Next request should be rejected without a network attempt
	err = cb.Execute(context.Background(), func(ctx context.Context) error {
		t.Error("Should not be called when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() when open = %v, want ErrCircuitOpen", err)
	}

	var openErr *CircuitOpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("error = %T, want *CircuitOpenError", err)
	}
	if openErr.Key != "k" {
		t.Errorf("CircuitOpenError.Key = %q, want k", openErr.Key)
	}
	if openErr.RetryAfter <= 0 {
		t.Errorf("CircuitOpenError.RetryAfter = %v, want > 0", openErr.RetryAfter)
	}
}

func TestCircuitBreaker_SixConsecutiveFailures(t *testing.T) {
	// With a threshold of 5, the breaker opens on the 5th failure; the
	// 6th call is rejected before reaching the network.
	cb := NewCircuitBreaker("K", CircuitBreakerConfig{
		FailureThreshold: 5,
		OpenDuration:     time.Hour,
	})

	serverErr := errors.New("500 internal server error")
	calls := 0
	op := func(ctx context.Context) error {
		calls++
		return serverErr
	}

	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), op)
	}
	if cb.State() != StateOpen {
		t.Fatalf("After 5 failures, state = %v, want open", cb.State())
	}
	if calls != 5 {
		t.Fatalf("calls = %d, want 5", calls)
	}

	err := cb.Execute(context.Background(), op)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("6th call error = %v, want ErrCircuitOpen", err)
	}
	if calls != 5 {
		t.Errorf("calls after rejection = %d, want 5 (no network attempt)", calls)
	}
}

func TestCircuitBreaker_HalfOpenAfterOpenDuration(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     10 * time.Millisecond,
	})

	testErr := errors.New("test error")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("State = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_SingleProbePerTransition(t *testing.T) {
	// Only one probe is admitted per Open -> HalfOpen transition,
	// regardless of concurrent callers.
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     5 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})
	time.Sleep(10 * time.Millisecond)

	const callers = 8
	var admitted int64
	var mu sync.Mutex
	release := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(ctx context.Context) error {
				mu.Lock()
				admitted++
				mu.Unlock()
				<-release
				return nil
			})
		}()
	}

	// Give every goroutine a chance to hit beforeRequest.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted probes = %d, want 1", admitted)
	}
}

func TestCircuitBreaker_RecoverySuccess(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     10 * time.Millisecond,
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}

	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_RecoveryNeedsSuccessThreshold(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold:  1,
		OpenDuration:      10 * time.Millisecond,
		HalfOpenMaxProbes: 2,
		SuccessThreshold:  2,
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})
	time.Sleep(20 * time.Millisecond)

	// First probe success keeps the circuit half-open.
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if cb.State() != StateHalfOpen {
		t.Fatalf("After 1 probe success, state = %v, want half-open", cb.State())
	}

	// Second success closes it.
	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if cb.State() != StateClosed {
		t.Errorf("After 2 probe successes, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     10 * time.Millisecond,
	})

	testErr := errors.New("test error")

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	time.Sleep(20 * time.Millisecond)
	openedBefore := cb.Metrics().OpenedAt

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	if cb.State() != StateOpen {
		t.Errorf("State = %v, want open", cb.State())
	}
	if !cb.Metrics().OpenedAt.After(openedBefore) {
		t.Error("Probe failure should reopen with a fresh openedAt")
	}
}

func TestCircuitBreaker_IsFailureClassifier(t *testing.T) {
	// Client errors must not trip the breaker.
	clientErr := errors.New("400 bad request")
	serverErr := errors.New("500 server error")

	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     time.Hour,
		IsFailure: func(err error) bool {
			return err != nil && err != clientErr
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return clientErr
	})
	if cb.State() != StateClosed {
		t.Fatalf("After client error, state = %v, want closed", cb.State())
	}

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return serverErr
	})
	if cb.State() != StateOpen {
		t.Errorf("After server error, state = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 3,
		OpenDuration:     time.Hour,
	})

	testErr := errors.New("test error")
	fail := func(ctx context.Context) error { return testErr }
	ok := func(ctx context.Context) error { return nil }

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), ok)
	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), fail)

	if cb.State() != StateClosed {
		t.Errorf("State = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     time.Hour,
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})
	if cb.State() != StateOpen {
		t.Fatalf("State = %v, want open", cb.State())
	}

	cb.Reset()

	if cb.State() != StateClosed {
		t.Errorf("After reset, state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []struct {
		from, to State
	}
	var mu sync.Mutex

	cb := NewCircuitBreaker("k", CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     10 * time.Millisecond,
		OnStateChange: func(key string, from, to State) {
			if key != "k" {
				t.Errorf("OnStateChange key = %q, want k", key)
			}
			mu.Lock()
			transitions = append(transitions, struct{ from, to State }{from, to})
			mu.Unlock()
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	time.Sleep(20 * time.Millisecond)
	_ = cb.State() // Trigger state check

	_ = cb.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})

	mu.Lock()
	defer mu.Unlock()

	if len(transitions) < 2 {
		t.Fatalf("Expected at least 2 transitions, got %d", len(transitions))
	}
	if transitions[0].from != StateClosed || transitions[0].to != StateOpen {
		t.Errorf("First transition: %v -> %v, want closed -> open", transitions[0].from, transitions[0].to)
	}
}

func TestBreakerSet_PerKeyIsolation(t *testing.T) {
	set := NewBreakerSet(CircuitBreakerConfig{
		FailureThreshold: 1,
		OpenDuration:     time.Hour,
	})

	_ = set.ForKey("a").Execute(context.Background(), func(ctx context.Context) error {
		return errors.New("fail")
	})

	if set.ForKey("a").State() != StateOpen {
		t.Errorf("Key a state = %v, want open", set.ForKey("a").State())
	}
	if set.ForKey("b").State() != StateClosed {
		t.Errorf("Key b state = %v, want closed", set.ForKey("b").State())
	}
}

func TestBreakerSet_SameInstancePerKey(t *testing.T) {
	set := NewBreakerSet(CircuitBreakerConfig{})

	if set.ForKey("a") != set.ForKey("a") {
		t.Error("ForKey should return the same breaker for the same key")
	}
}

func TestBreakerSet_Snapshot(t *testing.T) {
	set := NewBreakerSet(CircuitBreakerConfig{})
	set.ForKey("a")
	set.ForKey("b")

	snap := set.Snapshot()
	if len(snap) != 2 {
		t.Errorf("Snapshot length = %d, want 2", len(snap))
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %v, want %v", got, tt.want)
			}
		})
	}
}
