package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestNewBulkhead_Defaults(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{})

	if b.config.MaxInFlight != 32 {
		t.Errorf("MaxInFlight = %d, want 32", b.config.MaxInFlight)
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxInFlight: 2})

	if err := b.Acquire(); err != nil {
		t.Fatalf("Acquire 1 error = %v", err)
	}
	if err := b.Acquire(); err != nil {
		t.Fatalf("Acquire 2 error = %v", err)
	}

	if err := b.Acquire(); !errors.Is(err, ErrBulkheadFull) {
		t.Errorf("Acquire 3 = %v, want ErrBulkheadFull", err)
	}

	b.Release()
	if err := b.Acquire(); err != nil {
		t.Errorf("Acquire after release = %v, want nil", err)
	}
}

func TestBulkhead_Execute(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxInFlight: 1})

	err := b.Execute(context.Background(), func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}

	m := b.Metrics()
	if m.Active != 0 {
		t.Errorf("Active after Execute = %d, want 0", m.Active)
	}
}

func TestBulkhead_Metrics(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxInFlight: 1})

	_ = b.Acquire()
	_ = b.Acquire() // rejected

	m := b.Metrics()
	if m.Active != 1 {
		t.Errorf("Active = %d, want 1", m.Active)
	}
	if m.Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", m.Rejected)
	}
}

func TestBulkhead_Concurrent(t *testing.T) {
	b := NewBulkhead(BulkheadConfig{MaxInFlight: 4})

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxActive := int64(0)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Execute(context.Background(), func(ctx context.Context) error {
				m := b.Metrics()
				mu.Lock()
				if m.Active > maxActive {
					maxActive = m.Active
				}
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxActive > 4 {
		t.Errorf("max active = %d, want <= 4", maxActive)
	}
}

func TestBulkheadSet_PerKey(t *testing.T) {
	set := NewBulkheadSet(BulkheadConfig{MaxInFlight: 1})

	if err := set.ForKey("a").Acquire(); err != nil {
		t.Fatalf("Acquire a error = %v", err)
	}
	if err := set.ForKey("b").Acquire(); err != nil {
		t.Errorf("Acquire b = %v, want nil (separate bulkhead)", err)
	}
	if set.ForKey("a") != set.ForKey("a") {
		t.Error("ForKey should return the same bulkhead for the same key")
	}
}
