package resilience

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BulkheadConfig configures per-target concurrency isolation.
type BulkheadConfig struct {
	// MaxInFlight is the maximum number of concurrent calls per key.
	// Default: 32
	MaxInFlight int64
}

func (c *BulkheadConfig) applyDefaults() {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 32
	}
}

// Bulkhead caps the number of in-flight calls to one routing key, so a slow
// target cannot absorb every worker.
type Bulkhead struct {
	config BulkheadConfig
	sem    *semaphore.Weighted

	mu       sync.Mutex
	active   int64
	rejected int64
}

// NewBulkhead creates a bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	config.applyDefaults()
	return &Bulkhead{
		config: config,
		sem:    semaphore.NewWeighted(config.MaxInFlight),
	}
}

// Acquire claims an in-flight slot without waiting.
// Returns ErrBulkheadFull when the target is saturated.
func (b *Bulkhead) Acquire() error {
	if !b.sem.TryAcquire(1) {
		b.mu.Lock()
		b.rejected++
		b.mu.Unlock()
		return ErrBulkheadFull
	}
	b.mu.Lock()
	b.active++
	b.mu.Unlock()
	return nil
}

// Release returns an in-flight slot.
func (b *Bulkhead) Release() {
	b.sem.Release(1)
	b.mu.Lock()
	b.active--
	b.mu.Unlock()
}

// Execute runs the operation within the bulkhead.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(); err != nil {
		return err
	}
	defer b.Release()

	return op(ctx)
}

// Metrics returns current bulkhead statistics.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BulkheadMetrics{
		Active:      b.active,
		MaxInFlight: b.config.MaxInFlight,
		Rejected:    b.rejected,
	}
}

// BulkheadMetrics contains bulkhead statistics.
type BulkheadMetrics struct {
	Active      int64
	MaxInFlight int64
	Rejected    int64
}

// BulkheadSet owns one bulkhead per routing key, created lazily.
type BulkheadSet struct {
	config BulkheadConfig

	mu        sync.RWMutex
	bulkheads map[string]*Bulkhead
}

// NewBulkheadSet creates a bulkhead set using config for every key.
func NewBulkheadSet(config BulkheadConfig) *BulkheadSet {
	config.applyDefaults()
	return &BulkheadSet{
		config:    config,
		bulkheads: make(map[string]*Bulkhead),
	}
}

// ForKey returns the bulkhead for key, creating it if needed.
func (s *BulkheadSet) ForKey(key string) *Bulkhead {
	s.mu.RLock()
	b, ok := s.bulkheads[key]
	s.mu.RUnlock()
	if ok {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bulkheads[key]; ok {
		return b
	}
	b = NewBulkhead(s.config)
	s.bulkheads[key] = b
	return b
}
