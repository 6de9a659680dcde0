package route

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheConfig configures the endpoint metadata cache.
type CacheConfig struct {
	// TTL is how long a resolved endpoint stays fresh.
	// Default: 5 minutes
	TTL time.Duration

	// MaxEntries bounds the cache size; least recently used entries are
	// evicted first.
	// Default: 256
	MaxEntries int
}

func (c *CacheConfig) applyDefaults() {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 256
	}
}

// CachedEndpoint is one cache entry. Entries past their TTL are never
// returned; the expirable LRU drops them on access.
type CachedEndpoint struct {
	Target     Target
	ResolvedAt time.Time

	lastUsed atomic.Int64 // unix nanos
	hits     atomic.Int64
}

// LastUsed returns when the entry was last served.
func (e *CachedEndpoint) LastUsed() time.Time {
	return time.Unix(0, e.lastUsed.Load())
}

// Hits returns how many times the entry has been served.
func (e *CachedEndpoint) Hits() int64 {
	return e.hits.Load()
}

// EndpointCache is a short-TTL, concurrently accessed store of resolved
// endpoint metadata. Concurrent misses for the same id are collapsed into
// a single refresh via singleflight, so the management collaborator sees
// one request per stampede.
type EndpointCache struct {
	config CacheConfig
	lru    *expirable.LRU[string, *CachedEndpoint]
	group  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewEndpointCache creates an endpoint cache.
func NewEndpointCache(config CacheConfig) *EndpointCache {
	config.applyDefaults()
	return &EndpointCache{
		config: config,
		lru:    expirable.NewLRU[string, *CachedEndpoint](config.MaxEntries, nil, config.TTL),
	}
}

// GetOrResolve returns the cached target for id, or runs resolve to fetch
// fresh metadata and repopulates the cache. Resolution failures are not
// cached.
func (c *EndpointCache) GetOrResolve(ctx context.Context, id string, resolve func(ctx context.Context) (Target, error)) (Target, error) {
	if entry, ok := c.lru.Get(id); ok {
		entry.lastUsed.Store(time.Now().UnixNano())
		entry.hits.Add(1)
		c.hits.Add(1)
		return entry.Target, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(id, func() (any, error) {
		// Re-check: another flight may have populated the entry between
		// our miss and acquiring the flight.
		if entry, ok := c.lru.Get(id); ok {
			return entry.Target, nil
		}

		target, err := resolve(ctx)
		if err != nil {
			return Target{}, err
		}

		entry := &CachedEndpoint{
			Target:     target,
			ResolvedAt: time.Now(),
		}
		entry.lastUsed.Store(time.Now().UnixNano())
		c.lru.Add(id, entry)
		return target, nil
	})
	if err != nil {
		return Target{}, err
	}
	return v.(Target), nil
}

// Invalidate removes the entry for id, if present.
func (c *EndpointCache) Invalidate(id string) {
	c.lru.Remove(id)
}

// Stats returns cumulative cache statistics.
func (c *EndpointCache) Stats() CacheStats {
	return CacheStats{
		Entries: c.lru.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// CacheStats contains endpoint cache statistics.
type CacheStats struct {
	Entries int
	Hits    int64
	Misses  int64
}
