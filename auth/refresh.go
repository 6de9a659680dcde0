package auth

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// TokenSource mints a fresh bearer token. Implementations talk to whatever
// issues credentials: an OAuth token endpoint, a vault, a CLI helper.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to a TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token calls the wrapped function.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// RefreshConfig configures a Refresher.
type RefreshConfig struct {
	// Source mints fresh tokens. Required.
	Source TokenSource

	// Leeway renews the token this long before its expiry, so a token
	// handed to a slow request does not expire in flight.
	// Default: 30 seconds
	Leeway time.Duration

	// FallbackTTL is the cache lifetime for tokens whose expiry cannot
	// be read (opaque, or a JWT without an exp claim).
	// Default: 5 minutes
	FallbackTTL time.Duration

	// Now returns the current time. Overridable in tests.
	// Default: time.Now
	Now func() time.Time
}

// Refresher caches a minted bearer token and renews it ahead of expiry.
// For JWT-shaped tokens the expiry comes from the token's own exp claim,
// read without signature verification; the client is the token's audience,
// not its verifier. Concurrent renewals collapse into one mint.
type Refresher struct {
	config RefreshConfig
	group  singleflight.Group

	mu      sync.Mutex
	token   string
	renewAt time.Time
}

// NewRefresher creates a refresher.
func NewRefresher(config RefreshConfig) (*Refresher, error) {
	if config.Source == nil {
		return nil, ErrNoSource
	}
	if config.Leeway <= 0 {
		config.Leeway = 30 * time.Second
	}
	if config.FallbackTTL <= 0 {
		config.FallbackTTL = 5 * time.Minute
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Refresher{config: config}, nil
}

// Authorization returns a bearer value, minting a token when the cached one
// is missing or due for renewal.
func (r *Refresher) Authorization(ctx context.Context) (string, error) {
	r.mu.Lock()
	token, renewAt := r.token, r.renewAt
	r.mu.Unlock()

	if token != "" && r.config.Now().Before(renewAt) {
		return Bearer(token), nil
	}

	minted, err, _ := r.group.Do("token", func() (any, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return Bearer(minted.(string)), nil
}

func (r *Refresher) refresh(ctx context.Context) (string, error) {
	// Another caller may have refreshed while this one waited.
	r.mu.Lock()
	if r.token != "" && r.config.Now().Before(r.renewAt) {
		token := r.token
		r.mu.Unlock()
		return token, nil
	}
	r.mu.Unlock()

	token, err := r.config.Source.Token(ctx)
	if err != nil {
		return "", &RefreshError{Err: err}
	}

	renewAt := r.renewTime(token)
	r.mu.Lock()
	r.token, r.renewAt = token, renewAt
	r.mu.Unlock()
	return token, nil
}

// renewTime derives when the token should be renewed.
func (r *Refresher) renewTime(token string) time.Time {
	now := r.config.Now()

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time.Add(-r.config.Leeway)
		}
	}
	return now.Add(r.config.FallbackTTL)
}

// Invalidate drops the cached token so the next call mints a fresh one.
// Call after a 401 that suggests mid-lifetime revocation.
func (r *Refresher) Invalidate() {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
}
