package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// mintJWT signs an HS256 token expiring at exp.
func mintJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "svc-gateway",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return signed
}

type countingSource struct {
	mu     sync.Mutex
	tokens []string
	mints  int
	err    error
}

func (s *countingSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	tok := s.tokens[0]
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	s.mints++
	return tok, nil
}

func (s *countingSource) minted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mints
}

func TestNewRefresher_RequiresSource(t *testing.T) {
	if _, err := NewRefresher(RefreshConfig{}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("NewRefresher error = %v, want ErrNoSource", err)
	}
}

func TestRefresher_CachesUntilExpiry(t *testing.T) {
	src := &countingSource{tokens: []string{mintJWT(t, time.Now().Add(time.Hour))}}
	r, err := NewRefresher(RefreshConfig{Source: src})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	ctx := context.Background()
	first, err := r.Authorization(ctx)
	if err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	second, err := r.Authorization(ctx)
	if err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if first != second {
		t.Errorf("tokens differ across cached calls")
	}
	if src.minted() != 1 {
		t.Errorf("mints = %d, want 1", src.minted())
	}
}

func TestRefresher_RenewsBeforeExpiry(t *testing.T) {
	now := time.Now()
	// First token expires in 20s; with 30s leeway it is already due.
	src := &countingSource{tokens: []string{
		mintJWT(t, now.Add(20*time.Second)),
		mintJWT(t, now.Add(time.Hour)),
	}}
	r, err := NewRefresher(RefreshConfig{Source: src})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	ctx := context.Background()
	if _, err := r.Authorization(ctx); err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if _, err := r.Authorization(ctx); err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if src.minted() != 2 {
		t.Errorf("mints = %d, want 2 (short-lived token renewed)", src.minted())
	}
}

func TestRefresher_OpaqueTokenUsesFallbackTTL(t *testing.T) {
	clock := time.Now()
	src := &countingSource{tokens: []string{"opaque-token-1"}}
	r, err := NewRefresher(RefreshConfig{
		Source:      src,
		FallbackTTL: time.Minute,
		Now:         func() time.Time { return clock },
	})
	if err != nil {
		t.Fatalf("NewRefresher: %v", err)
	}

	ctx := context.Background()
	got, err := r.Authorization(ctx)
	if err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if got != "Bearer opaque-token-1" {
		t.Errorf("Authorization = %q", got)
	}

	// Within the TTL the cached token serves.
	clock = clock.Add(30 * time.Second)
	if _, err := r.Authorization(ctx); err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if src.minted() != 1 {
		t.Fatalf("mints = %d, want 1", src.minted())
	}

	// Past the TTL it is minted again.
	clock = clock.Add(time.Minute)
	if _, err := r.Authorization(ctx); err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if src.minted() != 2 {
		t.Errorf("mints = %d, want 2", src.minted())
	}
}

func TestRefresher_SourceErrorWrapped(t *testing.T) {
	src := &countingSource{err: errors.New("vault sealed")}
	r, _ := NewRefresher(RefreshConfig{Source: src})

	_, err := r.Authorization(context.Background())
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("Authorization error = %v, want ErrRefreshFailed", err)
	}
	var rerr *RefreshError
	if !errors.As(err, &rerr) || rerr.Err.Error() != "vault sealed" {
		t.Errorf("cause = %v", err)
	}
}

func TestRefresher_Invalidate(t *testing.T) {
	src := &countingSource{tokens: []string{mintJWT(t, time.Now().Add(time.Hour))}}
	r, _ := NewRefresher(RefreshConfig{Source: src})

	ctx := context.Background()
	if _, err := r.Authorization(ctx); err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	r.Invalidate()
	if _, err := r.Authorization(ctx); err != nil {
		t.Fatalf("Authorization: %v", err)
	}
	if src.minted() != 2 {
		t.Errorf("mints = %d, want 2 after Invalidate", src.minted())
	}
}

func TestRefresher_ConcurrentCallsSingleMint(t *testing.T) {
	src := &countingSource{tokens: []string{mintJWT(t, time.Now().Add(time.Hour))}}
	r, _ := NewRefresher(RefreshConfig{Source: src})

	var failures atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Authorization(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	if failures.Load() != 0 {
		t.Fatalf("failures = %d", failures.Load())
	}
	if src.minted() != 1 {
		t.Errorf("mints = %d, want 1", src.minted())
	}
}
