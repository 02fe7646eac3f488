package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimitEntry is the per-(source, action) window state. Count is reset
// whenever the window closes; otherwise it grows until the threshold denies.
type RateLimitEntry struct {
	Count   int
	ResetAt time.Time
}

// RateLimitStore abstracts the counter storage so a shared external store can
// replace the process-local map without changing the Admit contract. Entries
// are ephemeral; no persistence guarantee is required.
type RateLimitStore interface {
	Get(key string) (RateLimitEntry, bool)
	Set(key string, entry RateLimitEntry)
	Delete(key string)
	Keys() []string
}

// MemoryRateLimitStore is the default single-process backing store.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	entries map[string]RateLimitEntry
}

// NewMemoryRateLimitStore returns an empty in-process store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{entries: make(map[string]RateLimitEntry)}
}

func (s *MemoryRateLimitStore) Get(key string) (RateLimitEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

func (s *MemoryRateLimitStore) Set(key string, entry RateLimitEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
}

func (s *MemoryRateLimitStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryRateLimitStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}

// RateLimiter admits at most maxAttempts calls per (sourceKey, actionClass)
// within a fixed window. Burst traffic straddling a window boundary can pass
// up to twice the nominal rate; that is the accepted trade-off for O(1)
// memory per key.
type RateLimiter struct {
	mu          sync.Mutex
	store       RateLimitStore
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimitStore swaps the backing store.
func WithRateLimitStore(store RateLimitStore) RateLimiterOption {
	return func(l *RateLimiter) {
		if store != nil {
			l.store = store
		}
	}
}

// WithRateLimiterClock overrides the time source, for tests.
func WithRateLimiterClock(fn func() time.Time) RateLimiterOption {
	return func(l *RateLimiter) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewRateLimiter builds a limiter with the given admission policy.
func NewRateLimiter(maxAttempts int, window time.Duration, opts ...RateLimiterOption) *RateLimiter {
	l := &RateLimiter{
		store:       NewMemoryRateLimitStore(),
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window returns the fixed window length.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}

// Admit records one attempt for (sourceKey, actionClass) and reports whether
// it is allowed. The read-modify-write is atomic per limiter; once a window
// is saturated further calls are denied without incrementing.
func (l *RateLimiter) Admit(sourceKey, actionClass string) bool {
	key := actionClass + ":" + sourceKey
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store.Get(key)
	if !ok || !now.Before(entry.ResetAt) {
		l.store.Set(key, RateLimitEntry{Count: 1, ResetAt: now.Add(l.window)})
		return true
	}
	if entry.Count >= l.maxAttempts {
		return false
	}
	entry.Count++
	l.store.Set(key, entry)
	return true
}

// Sweep drops entries whose window has closed. It runs off the admit path so
// admission never waits on cleanup.
func (l *RateLimiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range l.store.Keys() {
		if entry, ok := l.store.Get(key); ok && !now.Before(entry.ResetAt) {
			l.store.Delete(key)
		}
	}
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (l *RateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(l.now())
		}
	}
}
