package auth

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsExactlyMaxAttempts(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(5, 15*time.Minute, WithRateLimiterClock(func() time.Time { return now }))

	for i := 0; i < 5; i++ {
		if !limiter.Admit("1.2.3.4", "login") {
			t.Fatalf("attempt %d should be admitted", i+1)
		}
	}
	if limiter.Admit("1.2.3.4", "login") {
		t.Fatal("sixth attempt within the window must be denied")
	}
	// Denied attempts do not extend or inflate the window.
	if limiter.Admit("1.2.3.4", "login") {
		t.Fatal("seventh attempt must still be denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute, WithRateLimiterClock(func() time.Time { return now }))

	if !limiter.Admit("src", "login") || !limiter.Admit("src", "login") {
		t.Fatal("first two attempts should pass")
	}
	if limiter.Admit("src", "login") {
		t.Fatal("third attempt should be denied")
	}

	now = now.Add(30 * time.Second)
	if limiter.Admit("src", "login") {
		t.Fatal("window must not reset mid-window")
	}

	now = now.Add(31 * time.Second)
	if !limiter.Admit("src", "login") {
		t.Fatal("attempt after window close should be admitted")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute, WithRateLimiterClock(func() time.Time { return now }))

	if !limiter.Admit("1.2.3.4", "login") {
		t.Fatal("first source should be admitted")
	}
	if !limiter.Admit("5.6.7.8", "login") {
		t.Fatal("distinct source must have its own window")
	}
	if !limiter.Admit("1.2.3.4", "register") {
		t.Fatal("distinct action class must have its own window")
	}
	if limiter.Admit("1.2.3.4", "login") {
		t.Fatal("saturated key must deny")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryRateLimitStore()
	limiter := NewRateLimiter(3, time.Minute,
		WithRateLimitStore(store),
		WithRateLimiterClock(func() time.Time { return now }),
	)

	limiter.Admit("a", "login")
	limiter.Admit("b", "login")
	if got := len(store.Keys()); got != 2 {
		t.Fatalf("expected 2 entries, got %d", got)
	}

	limiter.Sweep(now.Add(30 * time.Second))
	if got := len(store.Keys()); got != 2 {
		t.Fatalf("sweep must keep live entries, got %d", got)
	}

	limiter.Sweep(now.Add(2 * time.Minute))
	if got := len(store.Keys()); got != 0 {
		t.Fatalf("sweep must drop expired entries, got %d", got)
	}
}

func TestRateLimiterInjectedStore(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryRateLimitStore()
	limiter := NewRateLimiter(1, time.Minute,
		WithRateLimitStore(store),
		WithRateLimiterClock(func() time.Time { return now }),
	)

	if !limiter.Admit("src", "login") {
		t.Fatal("expected admission")
	}
	entry, ok := store.Get("login:src")
	if !ok {
		t.Fatal("expected entry in injected store")
	}
	if entry.Count != 1 || !entry.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}
