package auth

import (
	"context"
	"testing"
	"time"
)

func seedPrincipal(t *testing.T, store *MemoryStore, kind Kind, username string) *Principal {
	t.Helper()
	p := &Principal{
		ID:           "p-" + username,
		Kind:         kind,
		Username:     username,
		Name:         username,
		Email:        username + "@example.com",
		PasswordHash: "unused",
		Active:       true,
	}
	if err := store.principals.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestIsLockedPredicate(t *testing.T) {
	tracker := NewLockoutTracker(nil, 5, 30*time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p := &Principal{}
	if tracker.IsLocked(p, now) {
		t.Fatal("no expiry must not be locked")
	}

	future := now.Add(time.Minute)
	p.LockedUntil = &future
	if !tracker.IsLocked(p, now) {
		t.Fatal("future expiry must be locked")
	}

	// Exactly at expiry the lock has passed.
	if tracker.IsLocked(p, future) {
		t.Fatal("expiry instant must not be locked")
	}
	past := now.Add(-time.Minute)
	p.LockedUntil = &past
	if tracker.IsLocked(p, now) {
		t.Fatal("past expiry must not be locked")
	}
}

func TestRecordFailureLocksAtThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	tracker := NewLockoutTracker(store.principals, 3, 10*time.Minute, WithLockoutClock(clk.Now))
	ctx := context.Background()

	p := seedPrincipal(t, store, KindUser, "alice")

	for i := 1; i <= 2; i++ {
		if err := tracker.RecordFailure(ctx, p); err != nil {
			t.Fatalf("RecordFailure %d: %v", i, err)
		}
		if p.FailedAttempts != i {
			t.Fatalf("expected counter %d, got %d", i, p.FailedAttempts)
		}
		if p.LockedUntil != nil {
			t.Fatalf("must not lock below threshold, got %v", p.LockedUntil)
		}
	}

	if err := tracker.RecordFailure(ctx, p); err != nil {
		t.Fatalf("RecordFailure 3: %v", err)
	}
	if p.FailedAttempts != 3 {
		t.Fatalf("expected counter 3, got %d", p.FailedAttempts)
	}
	want := clk.now.Add(10 * time.Minute)
	if p.LockedUntil == nil || !p.LockedUntil.Equal(want) {
		t.Fatalf("expected lock until %v, got %v", want, p.LockedUntil)
	}

	// Persisted state matches the in-memory copy.
	stored := store.principals.raw(p.ID)
	if stored.FailedAttempts != 3 || stored.LockedUntil == nil || !stored.LockedUntil.Equal(want) {
		t.Fatalf("persisted state diverged: %d/%v", stored.FailedAttempts, stored.LockedUntil)
	}
}

func TestRecordSuccessClearsState(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	tracker := NewLockoutTracker(store.principals, 5, 10*time.Minute, WithLockoutClock(clk.Now))
	ctx := context.Background()

	p := seedPrincipal(t, store, KindUser, "alice")
	if err := tracker.RecordFailure(ctx, p); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := tracker.RecordSuccess(ctx, p); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if p.FailedAttempts != 0 || p.LockedUntil != nil {
		t.Fatalf("expected clean state, got %d/%v", p.FailedAttempts, p.LockedUntil)
	}
	stored := store.principals.raw(p.ID)
	if stored.FailedAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("persisted state not cleared: %d/%v", stored.FailedAttempts, stored.LockedUntil)
	}
}

func TestRecordSuccessSkipsCleanPrincipal(t *testing.T) {
	tracker := NewLockoutTracker(nil, 5, 10*time.Minute)
	p := &Principal{ID: "p-1", Kind: KindUser}
	// Nil store: a write here would panic, so the no-op path is what proves
	// the skip.
	if err := tracker.RecordSuccess(context.Background(), p); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
}

func TestClearExpiredLock(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore()
	tracker := NewLockoutTracker(store.principals, 2, 10*time.Minute, WithLockoutClock(clk.Now))
	ctx := context.Background()

	p := seedPrincipal(t, store, KindUser, "alice")
	for i := 0; i < 2; i++ {
		if err := tracker.RecordFailure(ctx, p); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	if p.LockedUntil == nil {
		t.Fatal("expected lock")
	}

	// Still locked: no change.
	if err := tracker.ClearExpiredLock(ctx, p, clk.now); err != nil {
		t.Fatalf("ClearExpiredLock: %v", err)
	}
	if p.LockedUntil == nil || p.FailedAttempts != 2 {
		t.Fatalf("active lock must survive, got %d/%v", p.FailedAttempts, p.LockedUntil)
	}

	// Past expiry: counter and lock reset together.
	clk.Advance(10 * time.Minute)
	if err := tracker.ClearExpiredLock(ctx, p, clk.now); err != nil {
		t.Fatalf("ClearExpiredLock: %v", err)
	}
	if p.LockedUntil != nil || p.FailedAttempts != 0 {
		t.Fatalf("expected reset, got %d/%v", p.FailedAttempts, p.LockedUntil)
	}
	stored := store.principals.raw(p.ID)
	if stored.LockedUntil != nil || stored.FailedAttempts != 0 {
		t.Fatalf("persisted reset missing: %d/%v", stored.FailedAttempts, stored.LockedUntil)
	}
}
