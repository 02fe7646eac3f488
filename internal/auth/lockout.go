package auth

import (
	"context"
	"time"

	"gatehouse.dev/internal/obs"
)

// LockoutTracker drives the per-principal failed-attempt state machine.
// A principal moves to Locked once the counter reaches the threshold and
// stays there until the expiry passes; a later attempt unlocks implicitly.
type LockoutTracker struct {
	principals PrincipalStore
	threshold  int
	duration   time.Duration
	now        func() time.Time
}

// LockoutOption configures a LockoutTracker.
type LockoutOption func(*LockoutTracker)

// WithLockoutClock overrides the time source, for tests.
func WithLockoutClock(fn func() time.Time) LockoutOption {
	return func(t *LockoutTracker) {
		if fn != nil {
			t.now = fn
		}
	}
}

// NewLockoutTracker builds a tracker over the principal store.
func NewLockoutTracker(principals PrincipalStore, threshold int, duration time.Duration, opts ...LockoutOption) *LockoutTracker {
	t := &LockoutTracker{
		principals: principals,
		threshold:  threshold,
		duration:   duration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsLocked is a pure predicate: locked iff a lock expiry exists and lies in
// the future. The locked state is derived from the timestamp at read time;
// there is no separately maintained flag to drift out of sync.
func (t *LockoutTracker) IsLocked(p *Principal, now time.Time) bool {
	return p.LockedUntil != nil && now.Before(*p.LockedUntil)
}

// RecordFailure increments the failed-attempt counter through a single
// transactional statement and locks the account once the threshold is
// reached. The principal is updated in place with the persisted state.
func (t *LockoutTracker) RecordFailure(ctx context.Context, p *Principal) error {
	wasLocked := p.LockedUntil != nil
	lockUntil := t.now().Add(t.duration)
	attempts, lockedUntil, err := t.principals.IncrementFailedAttempts(ctx, p.Kind, p.ID, t.threshold, lockUntil)
	if err != nil {
		return err
	}
	p.FailedAttempts = attempts
	p.LockedUntil = lockedUntil
	if !wasLocked && lockedUntil != nil {
		obs.ObserveLockout(string(p.Kind))
	}
	return nil
}

// RecordSuccess resets the counter to zero and clears any lock.
func (t *LockoutTracker) RecordSuccess(ctx context.Context, p *Principal) error {
	if p.FailedAttempts == 0 && p.LockedUntil == nil {
		return nil
	}
	if err := t.principals.ResetFailedAttempts(ctx, p.Kind, p.ID); err != nil {
		return err
	}
	p.FailedAttempts = 0
	p.LockedUntil = nil
	return nil
}

// ClearExpiredLock handles the implicit unlock transition: an attempt after
// the lock expiry starts from a fresh Active state with a zero counter.
func (t *LockoutTracker) ClearExpiredLock(ctx context.Context, p *Principal, now time.Time) error {
	if p.LockedUntil == nil || now.Before(*p.LockedUntil) {
		return nil
	}
	if err := t.principals.ResetFailedAttempts(ctx, p.Kind, p.ID); err != nil {
		return err
	}
	p.FailedAttempts = 0
	p.LockedUntil = nil
	return nil
}
