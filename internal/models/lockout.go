package models

import "time"

// LockState is the observable lockout state of an account.
type LockState int

const (
	// StateOpen means login attempts are evaluated normally.
	StateOpen LockState = iota
	// StateLocked means all login attempts are rejected until the
	// stored expiry instant passes.
	StateLocked
)

func (s LockState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// SecurityState is the persisted failure-tracking state of an account:
// the failed-attempt counter and the lockout expiry, if any. The
// transition methods are pure; callers persist the returned state under
// a row-level lock so concurrent attempts cannot lose updates.
type SecurityState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// lockedAt reports whether the stored lockout is still in force at the
// given instant.
func (s SecurityState) lockedAt(at time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(at)
}

// expiredAt reports whether a stored lockout has lapsed by the given
// instant.
func (s SecurityState) expiredAt(at time.Time) bool {
	return s.LockedUntil != nil && !s.LockedUntil.After(at)
}

// Observe evaluates the state at the given instant. A lapsed lockout is
// observed as open with the counter and expiry cleared; the returned
// bool reports whether such clearing occurred and must be written back
// by the caller.
func (s SecurityState) Observe(at time.Time) (LockState, SecurityState, bool) {
	if s.lockedAt(at) {
		return StateLocked, s, false
	}
	if s.expiredAt(at) {
		return StateOpen, SecurityState{}, true
	}
	return StateOpen, s, false
}

// ApplyFailure returns the state after a failed login attempt at the
// given instant. A failure against an in-force lockout is a no-op: the
// lockout is not extended and the counter not incremented. Otherwise
// the counter increments (from a cleared baseline when a prior lockout
// has lapsed), and reaching threshold transitions to locked with the
// expiry set to at+lockout. The counter stays at the threshold value
// until the lockout clears.
func (s SecurityState) ApplyFailure(at time.Time, threshold int, lockout time.Duration) (SecurityState, LockState) {
	if s.lockedAt(at) {
		return s, StateLocked
	}

	next := s
	if s.expiredAt(at) {
		next = SecurityState{}
	}

	next.FailedAttempts++
	if next.FailedAttempts >= threshold {
		next.FailedAttempts = threshold
		until := at.Add(lockout)
		next.LockedUntil = &until
		return next, StateLocked
	}
	return next, StateOpen
}

// Reset returns the zero state: counter at 0, no lockout. Applied on
// successful authentication and on administrative unlock.
func (s SecurityState) Reset() SecurityState {
	return SecurityState{}
}
