package models

import "time"

// LoginDecision is the result of evaluating a login attempt. Policy
// rejections are ordinary values, not errors.
type LoginDecision int

const (
	// LoginAllowed: credentials were valid and the account is open.
	LoginAllowed LoginDecision = iota
	// LoginRejected: credentials were invalid; the failure was counted.
	LoginRejected
	// LoginLocked: the account is locked; credentials were not
	// consulted.
	LoginLocked
)

func (d LoginDecision) String() string {
	switch d {
	case LoginAllowed:
		return "allowed"
	case LoginRejected:
		return "rejected"
	case LoginLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// LoginOutcome carries the decision and, when locked, the instant the
// lockout expires. Callers surface LockedUntil as a single
// undifferentiated "retry after" signal.
type LoginOutcome struct {
	Decision    LoginDecision
	LockedUntil *time.Time
}

// ChangeOutcome is the result of evaluating a password change.
type ChangeOutcome int

const (
	// ChangeAccepted: the new hash was recorded.
	ChangeAccepted ChangeOutcome = iota
	// ChangeRejectedReuse: the new hash matches a recent one.
	ChangeRejectedReuse
	// ChangeRejectedTooSoon: the previous change is too recent.
	ChangeRejectedTooSoon
)

func (o ChangeOutcome) String() string {
	switch o {
	case ChangeAccepted:
		return "accepted"
	case ChangeRejectedReuse:
		return "rejected_reuse"
	case ChangeRejectedTooSoon:
		return "rejected_too_soon"
	default:
		return "unknown"
	}
}
