package models

import "time"

// AccountSecurity holds the security attributes this subsystem manages
// on an account. The account itself (email, credentials, profile) is
// owned by the surrounding user domain; only these columns are ours.
type AccountSecurity struct {
	AccountID           string     `db:"id"`
	PasswordUpdatedAt   *time.Time `db:"password_updated_at"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LockedUntil         *time.Time `db:"locked_until"`
}

// PasswordChange describes a requested password change. NewHash is the
// already-hashed replacement credential; this subsystem never sees
// plaintext. ActorID identifies who performed the change (the account
// holder or an administrator) and may be nil.
type PasswordChange struct {
	AccountID string
	NewHash   string
	ActorID   *string
	At        time.Time
}
