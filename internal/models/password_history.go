package models

import "time"

// PasswordHistoryEntry is one immutable record of a previously used
// password hash. Entries are created once, never updated, and deleted
// only by cascade when the owning account is deleted.
type PasswordHistoryEntry struct {
	ID           string    `db:"id"`
	AccountID    string    `db:"account_id"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	CreatedBy    *string   `db:"created_by"`
}
