package repositories

import (
	"context"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/jackc/pgx/v5"
)

// AccountSecurityRepository owns the failed-attempt counter and lockout
// expiry on the accounts table. Every read-modify-write runs under a
// row-level lock so concurrent attempts on the same account serialize;
// different accounts never contend.
type AccountSecurityRepository struct {
	db *database.DB
}

func NewAccountSecurityRepository(db *database.DB) *AccountSecurityRepository {
	return &AccountSecurityRepository{db: db}
}

// lockSecurityRow reads the account's security state under FOR UPDATE.
func lockSecurityRow(ctx context.Context, tx pgx.Tx, accountID string) (models.SecurityState, error) {
	query := `
		SELECT failed_login_attempts, locked_until
		FROM accounts WHERE id = $1
		FOR UPDATE
	`

	var state models.SecurityState
	err := tx.QueryRow(ctx, query, accountID).Scan(&state.FailedAttempts, &state.LockedUntil)
	if err != nil {
		return models.SecurityState{}, database.MapError("lock security row", err)
	}
	return state, nil
}

func writeSecurityRow(ctx context.Context, tx pgx.Tx, accountID string, state models.SecurityState) error {
	query := `UPDATE accounts SET failed_login_attempts = $2, locked_until = $3 WHERE id = $1`

	if _, err := tx.Exec(ctx, query, accountID, state.FailedAttempts, state.LockedUntil); err != nil {
		return database.MapError("write security row", err)
	}
	return nil
}

// RecordFailure counts a failed attempt and performs the lockout
// transition when the threshold is reached. The increment and the
// threshold evaluation commit atomically, so two simultaneous "last"
// failures cannot both compute a fresh lockout.
func (r *AccountSecurityRepository) RecordFailure(ctx context.Context, accountID string, at time.Time, threshold int, lockout time.Duration) (models.LockState, *time.Time, error) {
	var (
		result models.LockState
		until  *time.Time
	)

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		current, err := lockSecurityRow(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if observed, _, _ := current.Observe(at); observed == models.StateLocked {
			// Already locked: do not extend or increment.
			result = models.StateLocked
			until = current.LockedUntil
			return nil
		}

		next, state := current.ApplyFailure(at, threshold, lockout)
		result = state
		until = next.LockedUntil
		return writeSecurityRow(ctx, tx, accountID, next)
	})
	if err != nil {
		return models.StateOpen, nil, err
	}
	return result, until, nil
}

// RecordSuccess unconditionally resets the counter and clears any
// lockout. A single statement, so the reset is atomic.
func (r *AccountSecurityRepository) RecordSuccess(ctx context.Context, accountID string) error {
	query := `UPDATE accounts SET failed_login_attempts = 0, locked_until = NULL WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, accountID)
	if err != nil {
		return database.MapError("record success", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

// CheckState reports the account's lockout state at the given instant.
// Observing a lapsed lockout clears it in the same transaction, so two
// concurrent observers cannot both report a stale lock.
func (r *AccountSecurityRepository) CheckState(ctx context.Context, accountID string, at time.Time) (models.LockState, *time.Time, error) {
	var (
		result models.LockState
		until  *time.Time
	)

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		current, err := lockSecurityRow(ctx, tx, accountID)
		if err != nil {
			return err
		}

		state, next, cleared := current.Observe(at)
		result = state
		until = next.LockedUntil

		if !cleared {
			return nil
		}
		return writeSecurityRow(ctx, tx, accountID, next)
	})
	if err != nil {
		return models.StateOpen, nil, err
	}
	return result, until, nil
}

// GetSecurity returns a read-only snapshot of the account's security
// attributes without evaluating or clearing anything.
func (r *AccountSecurityRepository) GetSecurity(ctx context.Context, accountID string) (*models.AccountSecurity, error) {
	query := `
		SELECT id, password_updated_at, failed_login_attempts, locked_until
		FROM accounts WHERE id = $1
	`

	var sec models.AccountSecurity
	err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(
		&sec.AccountID,
		&sec.PasswordUpdatedAt,
		&sec.FailedLoginAttempts,
		&sec.LockedUntil,
	)
	if err != nil {
		return nil, database.MapError("get account security", err)
	}
	return &sec, nil
}

// Unlock clears a lockout administratively, before natural expiry.
func (r *AccountSecurityRepository) Unlock(ctx context.Context, accountID string) error {
	query := `UPDATE accounts SET failed_login_attempts = 0, locked_until = NULL WHERE id = $1`

	tag, err := r.db.Pool.Exec(ctx, query, accountID)
	if err != nil {
		return database.MapError("unlock account", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}
