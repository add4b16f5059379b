package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/bastion/internal/database"
	"github.com/BradenHooton/bastion/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PasswordHistoryRepository owns the append-only ledger of previously
// used password hashes. Entries are immutable; the only mutation is the
// cascade delete when the owning account is removed.
type PasswordHistoryRepository struct {
	db *database.DB
}

func NewPasswordHistoryRepository(db *database.DB) *PasswordHistoryRepository {
	return &PasswordHistoryRepository{db: db}
}

// Record inserts a new immutable history entry and returns its ID.
// Referencing a missing account returns ErrAccountNotFound.
func (r *PasswordHistoryRepository) Record(ctx context.Context, accountID, passwordHash string, createdBy *string) (string, error) {
	query := `
		INSERT INTO password_history (id, account_id, password_hash, created_by)
		VALUES ($1, $2, $3, $4)
	`

	id := uuid.NewString()
	if _, err := r.db.Pool.Exec(ctx, query, id, accountID, passwordHash, createdBy); err != nil {
		return "", database.MapError("record password history", err)
	}
	return id, nil
}

// RecentHashes returns at most limit hashes, newest first. An account
// with no history yields an empty slice, never an error.
func (r *PasswordHistoryRepository) RecentHashes(ctx context.Context, accountID string, limit int) ([]string, error) {
	query := `
		SELECT password_hash FROM password_history
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, database.MapError("query recent hashes", err)
	}
	defer rows.Close()

	hashes := make([]string, 0)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, database.MapError("scan recent hash", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError("iterate recent hashes", err)
	}

	return hashes, nil
}

// RecentEntries returns full history entries, newest first. Used by
// audit tooling; the policy path only needs RecentHashes.
func (r *PasswordHistoryRepository) RecentEntries(ctx context.Context, accountID string, limit int) ([]*models.PasswordHistoryEntry, error) {
	query := `
		SELECT id, account_id, password_hash, created_at, created_by
		FROM password_history
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, database.MapError("query history entries", err)
	}
	defer rows.Close()

	entries := make([]*models.PasswordHistoryEntry, 0)
	for rows.Next() {
		var entry models.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.PasswordHash, &entry.CreatedAt, &entry.CreatedBy); err != nil {
			return nil, database.MapError("scan history entry", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError("iterate history entries", err)
	}

	return entries, nil
}

// Purge deletes all history for an account. The foreign key already
// cascades on account deletion; this exists for operators and tests.
func (r *PasswordHistoryRepository) Purge(ctx context.Context, accountID string) error {
	query := `DELETE FROM password_history WHERE account_id = $1`

	if _, err := r.db.Pool.Exec(ctx, query, accountID); err != nil {
		return database.MapError("purge password history", err)
	}
	return nil
}

// ChangePassword evaluates and commits a password change as a single
// atomic unit: the account row is locked, the minimum-age and reuse
// checks run against that locked snapshot, and only then is the entry
// inserted and the change timestamp advanced. Two concurrent changes on
// the same account cannot both pass the reuse check against stale
// history.
func (r *PasswordHistoryRepository) ChangePassword(ctx context.Context, change models.PasswordChange, depth int, minimumAge time.Duration, equal models.HashEqualFunc) (models.ChangeOutcome, error) {
	outcome := models.ChangeAccepted

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var updatedAt *time.Time
		err := tx.QueryRow(ctx,
			`SELECT password_updated_at FROM accounts WHERE id = $1 FOR UPDATE`,
			change.AccountID).Scan(&updatedAt)
		if err != nil {
			return database.MapError("lock account for password change", err)
		}

		recent, err := recentHashesTx(ctx, tx, change.AccountID, depth)
		if err != nil {
			return err
		}
		if models.IsReused(recent, change.NewHash, equal) {
			outcome = models.ChangeRejectedReuse
			return nil
		}

		if models.TooSoon(updatedAt, change.At, minimumAge) {
			outcome = models.ChangeRejectedTooSoon
			return nil
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO password_history (id, account_id, password_hash, created_at, created_by)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), change.AccountID, change.NewHash, change.At, change.ActorID); err != nil {
			return database.MapError("record password history", err)
		}

		if _, err := tx.Exec(ctx,
			`UPDATE accounts SET password_updated_at = $2 WHERE id = $1`,
			change.AccountID, change.At); err != nil {
			return database.MapError("update password timestamp", err)
		}
		return nil
	})
	if err != nil {
		return models.ChangeAccepted, fmt.Errorf("change password: %w", err)
	}

	return outcome, nil
}

func recentHashesTx(ctx context.Context, tx pgx.Tx, accountID string, limit int) ([]string, error) {
	rows, err := tx.Query(ctx,
		`SELECT password_hash FROM password_history
		 WHERE account_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, database.MapError("query recent hashes", err)
	}
	defer rows.Close()

	hashes := make([]string, 0)
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, database.MapError("scan recent hash", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError("iterate recent hashes", err)
	}

	return hashes, nil
}
