// Package schema applies and reverts the persisted structures the
// account security subsystem depends on: the password_history table and
// the three security columns on accounts. Both directions run as a
// single transaction, every structural change is guarded by an
// existence check, and a lapsed call in either direction is a no-op.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Manager owns the forward and backward schema change. It is a
// participant for a generic migration runner: the runner sequences and
// records versions, the Manager only knows its own statements.
type Manager struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewManager(db *sql.DB, logger *slog.Logger) *Manager {
	return &Manager{db: db, logger: logger}
}

var applyStatements = []string{
	`CREATE TABLE IF NOT EXISTS password_history (
		id uuid PRIMARY KEY,
		account_id uuid NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		password_hash text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now(),
		created_by text
	)`,
	`CREATE INDEX IF NOT EXISTS idx_password_history_account_created
		ON password_history (account_id, created_at DESC)`,
	`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS password_updated_at timestamptz`,
	`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS failed_login_attempts integer NOT NULL DEFAULT 0`,
	`ALTER TABLE accounts ADD COLUMN IF NOT EXISTS locked_until timestamptz`,
	// Backfill so pre-existing accounts are not retroactively overdue.
	`UPDATE accounts SET password_updated_at = now() WHERE password_updated_at IS NULL`,
}

var revertStatements = []string{
	`ALTER TABLE accounts DROP COLUMN IF EXISTS locked_until`,
	`ALTER TABLE accounts DROP COLUMN IF EXISTS failed_login_attempts`,
	`ALTER TABLE accounts DROP COLUMN IF EXISTS password_updated_at`,
	`DROP TABLE IF EXISTS password_history`,
}

// Apply creates the history table and the account security columns if
// absent, then backfills password_updated_at for existing accounts.
// All-or-nothing: any failure rolls the whole change back.
func (m *Manager) Apply(ctx context.Context) error {
	if err := m.run(ctx, ApplyTx); err != nil {
		m.logger.Error("account security schema apply failed", slog.Any("error", err))
		return err
	}
	m.logger.Info("account security schema applied")
	return nil
}

// Revert drops the security columns and the history table if present.
// Calling it on a never-applied store is a no-op.
func (m *Manager) Revert(ctx context.Context) error {
	if err := m.run(ctx, RevertTx); err != nil {
		m.logger.Error("account security schema revert failed", slog.Any("error", err))
		return err
	}
	m.logger.Info("account security schema reverted")
	return nil
}

// run executes fn in a dedicated transaction, releasing the connection
// on every exit path.
func (m *Manager) run(ctx context.Context, fn func(context.Context, *sql.Tx) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else if commitErr := tx.Commit(); commitErr != nil {
			err = fmt.Errorf("commit schema transaction: %w", commitErr)
		}
	}()

	return fn(ctx, tx)
}

// ApplyTx runs the forward statement sequence inside a transaction the
// caller owns. Used directly by the migration runner.
func ApplyTx(ctx context.Context, tx *sql.Tx) error {
	exists, err := tableExists(ctx, tx, "accounts")
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("accounts table does not exist; base schema must be applied first")
	}

	for _, stmt := range applyStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply account security schema: %w", err)
		}
	}
	return nil
}

// RevertTx runs the inverse statement sequence inside a transaction the
// caller owns.
func RevertTx(ctx context.Context, tx *sql.Tx) error {
	exists, err := tableExists(ctx, tx, "accounts")
	if err != nil {
		return err
	}

	stmts := revertStatements
	if !exists {
		// No accounts table means no columns to drop either.
		stmts = []string{`DROP TABLE IF EXISTS password_history`}
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("revert account security schema: %w", err)
		}
	}
	return nil
}

func tableExists(ctx context.Context, tx *sql.Tx, name string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s table existence: %w", name, err)
	}
	return exists, nil
}
