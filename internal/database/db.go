package database

import (
	"context"
	"errors"

	"github.com/BradenHooton/bastion/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MapError translates driver failures into the subsystem's error
// taxonomy. Missing rows and broken account references surface as
// ErrAccountNotFound; everything else (timeouts included) is a
// StorageError carrying the causal error.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrAccountNotFound
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch pgErr.Code {
		case "23503": // foreign_key_violation
			return models.ErrAccountNotFound
		}
	}

	return models.NewStorageError(op, err)
}

// WithTransaction runs fn inside a transaction. The transaction is
// rolled back on error or panic and committed otherwise; the connection
// returns to the pool on every exit path.
func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return models.NewStorageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = models.NewStorageError("commit transaction", commitErr)
		}
	}()

	return fn(tx)
}
