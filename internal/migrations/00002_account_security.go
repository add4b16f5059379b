package migrations

import (
	"context"
	"database/sql"

	"github.com/BradenHooton/bastion/internal/schema"
	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upAccountSecurity, downAccountSecurity)
}

func upAccountSecurity(ctx context.Context, tx *sql.Tx) error {
	return schema.ApplyTx(ctx, tx)
}

func downAccountSecurity(ctx context.Context, tx *sql.Tx) error {
	return schema.RevertTx(ctx, tx)
}
