package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upNamespacedGrants, downNamespacedGrants)
}

func upNamespacedGrants(ctx context.Context, tx *sql.Tx) error {
	return rewriteInTx(ctx, tx, NamespacedGrants)
}

func downNamespacedGrants(ctx context.Context, tx *sql.Tx) error {
	return rewriteInTx(ctx, tx, PositionalGrants)
}

func rewriteInTx(ctx context.Context, tx *sql.Tx, convert func([]byte) ([]byte, bool, error)) error {
	rows, err := scanGrantRows(ctx, tx)
	if err != nil {
		return err
	}
	changes, err := planChanges(rows, convert)
	if err != nil {
		return err
	}
	return applyChanges(ctx, tx, changes)
}
