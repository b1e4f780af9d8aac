package migrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/imec-int/monument-plwd-sub001/internal/access"
	"github.com/jmoiron/sqlx"
)

// GrantRow is the part of a carecircles row the grant rewrite reads.
type GrantRow struct {
	ID          string `db:"id"`
	Permissions []byte `db:"permissions"`
}

// GrantChange is one row whose stored permissions differ after the rewrite.
type GrantChange struct {
	ID     string
	Before string
	After  string
}

// GrantReport summarises a rewrite run.
type GrantReport struct {
	Scanned int
	Changes []GrantChange
	DryRun  bool
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	selectGrantsQuery = `SELECT id, permissions FROM carecircles ORDER BY id`
	updateGrantsQuery = `UPDATE carecircles SET permissions = $1::jsonb, updated_at = now() WHERE id = $2`
)

// NamespacedGrants converts one stored permissions value to the namespaced
// string form. Rows already in that form are returned untouched with
// changed false, so the rewrite never alters what a row grants.
func NamespacedGrants(raw []byte) (out []byte, changed bool, err error) {
	tokens, converted, err := access.ReadStoredGrants(raw)
	if err != nil {
		return nil, false, err
	}
	if !converted {
		return raw, false, nil
	}
	out, err = access.EncodeGrants(tokens)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

// PositionalGrants converts a namespaced permissions value back to the
// positional object form used before the migration.
func PositionalGrants(raw []byte) ([]byte, bool, error) {
	tokens, legacy, err := access.DecodeStoredGrants(raw)
	if err != nil {
		return nil, false, err
	}
	if legacy {
		return raw, false, nil
	}

	g := access.ParseGrants(tokens)
	slot := func(v string) map[string]string { return map[string]string{"value": v} }
	slots := []map[string]string{slot(""), slot(""), slot("")}
	if g.Location == access.LocationAlways {
		slots[0] = slot("manage:locations")
	}
	if g.Calendar != access.CalendarNever {
		slots[1] = slot(g.Calendar.Token())
	}
	if g.Carecircle != access.CarecircleNever {
		slots[2] = slot(g.Carecircle.Token())
	}
	for _, token := range g.Unknown {
		slots = append(slots, slot(token))
	}
	out, err := json.Marshal(slots)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func planChanges(rows []GrantRow, convert func([]byte) ([]byte, bool, error)) ([]GrantChange, error) {
	var changes []GrantChange
	for _, row := range rows {
		out, changed, err := convert(row.Permissions)
		if err != nil {
			return nil, fmt.Errorf("carecircle %s: %w", row.ID, err)
		}
		if !changed {
			continue
		}
		changes = append(changes, GrantChange{ID: row.ID, Before: string(row.Permissions), After: string(out)})
	}
	return changes, nil
}

func applyChanges(ctx context.Context, tx execer, changes []GrantChange) error {
	for _, c := range changes {
		if _, err := tx.ExecContext(ctx, updateGrantsQuery, c.After, c.ID); err != nil {
			return fmt.Errorf("update carecircle %s: %w", c.ID, err)
		}
	}
	return nil
}

func scanGrantRows(ctx context.Context, tx *sql.Tx) ([]GrantRow, error) {
	rows, err := tx.QueryContext(ctx, selectGrantsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GrantRow
	for rows.Next() {
		var r GrantRow
		if err := rows.Scan(&r.ID, &r.Permissions); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RewriteGrants runs the namespaced grant conversion over every carecircle in
// one transaction. A dry run computes the report and rolls back.
func RewriteGrants(ctx context.Context, db *sqlx.DB, dryRun bool) (*GrantReport, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var rows []GrantRow
	if err := tx.SelectContext(ctx, &rows, selectGrantsQuery); err != nil {
		return nil, fmt.Errorf("select carecircles: %w", err)
	}
	changes, err := planChanges(rows, NamespacedGrants)
	if err != nil {
		return nil, err
	}
	report := &GrantReport{Scanned: len(rows), Changes: changes, DryRun: dryRun}
	if dryRun {
		return report, nil
	}

	if err := applyChanges(ctx, tx, changes); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return report, nil
}
