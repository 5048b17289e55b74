package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const versionTableSQL = `CREATE TABLE IF NOT EXISTS schema_version (
	component TEXT PRIMARY KEY,
	version INTEGER NOT NULL
)`

// InitSchema creates the component's tables on first use and verifies the
// recorded version afterwards. Several components share one database file, so
// versions are tracked per component.
func InitSchema(ctx context.Context, db *sql.DB, component string, version int, schemaSQL string) error {
	ctx = EnsureContext(ctx)
	if _, err := Exec(ctx, db, versionTableSQL); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var existing int
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_version WHERE component = ?", component).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return createSchema(ctx, db, component, version, schemaSQL)
	case err != nil:
		return fmt.Errorf("read %s schema version: %w", component, err)
	}

	if existing != version {
		return fmt.Errorf("%w: %s has version %d, expected %d (delete the database to reset)",
			ErrSchemaMismatch, component, existing, version)
	}
	return nil
}

func createSchema(ctx context.Context, db *sql.DB, component string, version int, schemaSQL string) error {
	return InTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create %s schema: %w", component, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_version (component, version) VALUES (?, ?)", component, version); err != nil {
			return fmt.Errorf("record %s schema version: %w", component, err)
		}
		return nil
	})
}

// TableExists reports whether a table with the given name exists.
func TableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRowContext(EnsureContext(ctx),
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
