package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const schemaVersion = 1

// schema holds the DDL for each supported driver. The statements are
// idempotent so a partially migrated database can be migrated again.
var schema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS member_books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			book_number TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL DEFAULT '',
			borrowed_by_type TEXT,
			borrowed_by_id INTEGER,
			borrowed_at TIMESTAMP,
			returned_at TIMESTAMP,
			CHECK ((borrowed_by_type IS NULL) = (borrowed_by_id IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS staff_books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			book_number TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL DEFAULT '',
			borrowed_by_type TEXT,
			borrowed_by_id INTEGER,
			borrowed_at TIMESTAMP,
			returned_at TIMESTAMP,
			CHECK ((borrowed_by_type IS NULL) = (borrowed_by_id IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			adm_id TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS staff (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			tsc_number TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_type TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			book_id INTEGER NOT NULL,
			book_title TEXT NOT NULL,
			borrowed_at TIMESTAMP NOT NULL,
			returned_at TIMESTAMP
		)`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS member_books (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			book_number TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL DEFAULT '',
			borrowed_by_type TEXT,
			borrowed_by_id BIGINT,
			borrowed_at TIMESTAMPTZ,
			returned_at TIMESTAMPTZ,
			CHECK ((borrowed_by_type IS NULL) = (borrowed_by_id IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS staff_books (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			book_number TEXT NOT NULL UNIQUE,
			subject TEXT NOT NULL DEFAULT '',
			borrowed_by_type TEXT,
			borrowed_by_id BIGINT,
			borrowed_at TIMESTAMPTZ,
			returned_at TIMESTAMPTZ,
			CHECK ((borrowed_by_type IS NULL) = (borrowed_by_id IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS members (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			adm_id TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS staff (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			tsc_number TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id BIGSERIAL PRIMARY KEY,
			user_type TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			book_id BIGINT NOT NULL,
			book_title TEXT NOT NULL,
			borrowed_at TIMESTAMPTZ NOT NULL,
			returned_at TIMESTAMPTZ
		)`,
	},
}

// sharedSchema is valid in both dialects.
var sharedSchema = []string{
	// At most one open entry per copy. The catalogs number their copies
	// independently, so the copy is identified by (user_type, book_id).
	`CREATE UNIQUE INDEX IF NOT EXISTS history_one_open_per_copy
		ON history (user_type, book_id) WHERE returned_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS history_borrowed_at ON history (borrowed_at)`,
	`CREATE INDEX IF NOT EXISTS member_books_borrowed_by ON member_books (borrowed_by_id)`,
	`CREATE INDEX IF NOT EXISTS staff_books_borrowed_by ON staff_books (borrowed_by_id)`,
}

// Migrate brings the schema up to schemaVersion. It records the applied
// version in schema_meta and does nothing when already current.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts, ok := schema[driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", driver)
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_meta: %w", err)
	}

	current, err := SchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range append(stmts, sharedSchema...) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO schema_meta (key, value) VALUES ('schema_version', $1)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, strconv.Itoa(schemaVersion))
	if err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// SchemaVersion returns the recorded schema version, or 0 for a fresh database.
func SchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q", value)
	}
	return v, nil
}
