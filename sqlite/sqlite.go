// Package sqlite provides SQLite-based storage implementations for orgkb services.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB represents a SQLite database connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB creates a new DB instance with the given path.
// Use ":memory:" for an in-memory database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Open opens the database connection and creates the schema if needed.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit to one connection.
	conn.SetMaxOpenConns(1)

	// Verify connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set busy timeout to wait 5 seconds before failing on lock contention.
	// This prevents immediate "database is locked" errors.
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enable WAL mode for file-based databases for better write performance.
	// Note: WAL mode is not supported for in-memory databases.
	if db.path != ":memory:" {
		if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
			conn.Close()
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	// Enable foreign key constraints
	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	db.db = conn

	// Create schema
	if err := db.createSchema(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// Stats returns database statistics.
func (db *DB) Stats() sql.DBStats {
	return db.db.Stats()
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS units (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			labels TEXT NOT NULL DEFAULT '[]'
		);

		CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			canonical_name TEXT NOT NULL,
			name_variants TEXT NOT NULL DEFAULT '[]',
			emails TEXT NOT NULL DEFAULT '[]',
			phones TEXT NOT NULL DEFAULT '[]',
			unit_id TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS contacts (
			entity_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			value TEXT NOT NULL,
			source_page_id TEXT NOT NULL DEFAULT '',
			extracted_at TEXT NOT NULL,
			UNIQUE(entity_id, kind)
		);

		CREATE TABLE IF NOT EXISTS procedure_facts (
			procedure_id TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			source_page_id TEXT NOT NULL DEFAULT '',
			extracted_at TEXT NOT NULL,
			UNIQUE(procedure_id, field)
		);

		CREATE TABLE IF NOT EXISTS procedure_fact_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			procedure_id TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			replaced_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			page_id TEXT NOT NULL,
			block INTEGER NOT NULL DEFAULT 0,
			breadcrumbs TEXT NOT NULL DEFAULT '[]',
			content TEXT NOT NULL,
			embedding_text TEXT NOT NULL,
			source_url TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			pages INTEGER NOT NULL DEFAULT 0,
			report TEXT NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_entities_unit_id ON entities(unit_id);
		CREATE INDEX IF NOT EXISTS idx_chunks_page_id ON chunks(page_id);
		CREATE INDEX IF NOT EXISTS idx_fact_history_key ON procedure_fact_history(procedure_id, field);
	`

	_, err := db.db.Exec(schema)
	return err
}
