// Package state provides the SQLite-backed task store for pit.
// Each project keeps its database at .pit/pit.db.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no task matches the lookup.
	ErrNotFound = errors.New("task not found")
	// ErrDuplicateName is returned when a task name is already taken in the project.
	ErrDuplicateName = errors.New("task name already exists")
	// ErrStorageIO wraps every other failure talking to the database.
	ErrStorageIO = errors.New("storage error")
	// ErrSchemaTooNew is returned when the database was migrated by a newer pit.
	ErrSchemaTooNew = errors.New("database schema is newer than this pit")
)

// busyTimeout is how long a writer waits on another process holding the lock.
const busyTimeout = 5 * time.Second

// DB wraps an SQLite database connection with task operations.
//
// Concurrency between the dashboard and one-shot commands is left to
// SQLite's WAL mode: many readers, one writer, writers queue on the
// busy timeout.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// ProjectDBPath returns the path to the project-local database.
func ProjectDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".pit", "pit.db")
}

// Open opens the SQLite database at path and applies pending migrations.
// It creates the parent directories if they don't exist.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %w", ErrStorageIO, err)
	}

	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStorageIO, err)
	}

	db := &DB{
		conn: conn,
		path: path,
		now:  time.Now,
	}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// OpenProject opens the project-local database.
func OpenProject(projectRoot string) (*DB, error) {
	return Open(ProjectDBPath(projectRoot))
}

// dsn builds the connection string. Pragmas go in the DSN so every pooled
// connection gets them, not just the first one.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

type migration struct {
	version     int
	description string
	sql         string
}

var migrations = []migration{
	{1, "initial schema", migrationV1Tasks},
	{2, "add prompt and issue reference", migrationV2Prompt},
	{3, "add agent and issue title", migrationV3Agent},
}

// SchemaVersion is the schema version this binary migrates to.
func SchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies all pending schema migrations. Each migration and its
// schema_version record commit together, so a failure leaves the database
// at the last fully applied version.
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: create schema_version table: %w", ErrStorageIO, err)
	}

	currentVersion, err := db.Version()
	if err != nil {
		return err
	}
	if currentVersion > SchemaVersion() {
		return fmt.Errorf("%w: database at v%d, pit knows v%d", ErrSchemaTooNew, currentVersion, SchemaVersion())
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("%w: begin migration v%d: %w", ErrStorageIO, m.version, err)
		}

		// Another process may have migrated while we waited for the lock.
		var applied int
		if err := tx.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&applied); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: get schema version: %w", ErrStorageIO, err)
		}
		if applied >= m.version {
			tx.Rollback()
			continue
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: apply migration v%d: %w", ErrStorageIO, m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version, description) VALUES (?, ?)", m.version, m.description); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: record migration v%d: %w", ErrStorageIO, m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit migration v%d: %w", ErrStorageIO, m.version, err)
		}
	}

	return nil
}

// Version returns the highest applied migration version.
func (db *DB) Version() (int, error) {
	var v int
	if err := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("%w: get schema version: %w", ErrStorageIO, err)
	}
	return v, nil
}

const migrationV1Tasks = `
CREATE TABLE tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	branch TEXT NOT NULL,
	worktree TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'idle'
		CHECK (status IN ('idle', 'running', 'done')),
	resume_token TEXT NOT NULL DEFAULT '',
	session_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX idx_tasks_status ON tasks(status);
`

const migrationV2Prompt = `
ALTER TABLE tasks ADD COLUMN prompt TEXT NOT NULL DEFAULT '';
ALTER TABLE tasks ADD COLUMN issue_ref TEXT NOT NULL DEFAULT '';
`

const migrationV3Agent = `
ALTER TABLE tasks ADD COLUMN agent TEXT NOT NULL DEFAULT 'claude';
ALTER TABLE tasks ADD COLUMN issue_title TEXT NOT NULL DEFAULT '';
`

// Transaction runs fn within a transaction, rolling back on error.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", ErrStorageIO, err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorageIO, err)
	}
	return nil
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
