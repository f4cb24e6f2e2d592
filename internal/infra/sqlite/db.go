// Package sqlite is the document store behind the ledger and the idea
// repository. One *DB is opened per process and shared by every request;
// database/sql pools the underlying connections.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so TEXT columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB wraps the pooled SQLite handle.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) focal.db inside dir and applies migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	path := filepath.Join(dir, "focal.db")

	// Writers take the lock at BEGIN so a conditional debit never reads a
	// balance another writer is about to change.
	dsn := "file:" + path +
		"?_pragma=busy_timeout(10000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_txlock=immediate"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(8)
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{db: sqlDB, path: path}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the pool.
func (db *DB) Close() error {
	return db.db.Close()
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Ping checks the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Migrations returns the schema statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL DEFAULT '',
			picture    TEXT NOT NULL DEFAULT '',
			subject_id TEXT NOT NULL DEFAULT '',
			credits    INTEGER NOT NULL DEFAULT 0 CHECK(credits >= 0),
			created_at TEXT NOT NULL,
			last_login TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS credit_transactions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id     TEXT NOT NULL,
			kind        TEXT NOT NULL CHECK(kind IN ('initial', 'deduction', 'addition')),
			amount      INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_tx_user ON credit_transactions(user_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS ideas (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL,
			user_id     TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ideas_user ON ideas(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_ideas_created ON ideas(created_at)`,

		`CREATE TABLE IF NOT EXISTS debates (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			idea_id    TEXT NOT NULL,
			round      INTEGER NOT NULL CHECK(round >= 1),
			agent_name TEXT NOT NULL,
			message    TEXT NOT NULL,
			timestamp  TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_debates_idea ON debates(idea_id, round, timestamp)`,

		`CREATE TABLE IF NOT EXISTS requirements (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			idea_id              TEXT NOT NULL,
			refined_requirements TEXT NOT NULL DEFAULT '',
			trade_offs           TEXT NOT NULL DEFAULT '',
			next_steps           TEXT NOT NULL DEFAULT '',
			created_at           TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requirements_idea ON requirements(idea_id, created_at)`,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

// now is the server-assigned timestamp for every write.
var now = func() time.Time { return time.Now().UTC() }
