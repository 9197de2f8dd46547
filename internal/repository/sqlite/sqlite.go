// Package sqlite implements the repository interfaces on SQLite.
//
// This is the constraint-backed adapter: the schema carries
// UNIQUE(user_id, log_date) on reading_logs and a unique index on
// lower(username), so duplicates are rejected atomically by the database and
// surface as apperror.ErrConflict.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so no C toolchain is
// needed. Use ":memory:" for tests.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/sakif/reading-challenge/internal/apperror"
	"github.com/sakif/reading-challenge/internal/repository"
)

// compile-time check that *DB is a complete backend
var (
	_ repository.Backend        = (*DB)(nil)
	_ repository.MonthlyTotaler = (*DB)(nil)
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// Pragmas are passed in the DSN so that every pooled connection gets them;
// a plain "PRAGMA foreign_keys=ON" would only reach one connection.
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Each connection to ":memory:" is a separate empty database.
	if strings.HasPrefix(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if !strings.HasPrefix(dbPath, ":memory:") {
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Name identifies the adapter in logs.
func (db *DB) Name() string { return "sqlite" }

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			github_id     INTEGER UNIQUE,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_email
			ON accounts(email) WHERE email <> '';
	`)
	if err != nil {
		return fmt.Errorf("creating accounts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS profiles (
			user_id         TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
			username        TEXT NOT NULL,
			register_number TEXT NOT NULL DEFAULT '',
			avatar_url      TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username_ci
			ON profiles(lower(username));
	`)
	if err != nil {
		return fmt.Errorf("creating profiles table: %w", err)
	}

	// Timestamps on reading_logs are unix microseconds so MAX(updated_at)
	// orders correctly in the monthly aggregate.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS reading_logs (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			log_date   TEXT NOT NULL,
			pages_read INTEGER NOT NULL CHECK (pages_read BETWEEN 1 AND 1000),
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (user_id, log_date)
		);
		CREATE INDEX IF NOT EXISTS idx_reading_logs_log_date ON reading_logs(log_date);
	`)
	if err != nil {
		return fmt.Errorf("creating reading_logs table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is SQLite rejecting a duplicate key.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// failed wraps an unexpected driver error as a backend failure.
func failed(op string, err error) error {
	return apperror.Unavailable("sqlite: "+op, err)
}
