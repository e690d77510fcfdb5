package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// timestamps are stored as fixed-width UTC text so they sort lexically.
const tsLayout = "2006-01-02T15:04:05Z"

// DB wraps sql.DB for the calendar service.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens database at path and runs migrations.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS weekly_schedule (
			weekday TEXT PRIMARY KEY,
			is_day_off BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT,
			end_time TEXT,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS schedule_overrides (
			date TEXT PRIMARY KEY,
			is_day_off BOOLEAN NOT NULL DEFAULT 0,
			start_time TEXT,
			end_time TEXT,
			reason TEXT,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS calendar_events (
			id TEXT PRIMARY KEY,
			title TEXT,
			client_name TEXT,
			client_phone TEXT,
			starts_at TEXT NOT NULL,
			ends_at TEXT,
			duration_minutes INTEGER,
			timezone TEXT,
			status TEXT NOT NULL DEFAULT 'scheduled',
			comment TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS employees (
			user_id TEXT PRIMARY KEY,
			name TEXT,
			role TEXT NOT NULL DEFAULT 'employee',
			pages TEXT,
			is_blocked BOOLEAN NOT NULL DEFAULT 0,
			block_reason TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calendar_events_starts ON calendar_events(starts_at)`,
		`CREATE INDEX IF NOT EXISTS idx_calendar_events_status ON calendar_events(status)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func formatTS(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
