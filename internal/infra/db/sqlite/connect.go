package sqlite

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// timeLayout is fixed-width UTC so stored timestamps sort
// lexicographically in chronological order.
const timeLayout = "2006-01-02 15:04:05.000000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// Open opens (and creates, if needed) a SQLite database at path. Used
// for local development and tests; production runs MySQL or Postgres.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids busy errors.
	db.SetMaxOpenConns(1)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS scan_records (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	url        TEXT NOT NULL,
	prediction TEXT NOT NULL,
	confidence REAL NOT NULL,
	checked_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_records_owner ON scan_records (owner_id, checked_at);
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}
