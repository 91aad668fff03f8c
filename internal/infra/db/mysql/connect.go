package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the ledger and account tables when missing.
// seq is the insertion-order tiebreak for records sharing a checked_at.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_records (
  seq        BIGINT NOT NULL AUTO_INCREMENT,
  id         VARCHAR(64) NOT NULL,
  owner_id   VARCHAR(64) NOT NULL,
  url        TEXT NOT NULL,
  prediction VARCHAR(16) NOT NULL,
  confidence DOUBLE NOT NULL,
  checked_at DATETIME(6) NOT NULL,
  PRIMARY KEY (seq),
  UNIQUE KEY uq_scan_records_id (id),
  KEY idx_scan_records_owner (owner_id, checked_at)
);`,
		`CREATE TABLE IF NOT EXISTS users (
  id            VARCHAR(64) NOT NULL,
  email         VARCHAR(255) NOT NULL,
  password_hash VARCHAR(255) NOT NULL,
  created_at    DATETIME(6) NOT NULL,
  PRIMARY KEY (id),
  UNIQUE KEY uq_users_email (email)
);`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
