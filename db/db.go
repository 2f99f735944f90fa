// Package db provides database connection helpers and schema migration for
// the points and custom command tables. Postgres is the default backend;
// a plain file path in BOT_DB_DSN selects SQLite instead.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
	_ "modernc.org/sqlite"             // cgo-free sqlite driver registered as 'sqlite'
)

// IsPostgres reports whether a DSN targets Postgres. Anything else is
// treated as a SQLite file path.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Connect opens the database for the given DSN, picking the driver from its
// shape. It does not ping; callers decide how long to wait for readiness.
func Connect(dsn string) (*sql.DB, error) {
	if IsPostgres(dsn) {
		return sql.Open("pgx", dsn)
	}
	return sql.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
}

// Migrate applies idempotent schema changes for the tables the store
// backends expect. Safe to run on every startup.
func Migrate(ctx context.Context, db *sql.DB, dsn string) error {
	if IsPostgres(dsn) {
		return migrate(ctx, db, postgresStmts)
	}
	return migrate(ctx, db, sqliteStmts)
}

var postgresStmts = []string{
	`CREATE TABLE IF NOT EXISTS points (
		id BIGSERIAL,
		channel_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		PRIMARY KEY (channel_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_commands (
		channel_id TEXT NOT NULL,
		name TEXT NOT NULL,
		template TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ,
		cooldown_seconds BIGINT NOT NULL DEFAULT 0,
		PRIMARY KEY (channel_id, name)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_points_id ON points(id)`,
	`CREATE INDEX IF NOT EXISTS idx_points_leaderboard ON points(channel_id, balance DESC, id)`,
}

var sqliteStmts = []string{
	`CREATE TABLE IF NOT EXISTS points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		balance INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		created_at TEXT DEFAULT (datetime('now')),
		UNIQUE (channel_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS custom_commands (
		channel_id TEXT NOT NULL,
		name TEXT NOT NULL,
		template TEXT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		cooldown_seconds INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (channel_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_points_leaderboard ON points(channel_id, balance DESC, id)`,
}

func migrate(ctx context.Context, db *sql.DB, stmts []string) error {
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
