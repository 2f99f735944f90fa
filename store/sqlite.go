package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onnwee/botkit/command"
)

// SQLite is a single-file Gateway for deployments without a Postgres
// instance. SQLite serializes writers itself, so plain transactions give
// the same atomicity the Postgres backend gets from row locks.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an open connection (modernc.org/sqlite driver).
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

func (s *SQLite) GetBalance(ctx context.Context, channelID, userID string) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance FROM points WHERE channel_id=? AND user_id=?`,
		channelID, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

func (s *SQLite) AddPoints(ctx context.Context, channelID, userID, username string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO points (channel_id, user_id, username, balance)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (channel_id, user_id) DO UPDATE SET
		   balance = points.balance + excluded.balance,
		   username = CASE WHEN excluded.username <> '' THEN excluded.username ELSE points.username END
		 RETURNING balance`,
		channelID, userID, username, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return balance, nil
}

func (s *SQLite) RemovePoints(ctx context.Context, channelID, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM points WHERE channel_id=? AND user_id=?`,
		channelID, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	removed := amount
	if removed > balance {
		removed = balance
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE points SET balance = balance - ? WHERE channel_id=? AND user_id=?`,
		removed, channelID, userID); err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	return removed, nil
}

func (s *SQLite) Transfer(ctx context.Context, channelID, fromID, toID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSameUser
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var from int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM points WHERE channel_id=? AND user_id=?`,
		channelID, fromID).Scan(&from)
	if err == sql.ErrNoRows || (err == nil && from < amount) {
		return ErrInsufficientFunds
	}
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE points SET balance = balance - ? WHERE channel_id=? AND user_id=?`,
		amount, channelID, fromID); err != nil {
		return fmt.Errorf("transfer debit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO points (channel_id, user_id, username, balance)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (channel_id, user_id) DO UPDATE SET balance = points.balance + excluded.balance`,
		channelID, toID, toID, amount); err != nil {
		return fmt.Errorf("transfer credit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

func (s *SQLite) FindUserID(ctx context.Context, channelID, username string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM points
		 WHERE channel_id=? AND LOWER(username)=LOWER(?)
		 ORDER BY id DESC LIMIT 1`,
		channelID, username).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	}
	return userID, nil
}

func (s *SQLite) Leaderboard(ctx context.Context, channelID string, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, balance FROM points
		 WHERE channel_id=? ORDER BY balance DESC, id ASC LIMIT ?`,
		channelID, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()
	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Balance); err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) LoadCustomCommands(ctx context.Context, channelID string) (map[string]command.CustomCommand, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, template, created_by, created_at, updated_at, cooldown_seconds
		 FROM custom_commands WHERE channel_id=?`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("load custom commands: %w", err)
	}
	defer rows.Close()
	out := make(map[string]command.CustomCommand)
	for rows.Next() {
		cc := command.CustomCommand{ChannelID: channelID}
		var created, updated string
		var cooldownSeconds int64
		if err := rows.Scan(&cc.Name, &cc.Template, &cc.CreatedBy, &created, &updated, &cooldownSeconds); err != nil {
			return nil, fmt.Errorf("load custom commands: %w", err)
		}
		cc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		cc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		cc.Cooldown = time.Duration(cooldownSeconds) * time.Second
		out[cc.Name] = cc
	}
	return out, rows.Err()
}

func (s *SQLite) SaveCustomCommand(ctx context.Context, cmd command.CustomCommand) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO custom_commands (channel_id, name, template, created_by, created_at, updated_at, cooldown_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (channel_id, name) DO UPDATE SET
		   template = excluded.template,
		   updated_at = excluded.updated_at,
		   cooldown_seconds = excluded.cooldown_seconds`,
		cmd.ChannelID, cmd.Name, cmd.Template, cmd.CreatedBy,
		cmd.CreatedAt.UTC().Format(time.RFC3339Nano),
		cmd.UpdatedAt.UTC().Format(time.RFC3339Nano),
		int64(cmd.Cooldown/time.Second))
	if err != nil {
		return fmt.Errorf("save custom command: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteCustomCommand(ctx context.Context, channelID, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM custom_commands WHERE channel_id=? AND name=?`,
		channelID, name)
	if err != nil {
		return false, fmt.Errorf("delete custom command: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete custom command: %w", err)
	}
	return n > 0, nil
}
