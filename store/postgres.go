package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/onnwee/botkit/command"
)

// Postgres is the production Gateway backed by a Postgres database opened
// with the pgx stdlib driver. Schema lives in the db package migrations.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) GetBalance(ctx context.Context, channelID, userID string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM points WHERE channel_id=$1 AND user_id=$2`,
		channelID, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// AddPoints is a single atomic upsert so concurrent credits never lose
// updates. An empty username keeps whatever the row already has.
func (p *Postgres) AddPoints(ctx context.Context, channelID, userID, username string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO points (channel_id, user_id, username, balance)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (channel_id, user_id) DO UPDATE SET
		   balance = points.balance + EXCLUDED.balance,
		   username = CASE WHEN EXCLUDED.username <> '' THEN EXCLUDED.username ELSE points.username END,
		   updated_at = NOW()
		 RETURNING balance`,
		channelID, userID, username, amount).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("add points: %w", err)
	}
	return balance, nil
}

func (p *Postgres) RemovePoints(ctx context.Context, channelID, userID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance int64
	err = tx.QueryRowContext(ctx,
		`SELECT balance FROM points WHERE channel_id=$1 AND user_id=$2 FOR UPDATE`,
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
		`UPDATE points SET balance = balance - $3, updated_at = NOW() WHERE channel_id=$1 AND user_id=$2`,
		channelID, userID, removed); err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("remove points: %w", err)
	}
	return removed, nil
}

// Transfer debits and credits inside one transaction. Rows are locked in
// user-id order so two opposite concurrent transfers cannot deadlock.
func (p *Postgres) Transfer(ctx context.Context, channelID, fromID, toID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if fromID == toID {
		return ErrSameUser
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx,
		`SELECT user_id, balance FROM points
		 WHERE channel_id=$1 AND user_id IN ($2, $3)
		 ORDER BY user_id FOR UPDATE`,
		channelID, fromID, toID)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	balances := map[string]int64{}
	for rows.Next() {
		var id string
		var bal int64
		if err := rows.Scan(&id, &bal); err != nil {
			rows.Close()
			return fmt.Errorf("transfer: %w", err)
		}
		balances[id] = bal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	from, ok := balances[fromID]
	if !ok || from < amount {
		return ErrInsufficientFunds
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE points SET balance = balance - $3, updated_at = NOW() WHERE channel_id=$1 AND user_id=$2`,
		channelID, fromID, amount); err != nil {
		return fmt.Errorf("transfer debit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO points (channel_id, user_id, username, balance)
		 VALUES ($1, $2, $2, $3)
		 ON CONFLICT (channel_id, user_id) DO UPDATE SET
		   balance = points.balance + EXCLUDED.balance, updated_at = NOW()`,
		channelID, toID, amount); err != nil {
		return fmt.Errorf("transfer credit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	return nil
}

func (p *Postgres) FindUserID(ctx context.Context, channelID, username string) (string, error) {
	var userID string
	err := p.db.QueryRowContext(ctx,
		`SELECT user_id FROM points
		 WHERE channel_id=$1 AND LOWER(username)=LOWER($2)
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

func (p *Postgres) Leaderboard(ctx context.Context, channelID string, limit int) ([]LeaderboardEntry, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT username, balance FROM points
		 WHERE channel_id=$1 ORDER BY balance DESC, id ASC LIMIT $2`,
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

func (p *Postgres) LoadCustomCommands(ctx context.Context, channelID string) (map[string]command.CustomCommand, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name, template, created_by, created_at, updated_at, cooldown_seconds
		 FROM custom_commands WHERE channel_id=$1`,
		channelID)
	if err != nil {
		return nil, fmt.Errorf("load custom commands: %w", err)
	}
	defer rows.Close()
	out := make(map[string]command.CustomCommand)
	for rows.Next() {
		cc := command.CustomCommand{ChannelID: channelID}
		var cooldownSeconds int64
		if err := rows.Scan(&cc.Name, &cc.Template, &cc.CreatedBy, &cc.CreatedAt, &cc.UpdatedAt, &cooldownSeconds); err != nil {
			return nil, fmt.Errorf("load custom commands: %w", err)
		}
		cc.Cooldown = time.Duration(cooldownSeconds) * time.Second
		out[cc.Name] = cc
	}
	return out, rows.Err()
}

func (p *Postgres) SaveCustomCommand(ctx context.Context, cmd command.CustomCommand) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO custom_commands (channel_id, name, template, created_by, created_at, updated_at, cooldown_seconds)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (channel_id, name) DO UPDATE SET
		   template = EXCLUDED.template,
		   updated_at = EXCLUDED.updated_at,
		   cooldown_seconds = EXCLUDED.cooldown_seconds`,
		cmd.ChannelID, cmd.Name, cmd.Template, cmd.CreatedBy, cmd.CreatedAt, cmd.UpdatedAt,
		int64(cmd.Cooldown/time.Second))
	if err != nil {
		return fmt.Errorf("save custom command: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteCustomCommand(ctx context.Context, channelID, name string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM custom_commands WHERE channel_id=$1 AND name=$2`,
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
