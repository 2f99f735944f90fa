// Package store defines the persistence gateway for channel points and
// custom commands, plus the Postgres, SQLite, and in-memory backends. The
// dispatcher and handlers only ever see the Gateway interface; schema and
// write-serialization are backend concerns.
package store

import (
	"context"
	"errors"

	"github.com/onnwee/botkit/command"
)

var (
	// ErrInsufficientFunds rejects a transfer larger than the sender's
	// balance. Neither balance changes.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameUser rejects a self-transfer.
	ErrSameUser = errors.New("cannot transfer to self")
	// ErrInvalidAmount rejects zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
)

// LeaderboardEntry is one row of a channel leaderboard.
type LeaderboardEntry struct {
	Username string
	Balance  int64
}

// Gateway is the storage boundary for durable bot state. Balances never go
// below zero: RemovePoints clamps and reports what was actually removed,
// and Transfer is atomic (all-or-nothing on both balances). Backends own
// their write serialization; concurrent AddPoints calls must not lose
// updates, so implementations use atomic increments, not read-then-write.
type Gateway interface {
	GetBalance(ctx context.Context, channelID, userID string) (int64, error)
	// AddPoints credits amount and returns the new balance. The username is
	// recorded alongside the balance so leaderboards can display it.
	AddPoints(ctx context.Context, channelID, userID, username string, amount int64) (int64, error)
	// RemovePoints debits up to amount, clamping at zero, and returns the
	// amount actually removed.
	RemovePoints(ctx context.Context, channelID, userID string, amount int64) (int64, error)
	// Transfer moves amount from one user to another. Fails with
	// ErrInvalidAmount, ErrSameUser, or ErrInsufficientFunds, leaving both
	// balances untouched on any failure.
	Transfer(ctx context.Context, channelID, fromID, toID string, amount int64) error
	// Leaderboard returns up to limit entries ordered by balance descending,
	// ties broken by insertion order.
	Leaderboard(ctx context.Context, channelID string, limit int) ([]LeaderboardEntry, error)
	// FindUserID resolves a username (case-insensitive) to the user id the
	// ledger knows it by, preferring the most recently created account when
	// a name was reused. Returns "" when the name has never been seen.
	FindUserID(ctx context.Context, channelID, username string) (string, error)

	LoadCustomCommands(ctx context.Context, channelID string) (map[string]command.CustomCommand, error)
	SaveCustomCommand(ctx context.Context, cmd command.CustomCommand) error
	DeleteCustomCommand(ctx context.Context, channelID, name string) (bool, error)
}
