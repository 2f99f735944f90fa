package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/store"
)

// runGatewaySuite exercises the Gateway contract against a backend. Channel
// IDs are random so the suite can run against a shared database without
// cross-test interference.
func runGatewaySuite(t *testing.T, gw store.Gateway) {
	ctx := context.Background()

	t.Run("balance starts at zero", func(t *testing.T) {
		bal, err := gw.GetBalance(ctx, uuid.NewString(), "nobody")
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if bal != 0 {
			t.Fatalf("balance = %d, want 0", bal)
		}
	})

	t.Run("add points accumulates", func(t *testing.T) {
		ch := uuid.NewString()
		bal, err := gw.AddPoints(ctx, ch, "u1", "alice", 50)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if bal != 50 {
			t.Fatalf("balance after first add = %d, want 50", bal)
		}
		bal, err = gw.AddPoints(ctx, ch, "u1", "alice", 25)
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if bal != 75 {
			t.Fatalf("balance after second add = %d, want 75", bal)
		}
	})

	t.Run("remove clamps at zero", func(t *testing.T) {
		ch := uuid.NewString()
		if _, err := gw.AddPoints(ctx, ch, "u1", "alice", 30); err != nil {
			t.Fatalf("add: %v", err)
		}
		removed, err := gw.RemovePoints(ctx, ch, "u1", 100)
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if removed != 30 {
			t.Fatalf("removed = %d, want 30 (clamped)", removed)
		}
		bal, err := gw.GetBalance(ctx, ch, "u1")
		if err != nil {
			t.Fatalf("get balance: %v", err)
		}
		if bal != 0 {
			t.Fatalf("balance after clamp = %d, want 0", bal)
		}

		removed, err = gw.RemovePoints(ctx, ch, "ghost", 10)
		if err != nil {
			t.Fatalf("remove from unknown user: %v", err)
		}
		if removed != 0 {
			t.Fatalf("removed from unknown user = %d, want 0", removed)
		}
	})

	t.Run("transfer moves points", func(t *testing.T) {
		ch := uuid.NewString()
		if _, err := gw.AddPoints(ctx, ch, "u1", "alice", 100); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := gw.Transfer(ctx, ch, "u1", "u2", 40); err != nil {
			t.Fatalf("transfer: %v", err)
		}
		from, _ := gw.GetBalance(ctx, ch, "u1")
		to, _ := gw.GetBalance(ctx, ch, "u2")
		if from != 60 || to != 40 {
			t.Fatalf("balances after transfer = (%d, %d), want (60, 40)", from, to)
		}

		// A recipient created by the transfer carries their id as the
		// username until they speak and AddPoints records the real one.
		entries, err := gw.Leaderboard(ctx, ch, 10)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		if len(entries) != 2 || entries[1].Username != "u2" {
			t.Fatalf("leaderboard after transfer = %+v, want u2 placeholder entry", entries)
		}
	})

	t.Run("find user id by username", func(t *testing.T) {
		ch := uuid.NewString()
		if _, err := gw.AddPoints(ctx, ch, "id1", "Alice", 5); err != nil {
			t.Fatalf("add: %v", err)
		}

		id, err := gw.FindUserID(ctx, ch, "alice")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if id != "id1" {
			t.Fatalf("case-insensitive lookup = %q, want id1", id)
		}

		id, err = gw.FindUserID(ctx, ch, "nobody")
		if err != nil {
			t.Fatalf("find unknown: %v", err)
		}
		if id != "" {
			t.Fatalf("unknown name = %q, want empty", id)
		}

		// When a name was reused, the most recent account wins.
		if _, err := gw.AddPoints(ctx, ch, "id2", "alice", 1); err != nil {
			t.Fatalf("add: %v", err)
		}
		id, err = gw.FindUserID(ctx, ch, "ALICE")
		if err != nil {
			t.Fatalf("find after reuse: %v", err)
		}
		if id != "id2" {
			t.Fatalf("reused name lookup = %q, want id2", id)
		}
	})

	t.Run("transfer rejections leave balances untouched", func(t *testing.T) {
		ch := uuid.NewString()
		if _, err := gw.AddPoints(ctx, ch, "u1", "alice", 10); err != nil {
			t.Fatalf("add: %v", err)
		}

		if err := gw.Transfer(ctx, ch, "u1", "u2", 0); !errors.Is(err, store.ErrInvalidAmount) {
			t.Fatalf("zero amount error = %v, want ErrInvalidAmount", err)
		}
		if err := gw.Transfer(ctx, ch, "u1", "u2", -5); !errors.Is(err, store.ErrInvalidAmount) {
			t.Fatalf("negative amount error = %v, want ErrInvalidAmount", err)
		}
		if err := gw.Transfer(ctx, ch, "u1", "u1", 5); !errors.Is(err, store.ErrSameUser) {
			t.Fatalf("self transfer error = %v, want ErrSameUser", err)
		}
		if err := gw.Transfer(ctx, ch, "u1", "u2", 11); !errors.Is(err, store.ErrInsufficientFunds) {
			t.Fatalf("overdraft error = %v, want ErrInsufficientFunds", err)
		}

		from, _ := gw.GetBalance(ctx, ch, "u1")
		to, _ := gw.GetBalance(ctx, ch, "u2")
		if from != 10 || to != 0 {
			t.Fatalf("balances after rejections = (%d, %d), want (10, 0)", from, to)
		}
	})

	t.Run("leaderboard orders by balance then insertion", func(t *testing.T) {
		ch := uuid.NewString()
		seed := []struct {
			userID   string
			username string
			amount   int64
		}{
			{"u1", "alice", 50},
			{"u2", "bob", 200},
			{"u3", "carol", 50}, // same balance as alice, inserted later
			{"u4", "dave", 120},
		}
		for _, s := range seed {
			if _, err := gw.AddPoints(ctx, ch, s.userID, s.username, s.amount); err != nil {
				t.Fatalf("add %s: %v", s.username, err)
			}
		}

		entries, err := gw.Leaderboard(ctx, ch, 3)
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		want := []store.LeaderboardEntry{
			{Username: "bob", Balance: 200},
			{Username: "dave", Balance: 120},
			{Username: "alice", Balance: 50},
		}
		if len(entries) != len(want) {
			t.Fatalf("leaderboard length = %d, want %d", len(entries), len(want))
		}
		for i := range want {
			if entries[i] != want[i] {
				t.Fatalf("entry %d = %+v, want %+v", i, entries[i], want[i])
			}
		}
	})

	t.Run("custom command round trip", func(t *testing.T) {
		ch := uuid.NewString()
		cmd := command.CustomCommand{
			ChannelID: ch,
			Name:      "welcome",
			Template:  "Welcome {username}!",
			CreatedBy: "mod1",
			CreatedAt: time.Now().UTC().Truncate(time.Second),
			UpdatedAt: time.Now().UTC().Truncate(time.Second),
			Cooldown:  15 * time.Second,
		}
		if err := gw.SaveCustomCommand(ctx, cmd); err != nil {
			t.Fatalf("save: %v", err)
		}

		cmds, err := gw.LoadCustomCommands(ctx, ch)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		got, ok := cmds["welcome"]
		if !ok {
			t.Fatalf("saved command missing from load: %v", cmds)
		}
		if got.Template != cmd.Template || got.Cooldown != cmd.Cooldown || got.CreatedBy != "mod1" {
			t.Fatalf("loaded command = %+v, want %+v", got, cmd)
		}

		// Overwrite keeps the original author and creation time.
		update := cmd
		update.Template = "Hello again {username}"
		update.CreatedBy = "mod2"
		update.UpdatedAt = update.UpdatedAt.Add(time.Hour)
		if err := gw.SaveCustomCommand(ctx, update); err != nil {
			t.Fatalf("overwrite: %v", err)
		}
		cmds, err = gw.LoadCustomCommands(ctx, ch)
		if err != nil {
			t.Fatalf("load after overwrite: %v", err)
		}
		got = cmds["welcome"]
		if got.Template != "Hello again {username}" {
			t.Fatalf("template not updated: %+v", got)
		}
		if got.CreatedBy != "mod1" {
			t.Fatalf("overwrite changed author to %q, want mod1", got.CreatedBy)
		}
		if !got.CreatedAt.Equal(cmd.CreatedAt) {
			t.Fatalf("overwrite changed creation time: %v, want %v", got.CreatedAt, cmd.CreatedAt)
		}

		deleted, err := gw.DeleteCustomCommand(ctx, ch, "welcome")
		if err != nil || !deleted {
			t.Fatalf("delete = (%v, %v), want (true, nil)", deleted, err)
		}
		deleted, err = gw.DeleteCustomCommand(ctx, ch, "welcome")
		if err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if deleted {
			t.Fatal("second delete reported true")
		}
	})
}
