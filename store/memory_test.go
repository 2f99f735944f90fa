package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/onnwee/botkit/store"
)

func TestMemoryGateway(t *testing.T) {
	runGatewaySuite(t, store.NewMemory())
}

func TestMemoryConcurrentAddPoints(t *testing.T) {
	gw := store.NewMemory()
	ctx := context.Background()

	const workers = 16
	const perWorker = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				if _, err := gw.AddPoints(ctx, "chan1", "u1", "alice", 1); err != nil {
					t.Errorf("add: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	bal, err := gw.GetBalance(ctx, "chan1", "u1")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal != workers*perWorker {
		t.Fatalf("balance = %d, want %d (lost updates)", bal, workers*perWorker)
	}
}

func TestMemoryTransferRecipientAppearsOnLeaderboard(t *testing.T) {
	gw := store.NewMemory()
	ctx := context.Background()

	if _, err := gw.AddPoints(ctx, "chan1", "u1", "alice", 100); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := gw.Transfer(ctx, "chan1", "u1", "u2", 100); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	entries, err := gw.Leaderboard(ctx, "chan1", 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("leaderboard length = %d, want 2", len(entries))
	}
	if entries[0].Balance != 100 || entries[0].Username != "u2" {
		t.Fatalf("top entry = %+v, want u2 with 100", entries[0])
	}
}
