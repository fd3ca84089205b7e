package memory

import (
	"context"
	"testing"
	"time"
)

func TestRankingStoreOrdersByScoreThenTime(t *testing.T) {
	store := NewRankingStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	rank, err := store.Update(ctx, "event-1", "u1", 100, base)
	if err != nil {
		t.Fatalf("update u1: %v", err)
	}
	if rank != 1 {
		t.Fatalf("expected rank 1, got %d", rank)
	}

	rank, err = store.Update(ctx, "event-1", "u2", 150, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("update u2: %v", err)
	}
	if rank != 1 {
		t.Fatalf("higher score should take rank 1, got %d", rank)
	}

	// Same score as u1 but reached later: ranks below u1.
	rank, err = store.Update(ctx, "event-1", "u3", 100, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("update u3: %v", err)
	}
	if rank != 3 {
		t.Fatalf("expected rank 3 on tie reached later, got %d", rank)
	}

	top, err := store.Top(ctx, "event-1", 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].UserID != "u2" || top[1].UserID != "u1" {
		t.Fatalf("unexpected order: %s, %s", top[0].UserID, top[1].UserID)
	}
	if top[0].Rank != 1 || top[1].Rank != 2 {
		t.Fatalf("unexpected ranks: %d, %d", top[0].Rank, top[1].Rank)
	}
}

func TestRankingStoreIsolatesEvents(t *testing.T) {
	store := NewRankingStore()
	ctx := context.Background()
	now := time.Now()

	if _, err := store.Update(ctx, "event-1", "u1", 100, now); err != nil {
		t.Fatalf("update: %v", err)
	}

	top, err := store.Top(ctx, "event-2", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 0 {
		t.Fatalf("expected empty leaderboard for other event, got %d entries", len(top))
	}
}
