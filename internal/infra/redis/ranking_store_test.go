package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func TestRankingStoreCompositeOrdering(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRankingStore(newClient(mr))
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

	// Same score as u1 but later: tie broken toward the earlier update.
	rank, err = store.Update(ctx, "event-1", "u3", 100, base.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("update u3: %v", err)
	}
	if rank != 3 {
		t.Fatalf("expected rank 3, got %d", rank)
	}

	top, err := store.Top(ctx, "event-1", 3)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(top))
	}
	order := []string{top[0].UserID, top[1].UserID, top[2].UserID}
	if order[0] != "u2" || order[1] != "u1" || order[2] != "u3" {
		t.Fatalf("unexpected order %v", order)
	}
	if top[1].Score != 100 {
		t.Fatalf("composite decode lost the score: %d", top[1].Score)
	}
}

func TestRankingStoreUpdateReplacesScore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRankingStore(newClient(mr))
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := store.Update(ctx, "event-1", "u1", 50, now); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := store.Update(ctx, "event-1", "u1", 130, now.Add(time.Minute)); err != nil {
		t.Fatalf("update 2: %v", err)
	}

	top, err := store.Top(ctx, "event-1", 10)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("expected one entry, got %d", len(top))
	}
	if top[0].Score != 130 {
		t.Fatalf("expected replaced score 130, got %d", top[0].Score)
	}
}
