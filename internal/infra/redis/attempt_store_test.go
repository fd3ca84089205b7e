package redis

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"medcase-engine/internal/domain"
)

func TestAttemptStoreFirstScoringGuard(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAttemptStore(newClient(mr))
	ctx := context.Background()

	record := domain.AttemptRecord{UserID: "u1", CaseID: "c1", PointsAwarded: 80}
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("append first: %v", err)
	}

	exists, err := store.Exists(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected scoring record")
	}

	err = store.Append(ctx, record)
	if !errors.Is(err, domain.ErrDuplicateAttempt) {
		t.Fatalf("expected duplicate attempt error, got %v", err)
	}

	review := domain.AttemptRecord{UserID: "u1", CaseID: "c1", IsReview: true}
	if err := store.Append(ctx, review); err != nil {
		t.Fatalf("append review: %v", err)
	}

	log, err := mr.List("attempt:log:u1:c1")
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if len(log) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(log))
	}
}

func TestAttemptStoreExistsMiss(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewAttemptStore(newClient(mr))

	exists, err := store.Exists(context.Background(), "u1", "never")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("expected no record")
	}
}
