package memory

import (
	"context"
	"errors"
	"testing"

	"medcase-engine/internal/domain"
)

func TestAttemptStoreGuardsFirstScoring(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	first := domain.AttemptRecord{UserID: "u1", CaseID: "c1", PointsAwarded: 80}
	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}

	exists, err := store.Exists(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected a scoring record to exist")
	}

	err = store.Append(ctx, domain.AttemptRecord{UserID: "u1", CaseID: "c1", PointsAwarded: 100})
	if !errors.Is(err, domain.ErrDuplicateAttempt) {
		t.Fatalf("expected duplicate attempt error, got %v", err)
	}

	// Reviews accumulate without limit.
	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, domain.AttemptRecord{UserID: "u1", CaseID: "c1", IsReview: true}); err != nil {
			t.Fatalf("append review %d: %v", i, err)
		}
	}
	if got := len(store.Records()); got != 4 {
		t.Fatalf("expected 4 records, got %d", got)
	}
}

func TestAttemptStoreScopesByUserAndCase(t *testing.T) {
	store := NewAttemptStore()
	ctx := context.Background()

	if err := store.Append(ctx, domain.AttemptRecord{UserID: "u1", CaseID: "c1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, domain.AttemptRecord{UserID: "u2", CaseID: "c1"}); err != nil {
		t.Fatalf("append other user: %v", err)
	}
	if err := store.Append(ctx, domain.AttemptRecord{UserID: "u1", CaseID: "c2"}); err != nil {
		t.Fatalf("append other case: %v", err)
	}

	exists, err := store.Exists(ctx, "u2", "c2")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("u2/c2 should not have a scoring record")
	}
}
