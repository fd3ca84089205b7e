package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"medcase-engine/internal/domain"
)

func TestLedgerStoreAtomicDecrement(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewLedgerStore(newClient(mr))
	ctx := context.Background()

	ok, _, err := store.TryConsume(ctx, "u1", domain.AidElimination)
	if err != nil {
		t.Fatalf("consume empty: %v", err)
	}
	if ok {
		t.Fatal("consumed from an empty pool")
	}

	if _, err := store.Grant(ctx, "u1", domain.AidElimination, 2); err != nil {
		t.Fatalf("grant: %v", err)
	}

	ok, remaining, err := store.TryConsume(ctx, "u1", domain.AidElimination)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !ok || remaining != 1 {
		t.Fatalf("expected ok with 1 remaining, got ok=%v remaining=%d", ok, remaining)
	}

	// Drain and verify the script refuses to go below zero.
	if _, _, err := store.TryConsume(ctx, "u1", domain.AidElimination); err != nil {
		t.Fatalf("drain: %v", err)
	}
	ok, _, err = store.TryConsume(ctx, "u1", domain.AidElimination)
	if err != nil {
		t.Fatalf("consume drained: %v", err)
	}
	if ok {
		t.Fatal("consumed past zero")
	}
	if got := mr.HGet("ledger:u1", string(domain.AidElimination)); got != "0" {
		t.Fatalf("expected stored credits 0, got %q", got)
	}
}

func TestLedgerStoreBalanceReadsAllPools(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewLedgerStore(newClient(mr))
	ctx := context.Background()

	if _, err := store.Grant(ctx, "u1", domain.AidElimination, 3); err != nil {
		t.Fatalf("grant elimination: %v", err)
	}
	if _, err := store.Grant(ctx, "u1", domain.AidAITutor, 1); err != nil {
		t.Fatalf("grant tutor: %v", err)
	}

	balance, err := store.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.EliminationCredits != 3 || balance.SkipCredits != 0 || balance.AITutorCredits != 1 {
		t.Fatalf("unexpected balance %+v", balance)
	}
}
