package memory

import (
	"context"
	"sync"

	"medcase-engine/internal/domain"
)

// LedgerStore is an in-memory implementation of app.LedgerStore. All mutations
// happen under one mutex so the compare-and-decrement contract holds across
// concurrent sessions of the same user.
type LedgerStore struct {
	mu       sync.Mutex
	balances map[string]*domain.HelpAidBalance
}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{balances: make(map[string]*domain.HelpAidBalance)}
}

func (s *LedgerStore) TryConsume(_ context.Context, userID string, aid domain.AidType) (bool, int, error) {
	if !aid.Valid() {
		return false, 0, domain.ErrInsufficientCredit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balanceLocked(userID)
	pool := s.poolLocked(balance, aid)
	if *pool <= 0 {
		return false, 0, nil
	}
	*pool--
	return true, *pool, nil
}

func (s *LedgerStore) Grant(_ context.Context, userID string, aid domain.AidType, amount int) (int, error) {
	if !aid.Valid() || amount < 0 {
		return 0, domain.ErrInsufficientCredit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance := s.balanceLocked(userID)
	pool := s.poolLocked(balance, aid)
	*pool += amount
	return *pool, nil
}

func (s *LedgerStore) Balance(_ context.Context, userID string) (domain.HelpAidBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.balanceLocked(userID), nil
}

func (s *LedgerStore) balanceLocked(userID string) *domain.HelpAidBalance {
	if balance, ok := s.balances[userID]; ok {
		return balance
	}
	balance := &domain.HelpAidBalance{UserID: userID}
	s.balances[userID] = balance
	return balance
}

func (s *LedgerStore) poolLocked(balance *domain.HelpAidBalance, aid domain.AidType) *int {
	switch aid {
	case domain.AidElimination:
		return &balance.EliminationCredits
	case domain.AidSkip:
		return &balance.SkipCredits
	default:
		return &balance.AITutorCredits
	}
}
