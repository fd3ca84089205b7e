package memory

import (
	"context"
	"sync"

	"medcase-engine/internal/domain"
)

// AttemptStore is an in-memory implementation of app.AttemptStore. The first
// scoring record per user+case is guarded by an insert-if-not-exists check
// under the mutex; review records accumulate freely.
type AttemptStore struct {
	mu      sync.RWMutex
	records []domain.AttemptRecord
	scored  map[string]struct{} // userID|caseID pairs with a scoring record
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{scored: make(map[string]struct{})}
}

func (s *AttemptStore) Exists(_ context.Context, userID, caseID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.scored[attemptKey(userID, caseID)]
	return ok, nil
}

func (s *AttemptStore) Append(_ context.Context, record domain.AttemptRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := attemptKey(record.UserID, record.CaseID)
	if !record.IsReview {
		if _, taken := s.scored[key]; taken {
			return domain.ErrDuplicateAttempt
		}
		s.scored[key] = struct{}{}
	}
	s.records = append(s.records, record)
	return nil
}

// Records returns a copy of everything appended, in order. Test helper.
func (s *AttemptStore) Records() []domain.AttemptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRecord, len(s.records))
	copy(out, s.records)
	return out
}

func attemptKey(userID, caseID string) string {
	return userID + "|" + caseID
}
