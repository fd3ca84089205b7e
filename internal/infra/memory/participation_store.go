package memory

import (
	"context"
	"sync"

	"medcase-engine/internal/app"
	"medcase-engine/internal/domain"
)

// ParticipationStore is an in-memory implementation of app.ParticipationStore.
type ParticipationStore struct {
	mu             sync.RWMutex
	participations map[string]domain.EventParticipation
}

func NewParticipationStore() *ParticipationStore {
	return &ParticipationStore{participations: make(map[string]domain.EventParticipation)}
}

func (s *ParticipationStore) Get(_ context.Context, eventID, userID string) (domain.EventParticipation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participation, ok := s.participations[participationKey(eventID, userID)]
	return participation, ok, nil
}

// Upsert is a compare-and-swap on the stored case index: the write lands only
// when the row still carries expectedIndex (or does not exist, for
// app.NoParticipation). Two tabs that both read index N and try to write N+1
// therefore resolve to exactly one applied write, and the index stays monotonic.
func (s *ParticipationStore) Upsert(_ context.Context, participation domain.EventParticipation, expectedIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := participationKey(participation.EventID, participation.UserID)
	existing, ok := s.participations[key]
	if !ok {
		if expectedIndex != app.NoParticipation {
			return false, nil
		}
	} else if existing.CurrentCaseIndex != expectedIndex {
		return false, nil
	}
	s.participations[key] = participation
	return true, nil
}

func participationKey(eventID, userID string) string {
	return eventID + "|" + userID
}
