package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"medcase-engine/internal/domain"
)

// RankingStore keeps per-event leaderboards in memory. Ordering is score
// descending, then earliest update, then user ID for a stable total order.
type RankingStore struct {
	mu     sync.RWMutex
	events map[string]map[string]rankingRow
}

type rankingRow struct {
	score     int
	updatedAt time.Time
}

func NewRankingStore() *RankingStore {
	return &RankingStore{events: make(map[string]map[string]rankingRow)}
}

func (s *RankingStore) Update(_ context.Context, eventID, userID string, score int, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, ok := s.events[eventID]
	if !ok {
		rows = make(map[string]rankingRow)
		s.events[eventID] = rows
	}
	rows[userID] = rankingRow{score: score, updatedAt: at}

	for rank, entry := range s.sortedLocked(eventID) {
		if entry.UserID == userID {
			return rank + 1, nil
		}
	}
	return 0, nil
}

func (s *RankingStore) Top(_ context.Context, eventID string, limit int) ([]domain.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.sortedLocked(eventID)
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *RankingStore) sortedLocked(eventID string) []domain.RankingEntry {
	rows := s.events[eventID]
	entries := make([]domain.RankingEntry, 0, len(rows))
	for userID, row := range rows {
		entries = append(entries, domain.RankingEntry{
			EventID:   eventID,
			UserID:    userID,
			Score:     row.score,
			UpdatedAt: row.updatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		// Tie-break by who reached the score earlier, then user ID.
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}
