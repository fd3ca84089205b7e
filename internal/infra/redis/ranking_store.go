package redis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"medcase-engine/internal/domain"
)

// tieBase shifts the score past the tie-break component. Scores stay exact in
// a float64 as long as score*tieBase < 2^53, which holds for any realistic
// event total.
const tieBase = 1e10

// RankingStore keeps one sorted set per event:
//
//	ZADD ranking:{eventID} {composite} {userID}
//
// The composite member score is score*1e10 + (1e10 - unixSeconds), so a higher
// score always outranks, and within a score the earlier update wins the tie.
type RankingStore struct {
	client *redis.Client
}

func NewRankingStore(client *redis.Client) *RankingStore {
	return &RankingStore{client: client}
}

func (s *RankingStore) Update(ctx context.Context, eventID, userID string, score int, at time.Time) (int, error) {
	composite := float64(score)*tieBase + (tieBase - float64(at.Unix()))
	if err := s.client.ZAdd(ctx, s.key(eventID), redis.Z{Score: composite, Member: userID}).Err(); err != nil {
		return 0, fmt.Errorf("ranking update: %w", err)
	}

	rank, err := s.client.ZRevRank(ctx, s.key(eventID), userID).Result()
	if err != nil {
		return 0, fmt.Errorf("ranking rank: %w", err)
	}
	return int(rank) + 1, nil
}

func (s *RankingStore) Top(ctx context.Context, eventID string, limit int) ([]domain.RankingEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.client.ZRevRangeWithScores(ctx, s.key(eventID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("ranking top: %w", err)
	}

	entries := make([]domain.RankingEntry, 0, len(rows))
	for i, row := range rows {
		userID, _ := row.Member.(string)
		score := int(math.Floor(row.Score / tieBase))
		updatedAt := time.Unix(int64(tieBase-(row.Score-float64(score)*tieBase)), 0)
		entries = append(entries, domain.RankingEntry{
			EventID:   eventID,
			UserID:    userID,
			Score:     score,
			Rank:      i + 1,
			UpdatedAt: updatedAt,
		})
	}
	return entries, nil
}

func (s *RankingStore) key(eventID string) string {
	return "ranking:" + eventID
}
