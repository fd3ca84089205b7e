package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"medcase-engine/internal/domain"
)

// AttemptStore is a Redis implementation of app.AttemptStore.
// The first-scoring guard is: SETNX attempt:scored:{userID}:{caseID} 1
// Records themselves land in:  RPUSH attempt:log:{userID}:{caseID} {json}
type AttemptStore struct {
	client *redis.Client
}

func NewAttemptStore(client *redis.Client) *AttemptStore {
	return &AttemptStore{client: client}
}

func (s *AttemptStore) Exists(ctx context.Context, userID, caseID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.scoredKey(userID, caseID)).Result()
	if err != nil {
		return false, fmt.Errorf("attempt exists: %w", err)
	}
	return n > 0, nil
}

func (s *AttemptStore) Append(ctx context.Context, record domain.AttemptRecord) error {
	if !record.IsReview {
		won, err := s.client.SetNX(ctx, s.scoredKey(record.UserID, record.CaseID), "1", 0).Result()
		if err != nil {
			return fmt.Errorf("attempt guard: %w", err)
		}
		if !won {
			return domain.ErrDuplicateAttempt
		}
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal attempt: %w", err)
	}
	if err := s.client.RPush(ctx, s.logKey(record.UserID, record.CaseID), payload).Err(); err != nil {
		return fmt.Errorf("append attempt: %w", err)
	}
	return nil
}

func (s *AttemptStore) scoredKey(userID, caseID string) string {
	return "attempt:scored:" + userID + ":" + caseID
}

func (s *AttemptStore) logKey(userID, caseID string) string {
	return "attempt:log:" + userID + ":" + caseID
}
