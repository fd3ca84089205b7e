package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"medcase-engine/internal/domain"
)

// Participations are stored as: HSET participation:{eventID}:{userID}
// with fields caseIndex (for the conditional write) and data (full JSON).
// The write runs as a Lua compare-and-swap against the case index the caller
// read ('-1' = row must not exist), so of two tabs racing to record the same
// case exactly one write lands and the index can never roll backwards.
var upsertScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'caseIndex')
if not current then
  if ARGV[1] ~= '-1' then
    return 0
  end
elseif current ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'caseIndex', ARGV[2], 'data', ARGV[3])
return 1
`)

// ParticipationStore is a Redis implementation of app.ParticipationStore.
type ParticipationStore struct {
	client *redis.Client
}

func NewParticipationStore(client *redis.Client) *ParticipationStore {
	return &ParticipationStore{client: client}
}

func (s *ParticipationStore) Get(ctx context.Context, eventID, userID string) (domain.EventParticipation, bool, error) {
	raw, err := s.client.HGet(ctx, s.key(eventID, userID), "data").Result()
	if err == redis.Nil {
		return domain.EventParticipation{}, false, nil
	}
	if err != nil {
		return domain.EventParticipation{}, false, fmt.Errorf("participation read: %w", err)
	}

	var participation domain.EventParticipation
	if err := json.Unmarshal([]byte(raw), &participation); err != nil {
		return domain.EventParticipation{}, false, fmt.Errorf("unmarshal participation: %w", err)
	}
	return participation, true, nil
}

func (s *ParticipationStore) Upsert(ctx context.Context, participation domain.EventParticipation, expectedIndex int) (bool, error) {
	payload, err := json.Marshal(participation)
	if err != nil {
		return false, fmt.Errorf("marshal participation: %w", err)
	}

	key := s.key(participation.EventID, participation.UserID)
	applied, err := upsertScript.Run(ctx, s.client, []string{key},
		strconv.Itoa(expectedIndex), strconv.Itoa(participation.CurrentCaseIndex), string(payload)).Int()
	if err != nil {
		return false, fmt.Errorf("participation write: %w", err)
	}
	return applied == 1, nil
}

func (s *ParticipationStore) key(eventID, userID string) string {
	return "participation:" + eventID + ":" + userID
}
