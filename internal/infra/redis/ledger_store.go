package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"medcase-engine/internal/domain"
)

// Balances are stored as: HSET ledger:{userID} {aidType} {credits}
// The decrement runs as a Lua script so "check > 0 then decrement" is atomic
// on the server; two tabs racing the last credit can never drive it negative.
var consumeScript = redis.NewScript(`
local credits = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if credits <= 0 then
  return -1
end
return redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
`)

// LedgerStore is a Redis implementation of app.LedgerStore.
type LedgerStore struct {
	client *redis.Client
}

func NewLedgerStore(client *redis.Client) *LedgerStore {
	return &LedgerStore{client: client}
}

func (s *LedgerStore) TryConsume(ctx context.Context, userID string, aid domain.AidType) (bool, int, error) {
	if !aid.Valid() {
		return false, 0, domain.ErrInsufficientCredit
	}

	remaining, err := consumeScript.Run(ctx, s.client, []string{s.key(userID)}, string(aid)).Int()
	if err != nil {
		return false, 0, fmt.Errorf("ledger decrement: %w", err)
	}
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

func (s *LedgerStore) Grant(ctx context.Context, userID string, aid domain.AidType, amount int) (int, error) {
	if !aid.Valid() || amount < 0 {
		return 0, domain.ErrInsufficientCredit
	}

	remaining, err := s.client.HIncrBy(ctx, s.key(userID), string(aid), int64(amount)).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger grant: %w", err)
	}
	return int(remaining), nil
}

func (s *LedgerStore) Balance(ctx context.Context, userID string) (domain.HelpAidBalance, error) {
	fields, err := s.client.HGetAll(ctx, s.key(userID)).Result()
	if err != nil {
		return domain.HelpAidBalance{}, fmt.Errorf("ledger read: %w", err)
	}

	balance := domain.HelpAidBalance{UserID: userID}
	for field, raw := range fields {
		credits, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		switch domain.AidType(field) {
		case domain.AidElimination:
			balance.EliminationCredits = credits
		case domain.AidSkip:
			balance.SkipCredits = credits
		case domain.AidAITutor:
			balance.AITutorCredits = credits
		}
	}
	return balance, nil
}

func (s *LedgerStore) key(userID string) string {
	return "ledger:" + userID
}
