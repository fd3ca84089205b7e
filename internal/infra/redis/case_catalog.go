package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"medcase-engine/internal/domain"
	"medcase-engine/internal/infra/memory"
)

// CaseCatalog caches case JSON in Redis (SET case:{caseID}) and falls back to
// a loader on cache miss. The correct index and penalties never leave the
// server; clients only ever see what the session hands them.
type CaseCatalog struct {
	client *redis.Client
	loader memory.CaseLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewCaseCatalog(client *redis.Client, loader memory.CaseLoader, ttl time.Duration) *CaseCatalog {
	return &CaseCatalog{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *CaseCatalog) GetCase(ctx context.Context, caseID string) (domain.Case, error) {
	if c, ok := r.cached(ctx, caseID); ok {
		return c, nil
	}

	result, err, _ := r.sf.Do(caseID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if c, ok := r.cached(ctx, caseID); ok {
			return c, nil
		}

		c, err := r.loader.LoadCase(ctx, caseID)
		if err != nil {
			return domain.Case{}, err
		}

		if payload, err := json.Marshal(c); err == nil {
			_ = r.client.Set(ctx, r.key(caseID), payload, r.ttlWithJitter()).Err()
		}
		return c, nil
	})
	if err != nil {
		return domain.Case{}, err
	}
	return result.(domain.Case), nil
}

func (r *CaseCatalog) cached(ctx context.Context, caseID string) (domain.Case, bool) {
	raw, err := r.client.Get(ctx, r.key(caseID)).Result()
	if err != nil {
		return domain.Case{}, false
	}
	var c domain.Case
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return domain.Case{}, false
	}
	return c, true
}

func (r *CaseCatalog) key(caseID string) string {
	return "case:" + caseID
}

func (r *CaseCatalog) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// EventCatalog caches event JSON in Redis with the same discipline.
type EventCatalog struct {
	client *redis.Client
	loader memory.EventLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewEventCatalog(client *redis.Client, loader memory.EventLoader, ttl time.Duration) *EventCatalog {
	return &EventCatalog{client: client, loader: loader, ttl: ttl}
}

func (r *EventCatalog) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	raw, err := r.client.Get(ctx, r.key(eventID)).Result()
	if err == nil {
		var event domain.Event
		if err := json.Unmarshal([]byte(raw), &event); err == nil {
			return event, nil
		}
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}
		if payload, err := json.Marshal(event); err == nil {
			_ = r.client.Set(ctx, r.key(eventID), payload, r.ttl).Err()
		}
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

func (r *EventCatalog) key(eventID string) string {
	return "event:" + eventID
}
