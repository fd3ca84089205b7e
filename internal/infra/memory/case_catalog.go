package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"medcase-engine/internal/domain"
)

// CaseLoader fetches case content from a backing store (e.g., document DB).
type CaseLoader interface {
	LoadCase(ctx context.Context, caseID string) (domain.Case, error)
}

// EventLoader fetches event definitions from a backing store.
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// CaseCatalog caches case definitions with TTL to avoid repeated DB hits.
type CaseCatalog struct {
	loader CaseLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedCase
}

type cachedCase struct {
	c         domain.Case
	expiresAt time.Time
}

func NewCaseCatalog(loader CaseLoader, ttl time.Duration) *CaseCatalog {
	return &CaseCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedCase),
	}
}

func (r *CaseCatalog) GetCase(ctx context.Context, caseID string) (domain.Case, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[caseID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.c, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(caseID, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[caseID]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.c, nil
		}
		r.mu.RUnlock()

		c, err := r.loader.LoadCase(ctx, caseID)
		if err != nil {
			return domain.Case{}, err
		}

		r.mu.Lock()
		r.cache[caseID] = cachedCase{c: c, expiresAt: now.Add(r.ttlWithJitter())}
		r.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return domain.Case{}, err
	}
	return result.(domain.Case), nil
}

func (r *CaseCatalog) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// EventCatalog caches event definitions with the same TTL discipline.
type EventCatalog struct {
	loader EventLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedEvent
}

type cachedEvent struct {
	event     domain.Event
	expiresAt time.Time
}

func NewEventCatalog(loader EventLoader, ttl time.Duration) *EventCatalog {
	return &EventCatalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedEvent),
	}
}

func (r *EventCatalog) GetEvent(ctx context.Context, eventID string) (domain.Event, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.event, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}
		r.mu.Lock()
		r.cache[eventID] = cachedEvent{event: event, expiresAt: r.clock().Add(r.ttl)}
		r.mu.Unlock()
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return result.(domain.Event), nil
}

// StaticCatalogLoader serves cases and events from in-memory maps (tests/demos).
type StaticCatalogLoader struct {
	cases  map[string]domain.Case
	events map[string]domain.Event
}

func NewStaticCatalogLoader(cases map[string]domain.Case, events map[string]domain.Event) *StaticCatalogLoader {
	return &StaticCatalogLoader{cases: cases, events: events}
}

func (l *StaticCatalogLoader) LoadCase(_ context.Context, caseID string) (domain.Case, error) {
	if c, ok := l.cases[caseID]; ok {
		return c, nil
	}
	return domain.Case{}, domain.ErrCaseNotFound
}

func (l *StaticCatalogLoader) LoadEvent(_ context.Context, eventID string) (domain.Event, error) {
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return domain.Event{}, domain.ErrEventNotFound
}
