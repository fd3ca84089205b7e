package app

import (
	"context"
	"time"

	"medcase-engine/internal/domain"
)

// CaseCatalog provides read-only case definitions (from cache/backing store).
type CaseCatalog interface {
	GetCase(ctx context.Context, caseID string) (domain.Case, error)
}

// EventCatalog provides read-only event definitions.
type EventCatalog interface {
	GetEvent(ctx context.Context, eventID string) (domain.Event, error)
}

// LedgerStore holds per-user help-aid balances. TryConsume is a conditional
// compare-and-decrement: ok=false (not an error) when the pool is empty, so a
// race between two sessions of the same user can never drive a balance negative.
type LedgerStore interface {
	TryConsume(ctx context.Context, userID string, aid domain.AidType) (ok bool, remaining int, err error)
	Grant(ctx context.Context, userID string, aid domain.AidType, amount int) (remaining int, err error)
	Balance(ctx context.Context, userID string) (domain.HelpAidBalance, error)
}

// AttemptStore persists attempt records. Append must have insert-if-not-exists
// semantics for the first scoring record of a user+case pair; review records
// may accumulate freely.
type AttemptStore interface {
	Exists(ctx context.Context, userID, caseID string) (bool, error)
	Append(ctx context.Context, record domain.AttemptRecord) error
}

// ParticipationStore persists per-user event progress. Upsert is a
// compare-and-swap on the case index the caller read (NoParticipation when it
// read none): applied=false means another writer got there first, so two tabs
// recording the same case can never both fold their points in.
type ParticipationStore interface {
	Get(ctx context.Context, eventID, userID string) (domain.EventParticipation, bool, error)
	Upsert(ctx context.Context, participation domain.EventParticipation, expectedIndex int) (applied bool, err error)
}

// NoParticipation is the expectedIndex for an Upsert that must create the row.
const NoParticipation = -1

// RankingStore recomputes the event leaderboard after every score change.
// Ties break toward the earlier update time.
type RankingStore interface {
	Update(ctx context.Context, eventID, userID string, score int, at time.Time) (rank int, err error)
	Top(ctx context.Context, eventID string, limit int) ([]domain.RankingEntry, error)
}

// HintGateway requests an AI-tutor hint for a case. A credit is consumed before
// the call; failure must surface as an error, never as an empty success.
type HintGateway interface {
	GetHint(ctx context.Context, c domain.Case) (string, error)
}

// SessionRegistry tracks open assessment sessions (in-memory, Redis-marked, etc).
type SessionRegistry interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}
