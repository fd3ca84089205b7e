package app

import (
	"context"
	"fmt"
	"time"

	"medcase-engine/internal/domain"
)

// ProgressTracker sequences one user's run through a timed event and keeps
// the aggregate score, accuracy, and rank current.
type ProgressTracker struct {
	events         EventCatalog
	participations ParticipationStore
	rankings       RankingStore
	now            func() time.Time
}

func NewProgressTracker(events EventCatalog, participations ParticipationStore, rankings RankingStore) *ProgressTracker {
	return &ProgressTracker{
		events:         events,
		participations: participations,
		rankings:       rankings,
		now:            time.Now,
	}
}

// NewProgressTrackerWithClock is test-only for deterministic timestamps.
func NewProgressTrackerWithClock(events EventCatalog, participations ParticipationStore, rankings RankingStore, now func() time.Time) *ProgressTracker {
	t := NewProgressTracker(events, participations, rankings)
	t.now = now
	return t
}

// Start creates an in-progress participation at case index 0, or resumes an
// existing one untouched. Calling it twice never resets progress.
func (t *ProgressTracker) Start(ctx context.Context, eventID, userID string) (domain.EventParticipation, error) {
	if _, err := t.events.GetEvent(ctx, eventID); err != nil {
		return domain.EventParticipation{}, err
	}

	existing, ok, err := t.participations.Get(ctx, eventID, userID)
	if err != nil {
		return domain.EventParticipation{}, fmt.Errorf("load participation: %w", err)
	}
	if ok {
		return existing, nil
	}

	now := t.now()
	participation := domain.EventParticipation{
		EventID:   eventID,
		UserID:    userID,
		Status:    domain.StatusInProgress,
		StartedAt: now,
		UpdatedAt: now,
	}
	applied, err := t.participations.Upsert(ctx, participation, NoParticipation)
	if err != nil {
		return domain.EventParticipation{}, fmt.Errorf("create participation: %w", err)
	}
	if !applied {
		// Another tab created the row between our read and write; resume theirs.
		existing, ok, err := t.participations.Get(ctx, eventID, userID)
		if err != nil || !ok {
			return domain.EventParticipation{}, fmt.Errorf("reload participation: %w", err)
		}
		return existing, nil
	}
	return participation, nil
}

// CurrentCaseID returns the case the participation points at, or ok=false when
// the run is past the final case.
func (t *ProgressTracker) CurrentCaseID(ctx context.Context, eventID, userID string) (string, bool, error) {
	event, err := t.events.GetEvent(ctx, eventID)
	if err != nil {
		return "", false, err
	}
	participation, ok, err := t.participations.Get(ctx, eventID, userID)
	if err != nil {
		return "", false, fmt.Errorf("load participation: %w", err)
	}
	if !ok {
		return "", false, domain.ErrParticipationNotFound
	}
	if participation.CurrentCaseIndex >= event.CaseCount() {
		return "", false, nil
	}
	return event.CaseIDs[participation.CurrentCaseIndex], true, nil
}

// RecordCaseResult folds one finished assessment into the running totals,
// advances the case index by exactly one, and recomputes the rank. timeSpent
// is advisory client-side sampling and is not persisted.
func (t *ProgressTracker) RecordCaseResult(ctx context.Context, eventID, userID string, result domain.CaseResult, timeSpent time.Duration) (domain.EventProgress, error) {
	_ = timeSpent

	event, err := t.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.EventProgress{}, err
	}
	participation, ok, err := t.participations.Get(ctx, eventID, userID)
	if err != nil {
		return domain.EventProgress{}, fmt.Errorf("load participation: %w", err)
	}
	if !ok {
		return domain.EventProgress{}, domain.ErrParticipationNotFound
	}
	if participation.Status == domain.StatusCompleted {
		return domain.EventProgress{}, domain.ErrInvalidTransition
	}
	if participation.CurrentCaseIndex >= event.CaseCount() {
		return domain.EventProgress{}, domain.ErrInvalidTransition
	}

	readIndex := participation.CurrentCaseIndex
	participation.CasesCompleted++
	if result.IsCorrect {
		participation.CasesCorrect++
	}
	participation.CurrentScore += result.PointsAwarded
	participation.CurrentCaseIndex++
	participation.UpdatedAt = t.now()

	applied, err := t.participations.Upsert(ctx, participation, readIndex)
	if err != nil {
		return domain.EventProgress{}, fmt.Errorf("save participation: %w", err)
	}
	if !applied {
		// A concurrent tab recorded this case first; its write stands.
		return domain.EventProgress{}, domain.ErrInvalidTransition
	}

	rank, err := t.rankings.Update(ctx, eventID, userID, participation.CurrentScore, participation.UpdatedAt)
	if err != nil {
		return domain.EventProgress{}, fmt.Errorf("recompute ranking: %w", err)
	}

	return domain.EventProgress{
		EventID:        eventID,
		NewScore:       participation.CurrentScore,
		NewRank:        rank,
		Accuracy:       participation.Accuracy(),
		CasesCompleted: participation.CasesCompleted,
		CaseCount:      event.CaseCount(),
	}, nil
}

// Finish marks the run completed. Only legal once the case index reached the
// event's case count; anything earlier is an integration error.
func (t *ProgressTracker) Finish(ctx context.Context, eventID, userID string) (domain.EventParticipation, error) {
	event, err := t.events.GetEvent(ctx, eventID)
	if err != nil {
		return domain.EventParticipation{}, err
	}
	participation, ok, err := t.participations.Get(ctx, eventID, userID)
	if err != nil {
		return domain.EventParticipation{}, fmt.Errorf("load participation: %w", err)
	}
	if !ok {
		return domain.EventParticipation{}, domain.ErrParticipationNotFound
	}
	if participation.CurrentCaseIndex != event.CaseCount() {
		return domain.EventParticipation{}, domain.ErrEventIncomplete
	}
	if participation.Status == domain.StatusCompleted {
		return participation, nil
	}

	participation.Status = domain.StatusCompleted
	participation.UpdatedAt = t.now()
	// The index is final here, so the swap only loses to an identical Finish.
	if _, err := t.participations.Upsert(ctx, participation, participation.CurrentCaseIndex); err != nil {
		return domain.EventParticipation{}, fmt.Errorf("save participation: %w", err)
	}
	return participation, nil
}

// Leaderboard returns the top-n ranking snapshot for an event.
func (t *ProgressTracker) Leaderboard(ctx context.Context, eventID string, n int) ([]domain.RankingEntry, error) {
	return t.rankings.Top(ctx, eventID, n)
}
