package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medcase-engine/internal/app"
	"medcase-engine/internal/domain"
	"medcase-engine/internal/infra/memory"
)

func newTracker(t *testing.T) (*app.ProgressTracker, *clock) {
	t.Helper()
	loader := memory.NewStaticCatalogLoader(nil, map[string]domain.Event{
		"event-1": {ID: "event-1", Title: "Sprint", CaseIDs: []string{"case-1", "case-2"}},
	})
	c := &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tracker := app.NewProgressTrackerWithClock(
		memory.NewEventCatalog(loader, 5*time.Minute),
		memory.NewParticipationStore(),
		memory.NewRankingStore(),
		c.Now,
	)
	return tracker, c
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func correctResult(points int) domain.CaseResult {
	return domain.CaseResult{IsCorrect: true, PointsAwarded: points}
}

func TestStartIsIdempotent(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	first, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, first.Status)
	assert.Zero(t, first.CurrentCaseIndex)

	_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(50), time.Second)
	require.NoError(t, err)

	resumed, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, resumed.CurrentCaseIndex, "second start resumes, never resets")
	assert.Equal(t, 50, resumed.CurrentScore)
}

func TestRecordCaseResultAggregates(t *testing.T) {
	tracker, c := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)

	progress, err := tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(80), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 80, progress.NewScore)
	assert.Equal(t, 1, progress.NewRank)
	assert.InDelta(t, 1.0, progress.Accuracy, 1e-9)
	assert.Equal(t, 1, progress.CasesCompleted)
	assert.Equal(t, 2, progress.CaseCount)

	c.Advance(time.Minute)
	progress, err = tracker.RecordCaseResult(ctx, "event-1", "u1",
		domain.CaseResult{IsCorrect: false, PointsAwarded: 0}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 80, progress.NewScore)
	assert.InDelta(t, 0.5, progress.Accuracy, 1e-9)
}

func TestRecordPastEndRejected(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(10), time.Second)
		require.NoError(t, err)
	}

	_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(10), time.Second)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestFinishRequiresAllCases(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)

	_, err = tracker.Finish(ctx, "event-1", "u1")
	assert.ErrorIs(t, err, domain.ErrEventIncomplete)

	for i := 0; i < 2; i++ {
		_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(10), time.Second)
		require.NoError(t, err)
	}

	done, err := tracker.Finish(ctx, "event-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)

	// Finishing again is a no-op, recording again is not.
	_, err = tracker.Finish(ctx, "event-1", "u1")
	require.NoError(t, err)
	_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(10), time.Second)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRankingTieBreaksByEarlierFinish(t *testing.T) {
	tracker, c := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)
	_, err = tracker.Start(ctx, "event-1", "u2")
	require.NoError(t, err)

	progress, err := tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(100), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.NewRank)

	c.Advance(time.Minute)
	progress, err = tracker.RecordCaseResult(ctx, "event-1", "u2", correctResult(100), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.NewRank, "same score, later update ranks below")

	top, err := tracker.Leaderboard(ctx, "event-1", 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "u1", top[0].UserID)
	assert.Equal(t, "u2", top[1].UserID)
}

// contestedParticipationStore rejects one write, the way the conditional
// upsert does when another tab recorded the same case first.
type contestedParticipationStore struct {
	app.ParticipationStore
	rejectNext bool
}

func (s *contestedParticipationStore) Upsert(ctx context.Context, p domain.EventParticipation, expectedIndex int) (bool, error) {
	if s.rejectNext {
		s.rejectNext = false
		return false, nil
	}
	return s.ParticipationStore.Upsert(ctx, p, expectedIndex)
}

func TestRecordLosingWriteRejected(t *testing.T) {
	loader := memory.NewStaticCatalogLoader(nil, map[string]domain.Event{
		"event-1": {ID: "event-1", Title: "Sprint", CaseIDs: []string{"case-1", "case-2"}},
	})
	participations := &contestedParticipationStore{ParticipationStore: memory.NewParticipationStore()}
	tracker := app.NewProgressTracker(
		memory.NewEventCatalog(loader, 5*time.Minute),
		participations,
		memory.NewRankingStore(),
	)
	ctx := context.Background()

	_, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)

	participations.rejectNext = true
	_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(80), time.Second)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "losing the index swap surfaces loudly")

	// The winning tab's state is untouched; the next record works normally.
	progress, err := tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(50), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 50, progress.NewScore)
	assert.Equal(t, 1, progress.CasesCompleted)
}

func TestCurrentCaseIDWalksEvent(t *testing.T) {
	tracker, _ := newTracker(t)
	ctx := context.Background()

	_, err := tracker.Start(ctx, "event-1", "u1")
	require.NoError(t, err)

	caseID, ok, err := tracker.CurrentCaseID(ctx, "event-1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "case-1", caseID)

	_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(10), time.Second)
	require.NoError(t, err)

	caseID, ok, err = tracker.CurrentCaseID(ctx, "event-1", "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "case-2", caseID)

	_, err = tracker.RecordCaseResult(ctx, "event-1", "u1", correctResult(10), time.Second)
	require.NoError(t, err)

	_, ok, err = tracker.CurrentCaseID(ctx, "event-1", "u1")
	require.NoError(t, err)
	assert.False(t, ok, "past the final case")
}
