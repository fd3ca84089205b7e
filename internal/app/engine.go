package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"medcase-engine/internal/domain"
)

// Engine wires the assessment session state machine to the help-aid ledger,
// the review gate, the tutor gateway, and durable attempt storage.
type Engine struct {
	catalog  CaseCatalog
	attempts AttemptStore
	ledger   LedgerStore
	hints    HintGateway
	sessions SessionRegistry
	gate     *ReviewGate
	now      func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewEngine(catalog CaseCatalog, attempts AttemptStore, ledger LedgerStore, hints HintGateway, sessions SessionRegistry) *Engine {
	return &Engine{
		catalog:  catalog,
		attempts: attempts,
		ledger:   ledger,
		hints:    hints,
		sessions: sessions,
		gate:     NewReviewGate(attempts),
		now:      time.Now,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewEngineWithClock is test-only for deterministic timestamps and eliminations.
func NewEngineWithClock(catalog CaseCatalog, attempts AttemptStore, ledger LedgerStore, hints HintGateway, sessions SessionRegistry, now func() time.Time, seed int64) *Engine {
	e := NewEngine(catalog, attempts, ledger, hints, sessions)
	e.now = now
	e.rnd = rand.New(rand.NewSource(seed))
	return e
}

// OpenSession loads the case, classifies the attempt through the review gate,
// and registers a fresh session in Analysis state.
func (e *Engine) OpenSession(ctx context.Context, userID, caseID string) (*Session, error) {
	c, err := e.catalog.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	class, err := e.gate.Classify(ctx, userID, caseID)
	if err != nil {
		return nil, err
	}

	session := newSession(uuid.NewString(), userID, c, class == domain.Review)
	e.sessions.Put(session)
	return session, nil
}

// Session looks up an open session by ID.
func (e *Engine) Session(sessionID string) (*Session, error) {
	session, ok := e.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// CloseSession drops a session from the registry, e.g. after Feedback was
// consumed or the client navigated away.
func (e *Engine) CloseSession(sessionID string) {
	e.sessions.Delete(sessionID)
}

// Balance reads the caller's help-aid balance.
func (e *Engine) Balance(ctx context.Context, userID string) (domain.HelpAidBalance, error) {
	return e.ledger.Balance(ctx, userID)
}

// RequestElimination removes one random wrong option. Free during review;
// otherwise gated on an elimination credit. Returns the eliminated index and
// the remaining credits (-1 when no credit was spent).
func (e *Engine) RequestElimination(ctx context.Context, sessionID string) (eliminated int, remaining int, err error) {
	session, err := e.Session(sessionID)
	if err != nil {
		return 0, 0, err
	}
	if session.State() == StateFeedback {
		return 0, 0, domain.ErrInvalidTransition
	}
	if !session.hasEliminationTargets() {
		// All wrong options already gone; spending a credit would buy nothing.
		return 0, 0, domain.ErrNoEliminationTargets
	}

	remaining = -1
	if !session.IsReview() {
		ok, left, err := e.ledger.TryConsume(ctx, session.UserID(), domain.AidElimination)
		if err != nil {
			return 0, 0, fmt.Errorf("consume elimination credit: %w", err)
		}
		if !ok {
			return 0, 0, domain.ErrInsufficientCredit
		}
		remaining = left
	}

	idx, ok := session.takeElimination(e.intn)
	if !ok {
		// The pre-check held the targets; losing them here means the session
		// reached Feedback concurrently. The spent credit is not refunded,
		// matching the hint-gateway policy.
		return 0, remaining, domain.ErrInvalidTransition
	}
	return idx, remaining, nil
}

// RequestHint consumes an AI-tutor credit and only then calls the gateway.
// Unavailable during review. On gateway failure the credit stays spent; the
// caller surfaces a retry affordance.
func (e *Engine) RequestHint(ctx context.Context, sessionID string) (string, error) {
	session, err := e.Session(sessionID)
	if err != nil {
		return "", err
	}
	if err := session.canRequestHint(); err != nil {
		return "", err
	}
	if hint, ok := session.cachedHint(); ok {
		return hint, nil
	}

	ok, _, err := e.ledger.TryConsume(ctx, session.UserID(), domain.AidAITutor)
	if err != nil {
		return "", fmt.Errorf("consume tutor credit: %w", err)
	}
	if !ok {
		return "", domain.ErrInsufficientCredit
	}

	hint, err := e.hints.GetHint(ctx, session.caseData)
	if err != nil {
		return "", fmt.Errorf("tutor hint: %w", err)
	}
	session.storeHint(hint)
	return hint, nil
}

// Submit commits submitAnswer(idx): classifies the attempt through the review
// gate, scores it, appends the attempt record, and transitions to Feedback.
// A client retry after a successful submission classifies as Review and yields
// zero points, so double-scoring is structurally impossible. On a persistence
// failure the session stays in Answering with the selection intact.
func (e *Engine) Submit(ctx context.Context, sessionID string, idx int) (domain.CaseResult, error) {
	session, err := e.Session(sessionID)
	if err != nil {
		return domain.CaseResult{}, err
	}
	snapshot, err := session.prepareSubmit(idx)
	if err != nil {
		return domain.CaseResult{}, err
	}
	return e.commit(ctx, session, snapshot)
}

// Skip consumes a skip credit and resolves the case as unanswered for zero
// points. Rejected during review; aborted with no state change when the
// credit pool is empty.
func (e *Engine) Skip(ctx context.Context, sessionID string) (domain.CaseResult, error) {
	session, err := e.Session(sessionID)
	if err != nil {
		return domain.CaseResult{}, err
	}
	snapshot, err := session.prepareSkip()
	if err != nil {
		return domain.CaseResult{}, err
	}

	ok, _, err := e.ledger.TryConsume(ctx, session.UserID(), domain.AidSkip)
	if err != nil {
		return domain.CaseResult{}, fmt.Errorf("consume skip credit: %w", err)
	}
	if !ok {
		return domain.CaseResult{}, domain.ErrInsufficientCredit
	}
	return e.commit(ctx, session, snapshot)
}

func (e *Engine) commit(ctx context.Context, session *Session, snapshot submitSnapshot) (domain.CaseResult, error) {
	// Re-classify at submit time: a record written by a concurrent tab or an
	// earlier retried submission turns this attempt into a review.
	class, err := e.gate.Classify(ctx, session.UserID(), session.CaseID())
	if err != nil {
		return domain.CaseResult{}, err
	}
	isReview := session.IsReview() || class == domain.Review

	scored := Score(ScoreInput{
		Case:              session.caseData,
		IsReview:          isReview,
		ChosenOptionIndex: snapshot.chosen,
		Confidence:        snapshot.confidence,
		EliminationsUsed:  snapshot.eliminationsUsed,
		SkipUsed:          snapshot.skip,
	})

	record := domain.AttemptRecord{
		ID:                uuid.NewString(),
		UserID:            session.UserID(),
		CaseID:            session.CaseID(),
		ChosenOptionIndex: snapshot.chosen,
		IsCorrect:         scored.IsCorrect,
		PointsAwarded:     scored.Points,
		IsReview:          isReview,
		ConfidenceUsed:    snapshot.confidence,
		EliminationsUsed:  snapshot.eliminationsUsed,
		SkipUsed:          snapshot.skip,
		AITutorUsed:       snapshot.hintUsed,
		AnsweredAt:        e.now(),
	}
	if err := e.attempts.Append(ctx, record); err != nil {
		if errors.Is(err, domain.ErrDuplicateAttempt) && !isReview {
			// Another tab won the insert-if-not-exists race. Downgrade this
			// attempt to a zero-point review record instead of double-scoring.
			isReview = true
			scored = Score(ScoreInput{
				Case:              session.caseData,
				IsReview:          true,
				ChosenOptionIndex: snapshot.chosen,
				Confidence:        snapshot.confidence,
				EliminationsUsed:  snapshot.eliminationsUsed,
				SkipUsed:          snapshot.skip,
			})
			record.IsReview = true
			record.IsCorrect = scored.IsCorrect
			record.PointsAwarded = scored.Points
			if err := e.attempts.Append(ctx, record); err != nil {
				return domain.CaseResult{}, fmt.Errorf("append attempt record: %w", err)
			}
		} else {
			// Session stays pre-Feedback; the user retries without losing state.
			return domain.CaseResult{}, fmt.Errorf("append attempt record: %w", err)
		}
	}

	session.finalize(snapshot.chosen)

	c := session.caseData
	return domain.CaseResult{
		CaseID:             c.ID,
		ChosenOptionIndex:  snapshot.chosen,
		IsCorrect:          scored.IsCorrect,
		IsReview:           isReview,
		PointsAwarded:      scored.Points,
		CorrectOptionIndex: c.CorrectOptionIndex,
		Explanation:        c.Explanation,
		ShortTips:          c.ShortTips,
	}, nil
}

func (e *Engine) intn(n int) int {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	return e.rnd.Intn(n)
}
