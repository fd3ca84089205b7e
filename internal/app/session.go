package app

import (
	"sync"

	"medcase-engine/internal/domain"
)

// SessionState is the lifecycle position of an assessment session.
type SessionState int

const (
	// StateAnalysis: case shown, no option chosen yet.
	StateAnalysis SessionState = iota
	// StateAnswering: an option is tentatively selected, not committed.
	StateAnswering
	// StateFeedback: submitted and scored, terminal.
	StateFeedback
)

func (s SessionState) String() string {
	switch s {
	case StateAnalysis:
		return "analysis"
	case StateAnswering:
		return "answering"
	case StateFeedback:
		return "feedback"
	}
	return "unknown"
}

// Session is the ephemeral state machine for a single case presentation.
// Local transitions (option selection, confidence) mutate only this struct;
// anything touching the ledger, the hint gateway, or durable attempt storage
// goes through the Engine, which owns those collaborators.
type Session struct {
	id       string
	userID   string
	caseData domain.Case
	isReview bool

	mu               sync.Mutex
	state            SessionState
	chosen           int
	confidence       float64
	eliminated       map[int]struct{}
	eliminationsUsed int
	hintText         string
	hintUsed         bool
}

func newSession(id, userID string, c domain.Case, isReview bool) *Session {
	return &Session{
		id:         id,
		userID:     userID,
		caseData:   c,
		isReview:   isReview,
		state:      StateAnalysis,
		chosen:     domain.SkippedOption,
		confidence: 1,
		eliminated: make(map[int]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// CaseID returns the case under assessment.
func (s *Session) CaseID() string { return s.caseData.ID }

// IsReview reports whether the session was opened in review mode.
func (s *Session) IsReview() bool { return s.isReview }

// Options returns the answer option texts. The correct index stays server-side
// until Feedback.
func (s *Session) Options() [domain.OptionCount]string { return s.caseData.Options }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HintText returns the stored tutor hint, empty until one was fetched.
func (s *Session) HintText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hintText
}

// EliminatedOptions returns a copy of the eliminated index set.
func (s *Session) EliminatedOptions() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.eliminated))
	for idx := range s.eliminated {
		out = append(out, idx)
	}
	return out
}

// SelectOption tentatively selects an option: Analysis|Answering -> Answering.
// Eliminated indices are rejected.
func (s *Session) SelectOption(idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFeedback {
		return domain.ErrInvalidTransition
	}
	if !s.caseData.ValidOption(idx) {
		return domain.ErrInvalidOption
	}
	if _, gone := s.eliminated[idx]; gone {
		return domain.ErrInvalidOption
	}
	s.chosen = idx
	s.state = StateAnswering
	return nil
}

// SetConfidence records the learner's declared certainty, clamped to [0,1].
// Valid in Analysis and Answering.
func (s *Session) SetConfidence(fraction float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFeedback {
		return domain.ErrInvalidTransition
	}
	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	s.confidence = fraction
	return nil
}

// hasEliminationTargets reports whether any non-correct, non-eliminated option
// remains. Checked before a credit is spent so an empty target set stays a no-op.
func (s *Session) hasEliminationTargets() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.eligibleLocked()) > 0
}

func (s *Session) eligibleLocked() []int {
	eligible := make([]int, 0, domain.OptionCount-1)
	for idx := 0; idx < domain.OptionCount; idx++ {
		if idx == s.caseData.CorrectOptionIndex {
			continue
		}
		if _, gone := s.eliminated[idx]; gone {
			continue
		}
		eligible = append(eligible, idx)
	}
	return eligible
}

// takeElimination removes one uniformly random eligible option, using intn as
// the randomness source. The correct option is never in the eligible set.
// Returns ok=false when nothing remains.
func (s *Session) takeElimination(intn func(n int) int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFeedback {
		return 0, false
	}
	eligible := s.eligibleLocked()
	if len(eligible) == 0 {
		return 0, false
	}
	idx := eligible[intn(len(eligible))]
	s.eliminated[idx] = struct{}{}
	s.eliminationsUsed++
	// A tentative selection that just got eliminated falls back to analysis.
	if s.state == StateAnswering && s.chosen == idx {
		s.chosen = domain.SkippedOption
		s.state = StateAnalysis
	}
	return idx, true
}

// submitSnapshot is the frozen view of session state used for scoring.
type submitSnapshot struct {
	chosen           int
	confidence       float64
	eliminationsUsed int
	hintUsed         bool
	skip             bool
}

// prepareSubmit validates submitAnswer(idx): only Answering -> Feedback is
// legal, and the index must match an available option. The state itself stays
// Answering so a persistence failure leaves the selection intact for retry.
func (s *Session) prepareSubmit(idx int) (submitSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAnswering {
		return submitSnapshot{}, domain.ErrInvalidTransition
	}
	if !s.caseData.ValidOption(idx) {
		return submitSnapshot{}, domain.ErrInvalidOption
	}
	if _, gone := s.eliminated[idx]; gone {
		return submitSnapshot{}, domain.ErrInvalidOption
	}
	s.chosen = idx
	return submitSnapshot{
		chosen:           idx,
		confidence:       s.confidence,
		eliminationsUsed: s.eliminationsUsed,
		hintUsed:         s.hintUsed,
	}, nil
}

// prepareSkip validates skip(): Analysis|Answering -> Feedback, never in review.
func (s *Session) prepareSkip() (submitSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFeedback {
		return submitSnapshot{}, domain.ErrInvalidTransition
	}
	if s.isReview {
		return submitSnapshot{}, domain.ErrReviewMode
	}
	return submitSnapshot{
		chosen:           domain.SkippedOption,
		confidence:       s.confidence,
		eliminationsUsed: s.eliminationsUsed,
		hintUsed:         s.hintUsed,
		skip:             true,
	}, nil
}

// finalize commits the terminal Feedback state once the attempt record landed.
func (s *Session) finalize(chosen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chosen = chosen
	s.state = StateFeedback
}

// canRequestHint gates a tutor-hint request: paid feature, first attempts only,
// and never after the case is answered.
func (s *Session) canRequestHint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isReview {
		return domain.ErrReviewMode
	}
	if s.state == StateFeedback {
		return domain.ErrInvalidTransition
	}
	return nil
}

// storeHint records a successfully fetched hint.
func (s *Session) storeHint(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hintText = text
	s.hintUsed = true
}

// cachedHint returns an already-fetched hint, if any. Re-serving it locally
// avoids burning a second credit on an idempotent client retry.
func (s *Session) cachedHint() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hintUsed && s.hintText != "" {
		return s.hintText, true
	}
	return "", false
}
