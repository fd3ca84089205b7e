package domain

import "time"

// AidType identifies one of the consumable help-aid credit pools.
type AidType string

const (
	AidElimination AidType = "elimination"
	AidSkip        AidType = "skip"
	AidAITutor     AidType = "ai_tutor"
)

// Valid reports whether the aid type is one of the three known pools.
func (a AidType) Valid() bool {
	switch a {
	case AidElimination, AidSkip, AidAITutor:
		return true
	}
	return false
}

// OptionCount is the fixed number of answer options per case.
const OptionCount = 4

// SkippedOption is the sentinel chosen-option index for a skipped case.
const SkippedOption = -1

// Case is a read-only medical case definition served by the catalog.
type Case struct {
	ID                 string              `json:"id"`
	BasePoints         int                 `json:"basePoints"`
	Options            [OptionCount]string `json:"options"`
	CorrectOptionIndex int                 `json:"correctOptionIndex"`
	EliminationPenalty int                 `json:"eliminationPenalty"`
	SkipPenalty        int                 `json:"skipPenalty"`
	Explanation        string              `json:"explanation"`
	ShortTips          [OptionCount]string `json:"shortTips"`
}

// ValidOption reports whether idx addresses one of the case's options.
func (c Case) ValidOption(idx int) bool {
	return idx >= 0 && idx < OptionCount
}

// Event is an ordered sequence of cases played for score and rank.
type Event struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	CaseIDs []string `json:"caseIds"`
}

// CaseCount returns the number of cases in the event.
func (e Event) CaseCount() int { return len(e.CaseIDs) }

// HelpAidBalance is the per-user stock of consumable credits.
// It is mutated only through conditional consume/grant store operations.
type HelpAidBalance struct {
	UserID             string `json:"userId"`
	EliminationCredits int    `json:"eliminationCredits"`
	SkipCredits        int    `json:"skipCredits"`
	AITutorCredits     int    `json:"aiTutorCredits"`
}

// Credits returns the balance for a single aid pool.
func (b HelpAidBalance) Credits(aid AidType) int {
	switch aid {
	case AidElimination:
		return b.EliminationCredits
	case AidSkip:
		return b.SkipCredits
	case AidAITutor:
		return b.AITutorCredits
	}
	return 0
}

// AttemptRecord is the append-only outcome of one case attempt.
// At most one scoring (non-review) record exists per user+case.
type AttemptRecord struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	CaseID            string    `json:"caseId"`
	ChosenOptionIndex int       `json:"chosenOptionIndex"` // SkippedOption when skipped
	IsCorrect         bool      `json:"isCorrect"`
	PointsAwarded     int       `json:"pointsAwarded"`
	IsReview          bool      `json:"isReview"`
	ConfidenceUsed    float64   `json:"confidenceUsed"`
	EliminationsUsed  int       `json:"eliminationsUsed"`
	SkipUsed          bool      `json:"skipUsed"`
	AITutorUsed       bool      `json:"aiTutorUsed"`
	AnsweredAt        time.Time `json:"answeredAt"`
}

// AttemptClass is the review-gate verdict for a user+case pair.
type AttemptClass int

const (
	FirstAttempt AttemptClass = iota
	Review
)

func (c AttemptClass) String() string {
	if c == Review {
		return "review"
	}
	return "first_attempt"
}

// ParticipationStatus tracks the lifecycle of one user's event run.
type ParticipationStatus string

const (
	StatusNotStarted ParticipationStatus = "not_started"
	StatusInProgress ParticipationStatus = "in_progress"
	StatusCompleted  ParticipationStatus = "completed"
)

// EventParticipation aggregates one user's progress through an event.
// CurrentCaseIndex is monotonic non-decreasing.
type EventParticipation struct {
	EventID          string              `json:"eventId"`
	UserID           string              `json:"userId"`
	CurrentCaseIndex int                 `json:"currentCaseIndex"`
	CasesCompleted   int                 `json:"casesCompleted"`
	CasesCorrect     int                 `json:"casesCorrect"`
	CurrentScore     int                 `json:"currentScore"`
	Status           ParticipationStatus `json:"status"`
	StartedAt        time.Time           `json:"startedAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// Accuracy is casesCorrect over casesCompleted, zero before any completion.
func (p EventParticipation) Accuracy() float64 {
	if p.CasesCompleted == 0 {
		return 0
	}
	return float64(p.CasesCorrect) / float64(p.CasesCompleted)
}

// RankingEntry is one row of an event leaderboard snapshot.
type RankingEntry struct {
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	Score     int       `json:"score"`
	Rank      int       `json:"rank"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CaseResult summarizes a finished attempt for clients and the event tracker.
type CaseResult struct {
	CaseID             string              `json:"caseId"`
	ChosenOptionIndex  int                 `json:"chosenOptionIndex"`
	IsCorrect          bool                `json:"isCorrect"`
	IsReview           bool                `json:"isReview"`
	PointsAwarded      int                 `json:"pointsAwarded"`
	CorrectOptionIndex int                 `json:"correctOptionIndex"`
	Explanation        string              `json:"explanation"`
	ShortTips          [OptionCount]string `json:"shortTips"`
}

// EventProgress is returned after every recorded case result.
type EventProgress struct {
	EventID        string  `json:"eventId"`
	NewScore       int     `json:"newScore"`
	NewRank        int     `json:"newRank"`
	Accuracy       float64 `json:"accuracy"`
	CasesCompleted int     `json:"casesCompleted"`
	CaseCount      int     `json:"caseCount"`
}
