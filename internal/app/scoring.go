package app

import (
	"math"

	"medcase-engine/internal/domain"
)

// ScoreInput carries everything the scoring function needs about one attempt.
// Confidence is a fraction in [0,1]; transports convert their UI scale before
// it ever reaches this package.
type ScoreInput struct {
	Case              domain.Case
	IsReview          bool
	ChosenOptionIndex int
	Confidence        float64
	EliminationsUsed  int
	SkipUsed          bool
}

// ScoreResult is the deterministic outcome of scoring one attempt.
type ScoreResult struct {
	IsCorrect bool
	Points    int
}

// Score computes awarded points for a case attempt. Pure, no side effects.
//
// Review attempts and skips are always worth zero so neither can be used to
// farm rank. A correct first attempt earns basePoints weighted by declared
// confidence, minus the per-case penalty for each elimination used, floored
// at zero.
func Score(in ScoreInput) ScoreResult {
	isCorrect := in.ChosenOptionIndex == in.Case.CorrectOptionIndex

	if in.IsReview {
		return ScoreResult{IsCorrect: isCorrect}
	}
	if in.SkipUsed || in.ChosenOptionIndex == domain.SkippedOption {
		return ScoreResult{IsCorrect: false}
	}
	if !isCorrect {
		return ScoreResult{}
	}

	raw := int(math.Round(float64(in.Case.BasePoints) * in.Confidence))
	penalty := in.Case.EliminationPenalty * in.EliminationsUsed
	if in.SkipUsed {
		penalty += in.Case.SkipPenalty
	}

	points := raw - penalty
	if points < 0 {
		points = 0
	}
	return ScoreResult{IsCorrect: true, Points: points}
}
