package app

import (
	"context"
	"fmt"

	"medcase-engine/internal/domain"
)

// ReviewGate classifies an attempt as first-scored or review. The verdict is
// computed from durable storage so a fresh browser session cannot re-earn
// points for an already-solved case.
type ReviewGate struct {
	attempts AttemptStore
}

func NewReviewGate(attempts AttemptStore) *ReviewGate {
	return &ReviewGate{attempts: attempts}
}

// Classify returns Review iff an attempt record already exists for user+case.
func (g *ReviewGate) Classify(ctx context.Context, userID, caseID string) (domain.AttemptClass, error) {
	exists, err := g.attempts.Exists(ctx, userID, caseID)
	if err != nil {
		return domain.FirstAttempt, fmt.Errorf("classify attempt: %w", err)
	}
	if exists {
		return domain.Review, nil
	}
	return domain.FirstAttempt, nil
}
