package tutor

import (
	"context"
	"errors"

	"medcase-engine/internal/domain"
)

// StaticGateway serves canned hints from case tips. Used in dev mode and tests
// so the engine runs without an API key.
type StaticGateway struct{}

func NewStaticGateway() *StaticGateway { return &StaticGateway{} }

func (g *StaticGateway) GetHint(_ context.Context, c domain.Case) (string, error) {
	for i, tip := range c.ShortTips {
		if i == c.CorrectOptionIndex {
			continue
		}
		if tip != "" {
			return tip, nil
		}
	}
	if c.Explanation != "" {
		return "Think about the mechanism: " + firstSentence(c.Explanation), nil
	}
	return "", errors.New("no hint material for case")
}

func firstSentence(s string) string {
	for i, r := range s {
		if r == '.' {
			return s[:i+1]
		}
	}
	return s
}

// FailingGateway always errors. Test double for the spent-credit path.
type FailingGateway struct{ Err error }

func (g *FailingGateway) GetHint(context.Context, domain.Case) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	return "", errors.New("tutor gateway unavailable")
}
