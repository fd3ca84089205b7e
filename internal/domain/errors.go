package domain

import "errors"

var (
	// ErrCaseNotFound indicates the case content could not be loaded.
	ErrCaseNotFound = errors.New("case not found")
	// ErrEventNotFound indicates the event definition could not be loaded.
	ErrEventNotFound = errors.New("event not found")
	// ErrSessionNotFound is returned when an assessment session is unknown or already closed.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrParticipationNotFound is returned when a user acts on an event they never started.
	ErrParticipationNotFound = errors.New("event participation not found")
	// ErrInsufficientCredit means a help-aid action cannot proceed; callers disable
	// the action rather than treating this as fatal.
	ErrInsufficientCredit = errors.New("insufficient help-aid credits")
	// ErrInvalidTransition flags a session operation that is illegal in the current
	// state, e.g. submitting twice. An integration bug, reported loudly.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrInvalidOption flags a chosen option index outside the case's options or one
	// that was already eliminated.
	ErrInvalidOption = errors.New("invalid option index")
	// ErrNoEliminationTargets means every wrong option is already eliminated. No
	// credit is spent; callers disable the elimination action.
	ErrNoEliminationTargets = errors.New("no options left to eliminate")
	// ErrReviewMode is returned for aid actions that are disabled during review.
	ErrReviewMode = errors.New("action unavailable in review mode")
	// ErrEventIncomplete is returned when Finish is called before every case is done.
	ErrEventIncomplete = errors.New("event has uncompleted cases")
	// ErrDuplicateAttempt is returned by stores when a scoring record already
	// exists for the user+case pair; the caller downgrades to a review record.
	ErrDuplicateAttempt = errors.New("scoring attempt already recorded")
)
