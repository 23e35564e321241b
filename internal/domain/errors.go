package domain

import "errors"

var (
	// ErrChallengeNotFound is returned when a challenge id does not exist.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrQuestionNotFound indicates a submitted question number is not part of the challenge.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrFlagNotFound indicates a flag row is missing.
	ErrFlagNotFound = errors.New("flag not found")
	// ErrWrongChallengeType is returned when a challenge is handled by another type.
	ErrWrongChallengeType = errors.New("challenge is not a subquestion challenge")
	// ErrUnknownChallengeType is returned when no implementation is registered for a type tag.
	ErrUnknownChallengeType = errors.New("unknown challenge type")
	// ErrDuplicateChallengeType is returned when a type id is registered twice.
	ErrDuplicateChallengeType = errors.New("challenge type already registered")
	// ErrUnknownFlagType is returned when no comparator exists for a flag type.
	ErrUnknownFlagType = errors.New("unknown flag type")
	// ErrNegativePoints rejects question entries with negative points.
	ErrNegativePoints = errors.New("question points must not be negative")
)
