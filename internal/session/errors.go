package session

import "errors"

var (
	// ErrSessionNotFound is returned when a session id does not resolve.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// session's current status (submit on paused, navigate on completed,
	// double-pause, and so on).
	ErrInvalidState = errors.New("operation invalid for session state")

	// ErrIndexOutOfRange is returned by Jump for a target outside
	// [0, len(question_ids)).
	ErrIndexOutOfRange = errors.New("question index out of range")

	// ErrInvalidFilter is returned when a session filter has no resolvable
	// hierarchy scope.
	ErrInvalidFilter = errors.New("invalid session filter")

	// ErrConcurrentModification is returned when a session write loses the
	// compare-and-swap race. The engine retries once internally before
	// surfacing this; callers seeing it should re-read and retry.
	ErrConcurrentModification = errors.New("session modified concurrently")
)
