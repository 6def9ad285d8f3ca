package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for a join code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrPlayerNotFound is returned when a connection acts before joining.
	ErrPlayerNotFound = errors.New("player not in session")
	// ErrNotHost is returned when a non-host connection invokes a host-only
	// operation.
	ErrNotHost = errors.New("host privileges required")
	// ErrInvalidInput flags a structurally or semantically invalid request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDuplicateAnswer is returned when a player already has an answer
	// recorded for the question.
	ErrDuplicateAnswer = errors.New("answer already recorded")
	// ErrDuplicateRecord is returned by stores when an insert violates a
	// uniqueness rule other than the answer triple, such as a reused session
	// code or a raced player name.
	ErrDuplicateRecord = errors.New("duplicate record")
	// ErrSessionState is returned when an operation is valid in general but
	// not in the session's current lifecycle state.
	ErrSessionState = errors.New("operation not allowed in current session state")
	// ErrCodeSpaceExhausted is returned when no unused join code could be
	// allocated within the attempt budget.
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique session code")
	// ErrGeneratorUnavailable is returned when quiz generation is requested
	// but no generation backend is configured.
	ErrGeneratorUnavailable = errors.New("quiz generator not configured")
)
