package http

import (
	"errors"
	"log"
	"net/http"

	"livequiz/internal/domain"
)

// statusFor maps domain failures onto HTTP status codes. Anything outside
// the taxonomy is an internal error and keeps its cause off the wire.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrDuplicateRecord),
		errors.Is(err, domain.ErrSessionState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCodeSpaceExhausted),
		errors.Is(err, domain.ErrGeneratorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicDetail returns the message safe to show the caller. Internal errors
// are logged and replaced with a generic detail.
func publicDetail(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		return "internal error"
	}
	return err.Error()
}
