// Package server provides the HTTP API for the cocktail generator.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/soul-spirits/internal/inventory"
	"github.com/jonathan/soul-spirits/internal/orchestrator"
	"github.com/jonathan/soul-spirits/internal/validation"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAtCapacity is returned when the server is already running its
	// maximum number of generations.
	ErrAtCapacity = errors.New("too many generations in progress, try again shortly")
	// ErrHistoryDisabled is returned by the history endpoints when no
	// database is configured.
	ErrHistoryDisabled = errors.New("generation history is not configured")
)

// ErrBadRequest indicates a malformed or incomplete request body
type ErrBadRequest struct {
	Field   string
	Message string
}

func (e *ErrBadRequest) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("bad request: %s", e.Message)
	}
	return fmt.Sprintf("bad request: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *validation.Error
	if errors.As(err, &verr) {
		if verr.Code == validation.CodeAgeRestricted {
			return http.StatusForbidden
		}
		return http.StatusUnprocessableEntity
	}

	var bad *ErrBadRequest
	switch {
	case errors.As(err, &bad), errors.Is(err, inventory.ErrEmptyOwner):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrNoRetryContext),
		errors.Is(err, orchestrator.ErrInvalidTransition),
		errors.Is(err, orchestrator.ErrGenerationInFlight):
		return http.StatusConflict
	case errors.Is(err, ErrAtCapacity):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns the machine-readable code sent alongside an error message.
func ErrorCode(err error) string {
	if code := validation.CodeOf(err); code != "" {
		return string(code)
	}

	var bad *ErrBadRequest
	switch {
	case errors.As(err, &bad), errors.Is(err, inventory.ErrEmptyOwner):
		return "BadRequest"
	case errors.Is(err, ErrSessionNotFound):
		return "SessionNotFound"
	case errors.Is(err, ErrHistoryDisabled):
		return "HistoryDisabled"
	case errors.Is(err, orchestrator.ErrNoRetryContext):
		return "NoRetryContext"
	case errors.Is(err, orchestrator.ErrInvalidTransition):
		return "InvalidTransition"
	case errors.Is(err, orchestrator.ErrGenerationInFlight):
		return "GenerationInFlight"
	case errors.Is(err, ErrAtCapacity):
		return "AtCapacity"
	default:
		return "Internal"
	}
}
