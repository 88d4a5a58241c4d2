package orchestrator

import "errors"

// FallbackMessage is surfaced when a failure carries no message of its own.
const FallbackMessage = "The spirits were silent. Please try again."

var (
	// ErrNoRetryContext is returned by Redo when no profile has been submitted.
	ErrNoRetryContext = errors.New("redo requires a previously submitted profile")
	// ErrGenerationInFlight is returned when a call arrives while a generation is running.
	ErrGenerationInFlight = errors.New("a generation is already in progress")
	// ErrInvalidTransition is returned when the call is not legal from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// errSilent stands in for a generator that returned neither a result nor an error.
	errSilent = errors.New("")
)

// messageFor returns the user-facing message for a generation failure.
func messageFor(err error) string {
	if err == nil || err.Error() == "" {
		return FallbackMessage
	}
	return err.Error()
}
