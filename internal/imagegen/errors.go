package imagegen

import "fmt"

// GenerationError is returned when the image service fails or the response
// carries no inline image payload.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("image generation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("image generation failed: %s", e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
