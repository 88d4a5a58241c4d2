package recipe

import "fmt"

// GenerationError is returned when the text service fails or returns no usable payload.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recipe generation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("recipe generation failed: %s", e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// ParseError is returned when the payload does not have the CocktailRecipe shape.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("recipe parse failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("recipe parse failed: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}
