// Package schemas provides JSON Schema validation for generated artifacts.
package schemas

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed cocktail_recipe.schema.json
var cocktailRecipeSchema []byte

var (
	recipeSchema     *gojsonschema.Schema
	recipeSchemaErr  error
	recipeSchemaOnce sync.Once
)

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, err.Field, err.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// Fields returns the failing field paths in report order.
func (ve *ValidationError) Fields() []string {
	fields := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		fields[i] = fe.Field
	}
	return fields
}

// CocktailRecipeSchema returns the embedded CocktailRecipe JSON Schema document.
func CocktailRecipeSchema() []byte {
	return cocktailRecipeSchema
}

// ValidateCocktailRecipe validates a JSON document against the embedded CocktailRecipe schema.
func ValidateCocktailRecipe(document []byte) error {
	recipeSchemaOnce.Do(func() {
		recipeSchema, recipeSchemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(cocktailRecipeSchema))
	})
	if recipeSchemaErr != nil {
		return &SchemaLoadError{
			Path:    "cocktail_recipe.schema.json",
			Message: "embedded schema is invalid",
			Cause:   recipeSchemaErr,
		}
	}

	result, err := recipeSchema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		// The document itself could not be decoded.
		return &ValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	return toValidationError(result)
}

// ValidateJSONFile validates a JSON file on disk against the CocktailRecipe schema.
func ValidateJSONFile(jsonPath string) error {
	absPath, err := filepath.Abs(jsonPath)
	if err != nil {
		return fmt.Errorf("failed to resolve JSON path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", absPath, err)
	}

	return ValidateCocktailRecipe(data)
}

// toValidationError converts a failed result into a ValidationError, or nil when valid.
func toValidationError(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}
	return validationErr
}
