// Package recipe turns a composed instruction into a validated CocktailRecipe
// using schema-constrained text generation.
package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/jonathan/soul-spirits/internal/composer"
	"github.com/jonathan/soul-spirits/internal/llm"
	"github.com/jonathan/soul-spirits/internal/schemas"
	"github.com/jonathan/soul-spirits/internal/types"
)

// TextGenerator produces a JSON document constrained by a response schema.
// llm.Client satisfies it.
type TextGenerator interface {
	GenerateJSON(ctx context.Context, req llm.JSONRequest) (string, error)
}

// Generator generates cocktail recipes. It never retries.
type Generator struct {
	text TextGenerator
	tier llm.ModelTier
}

// NewGenerator creates a Generator backed by text.
func NewGenerator(text TextGenerator) *Generator {
	return &Generator{text: text, tier: llm.TierStandard}
}

// Generate requests a recipe for instruction and validates the response
// against the CocktailRecipe schema before decoding it.
func (g *Generator) Generate(ctx context.Context, instruction string) (*types.CocktailRecipe, error) {
	payload, err := g.text.GenerateJSON(ctx, llm.JSONRequest{
		Prompt:            instruction,
		SystemInstruction: composer.SystemInstruction(),
		Schema:            schemas.RecipeResponseSchema(),
		Tier:              g.tier,
	})
	if err != nil {
		return nil, &GenerationError{Message: "text service call failed", Cause: err}
	}
	if strings.TrimSpace(payload) == "" {
		return nil, &GenerationError{Message: "no recipe generated"}
	}

	return Parse([]byte(payload))
}

// Parse validates and decodes a recipe JSON document.
func Parse(payload []byte) (*types.CocktailRecipe, error) {
	if err := schemas.ValidateCocktailRecipe(payload); err != nil {
		var ve *schemas.ValidationError
		if errors.As(err, &ve) {
			return nil, &ParseError{Message: "response does not match the recipe shape at " + strings.Join(ve.Fields(), ", "), Cause: err}
		}
		return nil, &ParseError{Message: "response could not be validated", Cause: err}
	}

	var recipe types.CocktailRecipe
	if err := json.Unmarshal(payload, &recipe); err != nil {
		return nil, &ParseError{Message: "failed to decode recipe", Cause: err}
	}
	return &recipe, nil
}
