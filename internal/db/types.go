package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/soul-spirits/internal/types"
)

// Attempt kinds stored with each record
const (
	AttemptSubmit = "submit"
	AttemptRedo   = "redo"
)

// CocktailRecord is a completed generation with the inputs that produced it
type CocktailRecord struct {
	ID        uuid.UUID               `json:"id"`
	SessionID string                  `json:"session_id,omitempty"`
	Attempt   string                  `json:"attempt"`
	Profile   types.UserProfile       `json:"profile"`
	Critique  string                  `json:"critique,omitempty"`
	Cocktail  types.GeneratedCocktail `json:"cocktail"`
	CreatedAt time.Time               `json:"created_at"`
}

// CocktailSummary is the list view of a record, without the recipe body or image
type CocktailSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Tagline   string    `json:"tagline,omitempty"`
	Attempt   string    `json:"attempt"`
	HasImage  bool      `json:"has_image"`
	CreatedAt time.Time `json:"created_at"`
}

// GenerationFailure is a failed attempt kept for diagnostics
type GenerationFailure struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Attempt   string    `json:"attempt"`
	Step      string    `json:"step,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
