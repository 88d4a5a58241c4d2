package types

import (
	"time"

	"github.com/google/uuid"
)

// Ingredient is a single line of a recipe
type Ingredient struct {
	Item   string `json:"item"`
	Amount string `json:"amount"`
}

// CocktailRecipe is the structured result of recipe generation.
// Ingredients keep the order the generator produced them in.
type CocktailRecipe struct {
	Name              string       `json:"name"`
	Tagline           string       `json:"tagline,omitempty"`
	Story             string       `json:"story"`
	Ingredients       []Ingredient `json:"ingredients"`
	Glassware         string       `json:"glassware"`
	Garnish           string       `json:"garnish"`
	Instructions      string       `json:"instructions"`
	VisualDescription string       `json:"visualDescription"`
}

// GeneratedCocktail is a recipe with its generated image attached.
type GeneratedCocktail struct {
	ID        string    `json:"id,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
	CocktailRecipe
	ImageURL string `json:"imageUrl,omitempty"`
}

// NewGeneratedCocktail attaches an image data URI to a recipe and assigns a
// fresh id. The recipe's ingredient slice is copied so the result shares no
// state with it.
func NewGeneratedCocktail(recipe CocktailRecipe, imageURL string) GeneratedCocktail {
	recipe.Ingredients = append([]Ingredient(nil), recipe.Ingredients...)
	return GeneratedCocktail{
		ID:             uuid.NewString(),
		CreatedAt:      time.Now().UTC(),
		CocktailRecipe: recipe,
		ImageURL:       imageURL,
	}
}
