package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratedCocktail(t *testing.T) {
	recipe := CocktailRecipe{
		Name:        "Velvet Hour",
		Ingredients: []Ingredient{{Item: "Gin", Amount: "50ml"}, {Item: "Tonic Water", Amount: "top up"}},
	}

	cocktail := NewGeneratedCocktail(recipe, "data:image/png;base64,AAAA")
	assert.NotEmpty(t, cocktail.ID)
	assert.False(t, cocktail.CreatedAt.IsZero())
	assert.Equal(t, "data:image/png;base64,AAAA", cocktail.ImageURL)

	// The cocktail must not alias the recipe's ingredients
	recipe.Ingredients[0].Item = "Vodka"
	assert.Equal(t, "Gin", cocktail.Ingredients[0].Item)
	assert.Equal(t, "Tonic Water", cocktail.Ingredients[1].Item)

	other := NewGeneratedCocktail(recipe, "")
	assert.NotEqual(t, cocktail.ID, other.ID)
}

func TestGeneratedCocktail_JSONFlattensRecipe(t *testing.T) {
	cocktail := NewGeneratedCocktail(CocktailRecipe{Name: "Velvet Hour", VisualDescription: "pale"}, "")

	data, err := json.Marshal(cocktail)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "Velvet Hour", fields["name"])
	assert.Equal(t, "pale", fields["visualDescription"])
	assert.NotContains(t, fields, "imageUrl")
	assert.NotContains(t, fields, "tagline")
}
