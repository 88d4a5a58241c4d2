package schemas

import "github.com/google/generative-ai-go/genai"

// RecipeResponseSchema returns the structured-output schema sent with recipe
// requests. It mirrors cocktail_recipe.schema.json so the model is asked for
// exactly the shape ValidateCocktailRecipe accepts.
func RecipeResponseSchema() *genai.Schema {
	text := func(description string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: description}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":    text("Creative name of the cocktail"),
			"tagline": text("A short, catchy slogan for the drink"),
			"story":   text("A short paragraph explaining why this drink matches the user's personality and mood."),
			"ingredients": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"item":   text("Name of ingredient (liquor, mixer, fruit, etc)"),
						"amount": text("Quantity with units (e.g., 60ml, 1 dash, top up)"),
					},
					Required: []string{"item", "amount"},
				},
			},
			"glassware":    text("Type of glass to serve in"),
			"garnish":      text("Garnish details"),
			"instructions": text("Step-by-step preparation instructions"),
			"visualDescription": text("A highly detailed visual description of the final cocktail for an image " +
				"generation AI. Describe colors, layers, condensation, lighting, the glass shape, and garnish."),
		},
		Required: RecipeRequiredFields(),
	}
}

// RecipeRequiredFields lists the CocktailRecipe fields every response must carry.
func RecipeRequiredFields() []string {
	return []string{"name", "story", "ingredients", "glassware", "garnish", "instructions", "visualDescription"}
}
