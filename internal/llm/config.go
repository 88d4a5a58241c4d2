// Package llm provides centralized LLM configuration and client abstractions.
// Recipes and images are generated by different models, selected by tier.
package llm

// ModelTier represents the kind of generation a model is used for
type ModelTier string

const (
	// TierStandard is for structured text output: recipe generation
	TierStandard ModelTier = "standard"
	// TierImage is for image output: the cocktail photograph
	TierImage ModelTier = "image"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider, the only one implemented
const ProviderGemini Provider = "gemini"

// Default Gemini model names.
const (
	DefaultTextModel  = "gemini-2.5-flash"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// Config holds the model configuration for the application
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierStandard: DefaultTextModel,
			TierImage:    DefaultImageModel,
		},
	}
}

// GetModel returns the model name for a given tier.
// Text tiers fall back to TierStandard; the image tier never falls back,
// since a text model cannot produce image parts.
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok && model != "" {
		return model
	}
	if tier == TierImage {
		return ""
	}
	return c.Models[TierStandard]
}

// WithModel returns a new Config with a specific model for a tier.
// An empty model leaves the tier unchanged.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	newConfig := &Config{
		Provider: c.Provider,
		Models:   make(map[ModelTier]string, len(c.Models)+1),
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	if model != "" {
		newConfig.Models[tier] = model
	}
	return newConfig
}
