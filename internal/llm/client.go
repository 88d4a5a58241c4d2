package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// JSONRequest describes a schema-constrained generation call.
type JSONRequest struct {
	Prompt            string
	SystemInstruction string
	Schema            *genai.Schema
	Tier              ModelTier
}

// Segment is one part of a model response: text, inline binary data, or both empty.
type Segment struct {
	Text     string
	MIMEType string
	Data     []byte
}

// IsInlineData reports whether the segment carries a binary payload.
func (s Segment) IsInlineData() bool {
	return len(s.Data) > 0
}

// Client is an abstraction over LLM providers
type Client interface {
	// GenerateJSON generates a JSON document constrained by req.Schema
	GenerateJSON(ctx context.Context, req JSONRequest) (string, error)
	// GenerateSegments generates content and returns every part of the first candidate
	GenerateSegments(ctx context.Context, prompt string, tier ModelTier) ([]Segment, error)
	// GetModel returns the underlying provider model for a tier
	GetModel(tier ModelTier) string
	// Close releases any resources held by the client
	Close() error
}

// NewClient creates a new LLM client based on configuration
func NewClient(ctx context.Context, config *Config, apiKey string) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(ctx, config, apiKey)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", config.Provider)
	}
}

// GeminiClient implements Client for Google Gemini
type GeminiClient struct {
	client *genai.Client
	config *Config
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config *Config, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		config: config,
	}, nil
}

// GenerateJSON generates JSON content matching req.Schema
func (c *GeminiClient) GenerateJSON(ctx context.Context, req JSONRequest) (string, error) {
	modelName := c.config.GetModel(req.Tier)
	if modelName == "" {
		return "", fmt.Errorf("no model configured for tier %s", req.Tier)
	}

	model := c.client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = req.Schema
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text, err := extractTextFromResponse(resp)
	if err != nil {
		return "", err
	}

	return CleanJSONBlock(text), nil
}

// GenerateSegments sends prompt as the sole text part and returns the response parts
func (c *GeminiClient) GenerateSegments(ctx context.Context, prompt string, tier ModelTier) ([]Segment, error) {
	modelName := c.config.GetModel(tier)
	if modelName == "" {
		return nil, fmt.Errorf("no model configured for tier %s", tier)
	}

	model := c.client.GenerativeModel(modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return segmentsFromResponse(resp), nil
}

// GetModel returns the model name for a tier
func (c *GeminiClient) GetModel(tier ModelTier) string {
	return c.config.GetModel(tier)
}

// Close releases resources held by the client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// extractTextFromResponse joins the text parts of the first candidate
func extractTextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}

	return strings.Join(parts, ""), nil
}

// segmentsFromResponse converts the first candidate's parts, in order.
// Parts other than text and inline data are dropped.
func segmentsFromResponse(resp *genai.GenerateContentResponse) []Segment {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return nil
	}

	segments := make([]Segment, 0, len(candidate.Content.Parts))
	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			segments = append(segments, Segment{Text: string(p)})
		case genai.Blob:
			segments = append(segments, Segment{MIMEType: p.MIMEType, Data: p.Data})
		case *genai.Blob:
			if p != nil {
				segments = append(segments, Segment{MIMEType: p.MIMEType, Data: p.Data})
			}
		}
	}
	return segments
}
