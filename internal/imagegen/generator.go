// Package imagegen generates the cocktail photograph and encodes it as a data URI.
package imagegen

import (
	"context"
	"encoding/base64"

	"github.com/jonathan/soul-spirits/internal/llm"
)

// DefaultMIMEType is declared when a payload arrives without a media type.
const DefaultMIMEType = "image/png"

// SegmentGenerator returns the content segments of a model response.
// llm.Client satisfies it.
type SegmentGenerator interface {
	GenerateSegments(ctx context.Context, prompt string, tier llm.ModelTier) ([]llm.Segment, error)
}

// Generator generates images. It never retries.
type Generator struct {
	segments SegmentGenerator
	tier     llm.ModelTier
}

// NewGenerator creates a Generator backed by segments.
func NewGenerator(segments SegmentGenerator) *Generator {
	return &Generator{segments: segments, tier: llm.TierImage}
}

// Generate sends instruction to the image model and returns the first inline
// payload as a data URI.
func (g *Generator) Generate(ctx context.Context, instruction string) (string, error) {
	segments, err := g.segments.GenerateSegments(ctx, instruction, g.tier)
	if err != nil {
		return "", &GenerationError{Message: "image service call failed", Cause: err}
	}

	uri, ok := DataURI(segments)
	if !ok {
		return "", &GenerationError{Message: "no image generated in the response"}
	}
	return uri, nil
}

// DataURI encodes the first segment carrying inline data as
// data:<mime>;base64,<payload>. It reports false when no segment has data.
func DataURI(segments []llm.Segment) (string, bool) {
	for _, seg := range segments {
		if !seg.IsInlineData() {
			continue
		}
		mimeType := seg.MIMEType
		if mimeType == "" {
			mimeType = DefaultMIMEType
		}
		return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(seg.Data), true
	}
	return "", false
}
