package imagegen

import (
	"context"
	"errors"
	"testing"

	"github.com/jonathan/soul-spirits/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSegments struct {
	segments []llm.Segment
	err      error
	prompt   string
	tier     llm.ModelTier
}

func (f *fakeSegments) GenerateSegments(_ context.Context, prompt string, tier llm.ModelTier) ([]llm.Segment, error) {
	f.prompt = prompt
	f.tier = tier
	return f.segments, f.err
}

func TestGenerate_FirstInlinePayloadWins(t *testing.T) {
	fake := &fakeSegments{segments: []llm.Segment{
		{Text: "Here is your cocktail"},
		{MIMEType: "image/jpeg", Data: []byte("abc")},
		{MIMEType: "image/png", Data: []byte("xyz")},
	}}

	uri, err := NewGenerator(fake).Generate(context.Background(), "a photo")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,YWJj", uri)
	assert.Equal(t, "a photo", fake.prompt)
	assert.Equal(t, llm.TierImage, fake.tier)
}

func TestGenerate_DefaultsToPNG(t *testing.T) {
	fake := &fakeSegments{segments: []llm.Segment{{Data: []byte("abc")}}}

	uri, err := NewGenerator(fake).Generate(context.Background(), "a photo")
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,YWJj", uri)
}

func TestGenerate_NoInlineData(t *testing.T) {
	tests := []struct {
		name     string
		segments []llm.Segment
	}{
		{"no segments", nil},
		{"text only", []llm.Segment{{Text: "I cannot draw that"}}},
		{"mime without data", []llm.Segment{{MIMEType: "image/png"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(&fakeSegments{segments: tt.segments}).Generate(context.Background(), "x")
			var genErr *GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Contains(t, err.Error(), "no image generated")
		})
	}
}

func TestGenerate_ServiceError(t *testing.T) {
	_, err := NewGenerator(&fakeSegments{err: errors.New("safety block")}).Generate(context.Background(), "x")

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, err.Error(), "safety block")
}
