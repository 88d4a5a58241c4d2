package prompts

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cocktailKeys = []string{
	"system-instruction", "recipe", "inventory-strict", "inventory-preference", "regeneration",
	"tier-trend-forward", "tier-balanced-craft", "tier-spirit-forward", "tier-timeless-classic", "tier-general",
	"image",
}

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		key      string
		contains string
		wantErr  string
	}{
		{name: "recipe", file: "cocktail.json", key: "recipe", contains: "{{.Name}}"},
		{name: "image", file: "cocktail.json", key: "image", contains: "{{.VisualDescription}}"},
		{name: "missing file", file: "nonexistent.json", key: "recipe", wantErr: "failed to read prompt file"},
		{name: "missing key", file: "cocktail.json", key: "nonexistent-key", wantErr: "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Get(tt.file, tt.key)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, got, tt.contains)
		})
	}
}

func TestMustGet_Panics(t *testing.T) {
	assert.Panics(t, func() { MustGet("nonexistent.json", "recipe") })
}

func TestCocktailTemplates(t *testing.T) {
	known := map[string]bool{
		"Name": true, "AgeGroup": true, "MBTI": true, "Zodiac": true, "Mood": true, "Preferences": true,
		"InventoryClause": true, "RegenerationClause": true, "AgeTierGuidance": true,
		"Staples": true, "Items": true, "Critique": true, "VisualDescription": true,
	}
	field := regexp.MustCompile(`\{\{\.(\w+)\}\}`)

	for _, key := range cocktailKeys {
		t.Run(key, func(t *testing.T) {
			tmpl := MustGet("cocktail.json", key)
			assert.NotEmpty(t, tmpl)
			for _, m := range field.FindAllStringSubmatch(tmpl, -1) {
				assert.True(t, known[m[1]], "unexpected placeholder %s", m[0])
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		data map[string]string
		want string
	}{
		{
			name: "substitutes",
			tmpl: "Hello {{.Name}}, you feel {{.Mood}}.",
			data: map[string]string{"Name": "Ada", "Mood": "curious"},
			want: "Hello Ada, you feel curious.",
		},
		{
			name: "values are not expanded",
			tmpl: "{{.Name}} / {{.Mood}}",
			data: map[string]string{"Name": "{{.Mood}}", "Mood": "calm"},
			want: "{{.Mood}} / calm",
		},
		{
			name: "unknown placeholder left intact",
			tmpl: "{{.Missing}}",
			data: map[string]string{"Name": "x"},
			want: "{{.Missing}}",
		},
		{
			name: "empty value",
			tmpl: "[{{.Preferences}}]",
			data: map[string]string{"Preferences": ""},
			want: "[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.tmpl, tt.data))
		})
	}
}
