package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecipeJSON = `{
  "name": "Midnight Oracle",
  "tagline": "Dark, bright, certain.",
  "story": "A drink for people who already know the ending.",
  "ingredients": [
    {"item": "Gin", "amount": "2 oz"},
    {"item": "Lemon", "amount": "0.75 oz"}
  ],
  "glassware": "Coupe",
  "garnish": "Lemon twist",
  "instructions": "Shake with ice and fine strain.",
  "visualDescription": "A pale gold drink in a frosted coupe."
}`

func runValidateRecipeWith(t *testing.T, content string) (string, string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipe.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	prev := validateRecipeInput
	validateRecipeInput = path
	t.Cleanup(func() { validateRecipeInput = prev })

	var stdout, stderr bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := runValidateRecipe(cmd, nil)
	return stdout.String(), stderr.String(), err
}

func TestValidateRecipe_Valid(t *testing.T) {
	stdout, _, err := runValidateRecipeWith(t, validRecipeJSON)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is a valid recipe")
}

func TestValidateRecipe_MissingFields(t *testing.T) {
	_, stderr, err := runValidateRecipeWith(t, `{"name": "Half a Drink", "ingredients": []}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipe is invalid")
	assert.Contains(t, stderr, "story")
	assert.Contains(t, stderr, "glassware")
}

func TestValidateRecipe_FileNotFound(t *testing.T) {
	prev := validateRecipeInput
	validateRecipeInput = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { validateRecipeInput = prev })

	err := runValidateRecipe(&cobra.Command{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recipe file not found")
}

func TestValidateRecipe_Binary(t *testing.T) {
	binaryPath := getBinaryPath(t)

	path := filepath.Join(t.TempDir(), "recipe.json")
	require.NoError(t, os.WriteFile(path, []byte(validRecipeJSON), 0o644))

	output, err := exec.Command(binaryPath, "validate-recipe", "--in", path).CombinedOutput()
	require.NoError(t, err, string(output))
	assert.Contains(t, string(output), "✓")
}
