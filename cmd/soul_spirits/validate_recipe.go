package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/soul-spirits/internal/schemas"
)

var validateRecipeCmd = &cobra.Command{
	Use:   "validate-recipe",
	Short: "Validate a recipe JSON file against the recipe schema",
	Long:  "Checks that a JSON file has every field a generated recipe must carry, with the right types.",
	RunE:  runValidateRecipe,
}

var validateRecipeInput string

func init() {
	validateRecipeCmd.Flags().StringVarP(&validateRecipeInput, "in", "i", "", "Path to recipe JSON file (required)")

	if err := validateRecipeCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(validateRecipeCmd)
}

func runValidateRecipe(cmd *cobra.Command, _ []string) error {
	if _, err := os.Stat(validateRecipeInput); os.IsNotExist(err) {
		return fmt.Errorf("recipe file not found: %s", validateRecipeInput)
	}

	if err := schemas.ValidateJSONFile(validateRecipeInput); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			for _, fe := range validationErr.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("recipe is invalid: %d problem(s)", len(validationErr.Errors))
		}
		return fmt.Errorf("failed to validate recipe: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is a valid recipe\n", validateRecipeInput)
	return nil
}
