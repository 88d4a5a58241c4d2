package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/soul-spirits/internal/db"
	"github.com/jonathan/soul-spirits/internal/logging"
	"github.com/jonathan/soul-spirits/internal/observability"
	"github.com/jonathan/soul-spirits/internal/orchestrator"
	"github.com/jonathan/soul-spirits/internal/types"
	"github.com/jonathan/soul-spirits/internal/validation"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a cocktail for a profile",
	Long: `Validates the profile, generates a recipe and its image, and prints the result.
Each --redo regenerates once more from the same profile with that critique.

Age groups can be given as their full tag or as one of: ` + strings.Join(ageGroupKeys(), ", ") + `.`,
	RunE: runGenerate,
}

var (
	genName        string
	genAgeGroup    string
	genMBTI        string
	genZodiac      string
	genMood        string
	genPreferences string
	genInventory   []string
	genOwner       string
	genStrict      bool
	genRedo        []string
	genJSON        bool
)

// ageGroupShorthands are the flag spellings accepted for --age-group.
var ageGroupShorthands = map[string]types.AgeGroup{
	"underage":         types.AgeGroupUnderage,
	"gen-z":            types.AgeGroupGenZ,
	"zennial":          types.AgeGroupZennial,
	"core-millennial":  types.AgeGroupCoreMillennial,
	"elder-millennial": types.AgeGroupElderMillennial,
	"gen-x":            types.AgeGroupGenX,
	"boomer":           types.AgeGroupBoomer,
}

func init() {
	generateCmd.Flags().StringVarP(&genName, "name", "n", "", "Name to personalise for")
	generateCmd.Flags().StringVarP(&genAgeGroup, "age-group", "a", "", "Age group")
	generateCmd.Flags().StringVar(&genMBTI, "mbti", "", "MBTI code, e.g. INTJ")
	generateCmd.Flags().StringVar(&genZodiac, "zodiac", "", "Zodiac sign, e.g. Scorpio")
	generateCmd.Flags().StringVarP(&genMood, "mood", "m", "", "Current mood")
	generateCmd.Flags().StringVarP(&genPreferences, "preferences", "p", "", "Taste preferences (optional)")
	generateCmd.Flags().StringArrayVar(&genInventory, "inventory", nil, "Available ingredient (repeatable)")
	generateCmd.Flags().StringVar(&genOwner, "owner", "", "Load the inventory saved for this owner instead of --inventory (requires REDIS_URL)")
	generateCmd.Flags().BoolVar(&genStrict, "strict", false, "Use only the listed inventory")
	generateCmd.Flags().StringArrayVar(&genRedo, "redo", nil, "Critique for a follow-up regeneration (repeatable)")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print results as JSON")

	generateCmd.MarkFlagsMutuallyExclusive("inventory", "owner")

	rootCmd.AddCommand(generateCmd)
}

// generateResult is one attempt in --json output.
type generateResult struct {
	Attempt  string                   `json:"attempt"`
	Critique string                   `json:"critique,omitempty"`
	State    string                   `json:"state"`
	Message  string                   `json:"message,omitempty"`
	Cocktail *types.GeneratedCocktail `json:"cocktail,omitempty"`
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	profile, err := validation.ValidateProfile(profileFromFlags())
	if err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	inv, err := resolveInventory(cfg.RedisURL != "", func() (types.InventoryConstraint, error) {
		store, closeStore, err := openInventory(ctx, cfg, logger)
		if err != nil {
			return types.InventoryConstraint{}, err
		}
		defer closeStore()
		return store.Load(ctx, genOwner)
	})
	if err != nil {
		return err
	}

	gens, err := newGenerators(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = gens.Close() }()

	history, err := openHistory(ctx, cfg, logger)
	if err != nil {
		logger.Warn("history unavailable, results will not be saved", zap.Error(err))
		history = nil
	}
	if history != nil {
		defer history.Close()
	}

	progress := func(t orchestrator.Transition) {
		if !genJSON && orchestrator.InFlight(t.To) {
			fmt.Fprintf(cmd.ErrOrStderr(), "… %s\n", strings.ReplaceAll(t.To.Name(), "_", " "))
		}
	}
	orch := orchestrator.New(gens.recipes, gens.images,
		orchestrator.WithLogger(logger),
		orchestrator.WithObserver(progress),
	)

	printer := observability.NewPrinter(out)
	if !genJSON {
		printer.PrintProfile(profile)
		if inv != nil {
			printer.PrintInventory(*inv)
		}
	}

	var results []generateResult
	report := func(attempt orchestrator.Attempt, critique string, cocktail *types.GeneratedCocktail, genErr error) {
		result := generateResult{Attempt: string(attempt), Critique: critique, State: orch.State().Name(), Cocktail: cocktail}
		if e, ok := orch.State().(orchestrator.Error); ok {
			result.Message = e.Message
		}
		results = append(results, result)
		saveHistory(ctx, history, logger, result, profile, genErr)

		if genJSON {
			return
		}
		if cocktail != nil {
			printer.PrintCocktail(cocktail)
		} else {
			printer.PrintError(result.Message)
		}
	}

	cocktail, genErr := orch.Submit(ctx, profile, inv)
	report(orchestrator.AttemptSubmit, "", cocktail, genErr)

	for _, critique := range genRedo {
		cocktail, err := orch.Redo(ctx, critique, inv)
		if errors.Is(err, orchestrator.ErrNoRetryContext) || errors.Is(err, orchestrator.ErrInvalidTransition) {
			return err
		}
		report(orchestrator.AttemptRedo, critique, cocktail, err)
		genErr = err
	}

	if genJSON {
		if err := writeJSON(out, results); err != nil {
			return err
		}
	}
	if genErr != nil {
		return fmt.Errorf("generation failed: %w", genErr)
	}
	return nil
}

// profileFromFlags builds a profile from the flags, normalising the enum spellings.
func profileFromFlags() types.UserProfile {
	return types.UserProfile{
		Name:        strings.TrimSpace(genName),
		AgeGroup:    parseAgeGroup(genAgeGroup),
		MBTI:        strings.ToUpper(strings.TrimSpace(genMBTI)),
		Zodiac:      titleCase(strings.TrimSpace(genZodiac)),
		Mood:        strings.TrimSpace(genMood),
		Preferences: strings.TrimSpace(genPreferences),
	}
}

// parseAgeGroup accepts a shorthand key or a full tag. Anything else is passed
// through and rejected by validation.
func parseAgeGroup(s string) types.AgeGroup {
	s = strings.TrimSpace(s)
	if g, ok := ageGroupShorthands[strings.ToLower(s)]; ok {
		return g
	}
	return types.AgeGroup(s)
}

func ageGroupKeys() []string {
	keys := make([]string, 0, len(types.AgeGroupOptions))
	for _, opt := range types.AgeGroupOptions {
		for key, g := range ageGroupShorthands {
			if g == opt.Value {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// resolveInventory returns the inventory from --inventory/--strict, or the
// one stored for --owner. It returns nil when there is nothing to constrain.
func resolveInventory(redisConfigured bool, load func() (types.InventoryConstraint, error)) (*types.InventoryConstraint, error) {
	if genOwner != "" {
		if !redisConfigured {
			return nil, fmt.Errorf("--owner requires REDIS_URL or redis_url in the config file")
		}
		inv, err := load()
		if err != nil {
			return nil, fmt.Errorf("failed to load inventory for %s: %w", genOwner, err)
		}
		if genStrict {
			inv.Strict = true
		}
		if !inv.HasItems() {
			return nil, nil
		}
		return &inv, nil
	}

	if len(genInventory) == 0 {
		if genStrict {
			return nil, fmt.Errorf("--strict needs at least one --inventory item")
		}
		return nil, nil
	}
	inv := types.InventoryConstraint{Items: genInventory, Strict: genStrict}.Normalized()
	return &inv, nil
}

// saveHistory records one attempt when a database is configured.
func saveHistory(ctx context.Context, history *db.DB, logger *zap.Logger, result generateResult, profile types.UserProfile, genErr error) {
	if history == nil {
		return
	}
	var err error
	if result.Cocktail != nil {
		err = history.SaveCocktail(ctx, &db.CocktailRecord{
			Attempt:  result.Attempt,
			Profile:  profile,
			Critique: result.Critique,
			Cocktail: *result.Cocktail,
		})
	} else {
		message := result.Message
		if genErr != nil {
			message = genErr.Error()
		}
		err = history.SaveFailure(ctx, &db.GenerationFailure{
			Attempt: result.Attempt,
			Message: message,
		})
	}
	if err != nil {
		logger.Warn("failed to save history", zap.Error(err))
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
