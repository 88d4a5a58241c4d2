// Package composer builds the instructions sent to the recipe and image generators.
// Every function here is pure: the same inputs always produce the same string.
package composer

import (
	"strings"

	"github.com/jonathan/soul-spirits/internal/prompts"
	"github.com/jonathan/soul-spirits/internal/types"
)

const promptFile = "cocktail.json"

// Tier is a fixed stylistic direction for the recipe.
type Tier string

// Style tiers. TierGeneral covers age groups outside the lookup table.
const (
	TierTrendForward    Tier = "trend-forward"
	TierBalancedCraft   Tier = "balanced-craft"
	TierSpiritForward   Tier = "spirit-forward"
	TierTimelessClassic Tier = "timeless-classic"
	TierGeneral         Tier = "general"
)

// ageTiers maps each age group tag to its style tier.
var ageTiers = map[types.AgeGroup]Tier{
	types.AgeGroupGenZ:            TierTrendForward,
	types.AgeGroupZennial:         TierTrendForward,
	types.AgeGroupCoreMillennial:  TierBalancedCraft,
	types.AgeGroupElderMillennial: TierSpiritForward,
	types.AgeGroupGenX:            TierSpiritForward,
	types.AgeGroupBoomer:          TierTimelessClassic,
}

// TierFor returns the style tier for an age group.
func TierFor(group types.AgeGroup) Tier {
	if tier, ok := ageTiers[group]; ok {
		return tier
	}
	return TierGeneral
}

// TierGuidance returns the style guidance text for a tier.
func TierGuidance(tier Tier) string {
	return prompts.MustGet(promptFile, "tier-"+string(tier))
}

// ComposeRecipeInstruction builds the recipe generation instruction. A nil or
// empty inventory adds no inventory clause; an empty critique adds no
// regeneration clause.
func ComposeRecipeInstruction(profile types.UserProfile, inventory *types.InventoryConstraint, critique string) string {
	template := prompts.MustGet(promptFile, "recipe")
	return prompts.Format(template, map[string]string{
		"Name":               profile.Name,
		"AgeGroup":           string(profile.AgeGroup),
		"MBTI":               profile.MBTI,
		"Zodiac":             profile.Zodiac,
		"Mood":               profile.Mood,
		"Preferences":        profile.Preferences,
		"InventoryClause":    inventoryClause(inventory),
		"RegenerationClause": regenerationClause(critique),
		"AgeTierGuidance":    TierGuidance(TierFor(profile.AgeGroup)),
	})
}

// ComposeImageInstruction wraps a recipe's visual description in the fixed
// photography template.
func ComposeImageInstruction(visualDescription string) string {
	return prompts.Format(prompts.MustGet(promptFile, "image"), map[string]string{
		"VisualDescription": visualDescription,
	})
}

// SystemInstruction is the role description sent with every recipe request.
func SystemInstruction() string {
	return prompts.MustGet(promptFile, "system-instruction")
}

func inventoryClause(inventory *types.InventoryConstraint) string {
	if !inventory.HasItems() {
		return ""
	}
	normalized := inventory.Normalized()
	if len(normalized.Items) == 0 {
		return ""
	}

	items := strings.Join(normalized.Items, ", ")
	if normalized.Strict {
		return prompts.Format(prompts.MustGet(promptFile, "inventory-strict"), map[string]string{
			"Items":   items,
			"Staples": strings.Join(types.Staples, ", "),
		})
	}
	return prompts.Format(prompts.MustGet(promptFile, "inventory-preference"), map[string]string{
		"Items": items,
	})
}

func regenerationClause(critique string) string {
	if strings.TrimSpace(critique) == "" {
		return ""
	}
	return prompts.Format(prompts.MustGet(promptFile, "regeneration"), map[string]string{
		"Critique": critique,
	})
}
