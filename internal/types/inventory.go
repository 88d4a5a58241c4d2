package types

import (
	"slices"
	"strings"
)

// Staples are assumed to be on hand even under a strict inventory.
var Staples = []string{"Sugar", "Water", "Salt", "Ice"}

// InventoryConstraint describes the bar the recipe must be made from.
type InventoryConstraint struct {
	Items  []string `json:"items"`
	Strict bool     `json:"strict"`
}

// HasItems reports whether any ingredient is declared.
func (c *InventoryConstraint) HasItems() bool {
	return c != nil && len(c.Items) > 0
}

// Contains reports whether item is declared. Matching is case-sensitive.
func (c *InventoryConstraint) Contains(item string) bool {
	return c != nil && slices.Contains(c.Items, item)
}

// Toggle removes item when present and appends it otherwise.
func (c *InventoryConstraint) Toggle(item string) {
	if idx := slices.Index(c.Items, item); idx >= 0 {
		c.Items = slices.Delete(c.Items, idx, idx+1)
		return
	}
	c.Items = append(c.Items, item)
}

// Add appends a trimmed custom item. Blank and duplicate items are ignored;
// it reports whether the inventory changed.
func (c *InventoryConstraint) Add(item string) bool {
	item = strings.TrimSpace(item)
	if item == "" || slices.Contains(c.Items, item) {
		return false
	}
	c.Items = append(c.Items, item)
	return true
}

// Normalized returns a copy with blank and duplicate items removed, first
// occurrence kept.
func (c InventoryConstraint) Normalized() InventoryConstraint {
	out := InventoryConstraint{Strict: c.Strict, Items: make([]string, 0, len(c.Items))}
	for _, item := range c.Items {
		out.Add(item)
	}
	return out
}

// InventoryPresets are the catalogue items offered per category.
var InventoryPresets = map[string][]string{
	"Spirits": {
		"Vodka", "Gin", "Rum (White)", "Rum (Dark)", "Tequila", "Whiskey (Bourbon)", "Whiskey (Rye)",
		"Scotch", "Brandy", "Vermouth (Dry)", "Vermouth (Sweet)", "Campari", "Aperol", "Cointreau/Triple Sec",
	},
	"Mixers": {
		"Soda Water", "Tonic Water", "Cola", "Ginger Beer", "Ginger Ale", "Cranberry Juice", "Orange Juice",
		"Pineapple Juice", "Grapefruit Juice", "Tomato Juice", "Simple Syrup", "Honey Syrup", "Grenadine",
	},
	"Fresh": {
		"Lemon", "Lime", "Orange", "Mint", "Basil", "Cucumber", "Egg White", "Heavy Cream",
		"Angostura Bitters", "Orange Bitters",
	},
}

// CustomItems returns the declared items that are not in any preset category.
func (c *InventoryConstraint) CustomItems() []string {
	var custom []string
	for _, item := range c.Items {
		preset := false
		for _, items := range InventoryPresets {
			if slices.Contains(items, item) {
				preset = true
				break
			}
		}
		if !preset {
			custom = append(custom, item)
		}
	}
	return custom
}
