// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/soul-spirits/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// innerWidth is the usable text width inside a box
	innerWidth = boxWidth - 4
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content.
// Content lines longer than the box are wrapped at word boundaries.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for _, wrapped := range wrap(line, innerWidth) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(wrapped))
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProfile outputs the profile a generation was made for.
func (p *Printer) PrintProfile(profile types.UserProfile) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Name:    %s\n", profile.Name))
	sb.WriteString(fmt.Sprintf("Age:     %s\n", profile.AgeGroup))
	sb.WriteString(fmt.Sprintf("MBTI:    %s\n", profile.MBTI))
	sb.WriteString(fmt.Sprintf("Zodiac:  %s\n", profile.Zodiac))
	sb.WriteString(fmt.Sprintf("Mood:    %s", profile.Mood))
	if profile.Preferences != "" {
		sb.WriteString(fmt.Sprintf("\nTaste:   %s", profile.Preferences))
	}
	p.printBox("YOUR PROFILE", sb.String())
}

// PrintCocktail outputs a generated cocktail: story, ingredients in order,
// glassware, garnish and method.
func (p *Printer) PrintCocktail(cocktail *types.GeneratedCocktail) {
	if cocktail == nil {
		return
	}

	var sb strings.Builder
	if cocktail.Tagline != "" {
		sb.WriteString(fmt.Sprintf("\"%s\"\n\n", cocktail.Tagline))
	}
	sb.WriteString(cocktail.Story)
	sb.WriteString("\n\nIngredients:\n")
	for _, ing := range cocktail.Ingredients {
		if ing.Amount != "" {
			sb.WriteString(fmt.Sprintf("  • %s %s\n", ing.Amount, ing.Item))
		} else {
			sb.WriteString(fmt.Sprintf("  • %s\n", ing.Item))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Glass:    %s\n", cocktail.Glassware))
	sb.WriteString(fmt.Sprintf("Garnish:  %s\n", cocktail.Garnish))
	sb.WriteString("\nMethod:\n")
	sb.WriteString(cocktail.Instructions)

	if cocktail.ImageURL != "" {
		sb.WriteString(fmt.Sprintf("\n\nImage:    %s", describeDataURI(cocktail.ImageURL)))
	}

	p.printBox(strings.ToUpper(cocktail.Name), sb.String())
}

// PrintInventory outputs an inventory grouped by preset category, with
// custom items last.
func (p *Printer) PrintInventory(inv types.InventoryConstraint) {
	var sb strings.Builder
	mode := "flexible (preference)"
	if inv.Strict {
		mode = "strict (only these, plus staples)"
	}
	sb.WriteString(fmt.Sprintf("Mode:  %s\n", mode))

	if !inv.HasItems() {
		sb.WriteString("\nNo ingredients selected.")
		p.printBox("MY BAR", sb.String())
		return
	}

	for _, category := range []string{"Spirits", "Mixers", "Fresh"} {
		var selected []string
		for _, item := range types.InventoryPresets[category] {
			if inv.Contains(item) {
				selected = append(selected, item)
			}
		}
		if len(selected) > 0 {
			sb.WriteString(fmt.Sprintf("\n%s:\n  %s\n", category, strings.Join(selected, ", ")))
		}
	}
	if custom := inv.CustomItems(); len(custom) > 0 {
		sb.WriteString(fmt.Sprintf("\nCustom:\n  %s\n", strings.Join(custom, ", ")))
	}

	p.printBox("MY BAR", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintError outputs a failed generation or validation message.
func (p *Printer) PrintError(message string) {
	p.printBox("⚠ THE SPIRITS STUMBLED", message)
}

// describeDataURI summarizes a data URI instead of printing the payload.
func describeDataURI(uri string) string {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:") {
		return uri
	}
	mime := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	if mime == "" {
		mime = "unknown"
	}
	return fmt.Sprintf("%s, %d bytes (base64)", mime, len(payload))
}

// wrap splits line into chunks no wider than width runes, breaking at spaces
// where possible. Leading indentation is kept on continuation lines.
func wrap(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}

	indent := line[:len(line)-len(strings.TrimLeft(line, " "))]
	if len(indent) >= width/2 {
		indent = ""
	}
	var lines []string
	current := ""
	for _, word := range strings.Fields(line) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		} else {
			candidate = indent + word
		}
		if utf8.RuneCountInString(candidate) <= width {
			current = candidate
			continue
		}
		if current != "" {
			lines = append(lines, current)
		}
		current = indent + word
		for utf8.RuneCountInString(current) > width {
			runes := []rune(current)
			lines = append(lines, string(runes[:width]))
			current = indent + string(runes[width:])
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// pad right-pads s with spaces to the box's inner width, counting runes.
func pad(s string) string {
	n := utf8.RuneCountInString(s)
	if n >= innerWidth {
		return s
	}
	return s + strings.Repeat(" ", innerWidth-n)
}
