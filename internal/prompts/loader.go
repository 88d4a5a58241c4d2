// Package prompts holds the instructions sent to the text and image models.
// Templates live in embedded JSON files, one object of named templates per
// file, and use {{.Field}} placeholders.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
)

//go:embed *.json
var templateFiles embed.FS

// catalogs maps a file name to its memoised parse.
var catalogs sync.Map

var placeholder = regexp.MustCompile(`\{\{\.(\w+)\}\}`)

// Get returns the template stored under key in filename (e.g. "cocktail.json").
func Get(filename, key string) (string, error) {
	templates, err := catalog(filename)
	if err != nil {
		return "", err
	}
	tmpl, ok := templates[key]
	if !ok {
		return "", fmt.Errorf("prompt key %q not found in %s", key, filename)
	}
	return tmpl, nil
}

// MustGet is Get for templates that ship with the binary. It panics when the
// template is missing.
func MustGet(filename, key string) string {
	tmpl, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return tmpl
}

// Format substitutes {{.Field}} placeholders from data in a single pass, so
// placeholder text inside a value is never expanded. Placeholders without a
// value are left as they are.
func Format(tmpl string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		if v, ok := data[placeholder.FindStringSubmatch(m)[1]]; ok {
			return v
		}
		return m
	})
}

func catalog(filename string) (map[string]string, error) {
	load, _ := catalogs.LoadOrStore(filename, sync.OnceValues(func() (map[string]string, error) {
		return parseFile(filename)
	}))
	return load.(func() (map[string]string, error))()
}

func parseFile(filename string) (map[string]string, error) {
	data, err := templateFiles.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file %s: %w", filename, err)
	}
	var templates map[string]string
	if err := json.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", filename, err)
	}
	return templates, nil
}
