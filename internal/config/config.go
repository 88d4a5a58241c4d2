// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey      = "GEMINI_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
	EnvRedisURL    = "REDIS_URL"
	EnvTextModel   = "SOUL_SPIRITS_TEXT_MODEL"
	EnvImageModel  = "SOUL_SPIRITS_IMAGE_MODEL"
	EnvPort        = "PORT"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults, the environment, or CLI flags.
type Config struct {
	// Credentials and backends
	APIKey      string `json:"api_key,omitempty"`      // Gemini API key
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL URL for generation history
	RedisURL    string `json:"redis_url,omitempty"`    // Redis URL for inventory persistence

	// Models
	TextModel  string `json:"text_model,omitempty"`  // Recipe model
	ImageModel string `json:"image_model,omitempty"` // Image model

	// Server
	Port           int      `json:"port,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	// GenerationTimeout and SessionIdleTimeout are Go durations, e.g. "90s"
	GenerationTimeout        string `json:"generation_timeout,omitempty"`
	SessionIdleTimeout       string `json:"session_idle_timeout,omitempty"`
	MaxConcurrentGenerations int    `json:"max_concurrent_generations,omitempty"`
	// Per-client limits: general endpoints, and submit/redo
	RequestsPerMinute    int `json:"requests_per_minute,omitempty"`
	GenerationsPerMinute int `json:"generations_per_minute,omitempty"`

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Development logging
}

// Defaults returns the built-in defaults.
func Defaults() Config {
	return Config{
		TextModel:                "gemini-2.5-flash",
		ImageModel:               "gemini-2.5-flash-image",
		Port:                     8080,
		AllowedOrigins:           []string{"*"},
		GenerationTimeout:        "2m",
		MaxConcurrentGenerations: 4,
		RequestsPerMinute:        120,
		GenerationsPerMinute:     10,
		SessionIdleTimeout:       "1h",
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overwrites fields with any environment variables that are set.
func (c *Config) ApplyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.APIKey, EnvAPIKey)
	setString(&c.DatabaseURL, EnvDatabaseURL)
	setString(&c.RedisURL, EnvRedisURL)
	setString(&c.TextModel, EnvTextModel)
	setString(&c.ImageModel, EnvImageModel)

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %v", EnvPort, err)
		}
		c.Port = port
	}
	return nil
}

// Validate checks that the configuration has valid values.
// Required fields are not checked here; each command checks what it needs.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.MaxConcurrentGenerations < 0 {
		return fmt.Errorf("config error: 'max_concurrent_generations' must be non-negative")
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("config error: 'requests_per_minute' must be non-negative")
	}
	if c.GenerationsPerMinute < 0 {
		return fmt.Errorf("config error: 'generations_per_minute' must be non-negative")
	}
	if _, err := parseDuration("generation_timeout", c.GenerationTimeout); err != nil {
		return err
	}
	if _, err := parseDuration("session_idle_timeout", c.SessionIdleTimeout); err != nil {
		return err
	}
	return nil
}

// GenerationTimeoutDuration returns the per-generation deadline, or 0 for none.
func (c *Config) GenerationTimeoutDuration() time.Duration {
	d, _ := parseDuration("generation_timeout", c.GenerationTimeout)
	return d
}

// SessionIdleTimeoutDuration returns how long an untouched session is kept, or 0 for forever.
func (c *Config) SessionIdleTimeoutDuration() time.Duration {
	d, _ := parseDuration("session_idle_timeout", c.SessionIdleTimeout)
	return d
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config error: '%s' is not a valid duration: %v", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config error: '%s' must be non-negative", field)
	}
	return d, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.RedisURL == "" {
		result.RedisURL = defaults.RedisURL
	}
	if result.TextModel == "" {
		result.TextModel = defaults.TextModel
	}
	if result.ImageModel == "" {
		result.ImageModel = defaults.ImageModel
	}
	if result.GenerationTimeout == "" {
		result.GenerationTimeout = defaults.GenerationTimeout
	}
	if result.SessionIdleTimeout == "" {
		result.SessionIdleTimeout = defaults.SessionIdleTimeout
	}
	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = defaults.AllowedOrigins
	}

	// Int fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.MaxConcurrentGenerations == 0 {
		result.MaxConcurrentGenerations = defaults.MaxConcurrentGenerations
	}
	if result.RequestsPerMinute == 0 {
		result.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if result.GenerationsPerMinute == 0 {
		result.GenerationsPerMinute = defaults.GenerationsPerMinute
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
