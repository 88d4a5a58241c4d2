package ratelimit

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Path pattern: "*" matches one segment, a trailing "/" matches any suffix
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// key identifies the bucket family for this endpoint.
func (e EndpointConfig) key() string {
	return e.Method + " " + e.Path
}

// LoadConfig builds a configuration from a per-minute default limit and a
// per-minute generation limit, then applies environment overrides.
func LoadConfig(requestsPerMinute, generationsPerMinute int) *Config {
	enabled := getEnvBool("RATE_LIMIT_ENABLED", true)
	if !enabled {
		return &Config{
			Enabled: false,
		}
	}

	defaultLimit := getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", requestsPerMinute)
	defaultWindow := getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", time.Minute)
	cleanupInterval := getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute)

	whitelist := parseIPList(getEnvString("RATE_LIMIT_WHITELIST", ""))
	blacklist := parseIPList(getEnvString("RATE_LIMIT_BLACKLIST", ""))

	return &Config{
		Enabled:         enabled,
		DefaultLimit:    defaultLimit,
		DefaultWindow:   defaultWindow,
		CleanupInterval: cleanupInterval,
		Whitelist:       whitelist,
		Blacklist:       blacklist,
		EndpointConfigs: DefaultEndpointConfigs(generationsPerMinute),
	}
}

// DefaultEndpointConfigs returns the endpoint-specific configurations.
// Generation endpoints share the generation limit; session creation and
// captcha refresh get a moderate limit.
func DefaultEndpointConfigs(generationsPerMinute int) []EndpointConfig {
	if generationsPerMinute <= 0 {
		generationsPerMinute = 10
	}
	burst := max(1, generationsPerMinute/5)
	gen := func(path string) EndpointConfig {
		return EndpointConfig{Path: path, Method: http.MethodPost, Limit: generationsPerMinute, Window: time.Minute, Burst: burst}
	}

	return []EndpointConfig{
		// Tier 1: generation (two model calls each)
		gen("/sessions/*/submit"),
		gen("/sessions/*/submit/stream"),
		gen("/sessions/*/redo"),
		gen("/sessions/*/redo/stream"),

		// Tier 2: session and challenge creation
		{Path: "/sessions", Method: http.MethodPost, Limit: 30, Window: time.Minute, Burst: 10},
		{Path: "/sessions/*/captcha", Method: http.MethodPost, Limit: 30, Window: time.Minute, Burst: 10},

		// Tier 3: everything else uses the default limit
		// Tier 4: health and metrics are unlimited, see MatchEndpoint
	}
}

// getEnvString gets an environment variable as a string with a default value.
func getEnvString(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer with a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool gets an environment variable as a boolean with a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseIPList parses a comma-separated list of IP addresses into a map.
func parseIPList(list string) map[string]bool {
	result := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			result[ip] = true
		}
	}
	return result
}
