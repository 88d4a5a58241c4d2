package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"api_key": "key-from-file",
		"redis_url": "redis://localhost:6379/0",
		"port": 9090,
		"generation_timeout": "90s",
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "key-from-file", cfg.APIKey)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.GenerationTimeoutDuration())
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"defaults", Defaults(), ""},
		{"empty", Config{}, ""},
		{"port out of range", Config{Port: 70000}, "port"},
		{"negative concurrency", Config{MaxConcurrentGenerations: -1}, "max_concurrent_generations"},
		{"negative rate", Config{GenerationsPerMinute: -1}, "generations_per_minute"},
		{"bad duration", Config{GenerationTimeout: "soon"}, "generation_timeout"},
		{"negative duration", Config{SessionIdleTimeout: "-1m"}, "session_idle_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvRedisURL, "redis://cache:6379/1")
	t.Setenv(EnvImageModel, "custom-image")
	t.Setenv(EnvPort, "7070")

	cfg := Config{APIKey: "file-key", TextModel: "file-text"}
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, "custom-image", cfg.ImageModel)
	assert.Equal(t, 7070, cfg.Port)
}

func TestApplyEnv_UnsetKeepsFileValues(t *testing.T) {
	t.Setenv(EnvTextModel, "")

	cfg := Config{TextModel: "file-text"}
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, "file-text", cfg.TextModel)
}

func TestApplyEnv_InvalidPort(t *testing.T) {
	t.Setenv(EnvPort, "eighty")

	cfg := Config{}
	err := cfg.ApplyEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvPort)
}

func TestMergeWithDefaults(t *testing.T) {
	partial := Config{
		APIKey: "custom-key",
		Port:   9000,
	}

	merged := partial.MergeWithDefaults(Defaults())

	// Custom values should be preserved
	assert.Equal(t, "custom-key", merged.APIKey)
	assert.Equal(t, 9000, merged.Port)

	// Default values should fill in empty fields
	assert.Equal(t, "gemini-2.5-flash", merged.TextModel)
	assert.Equal(t, "gemini-2.5-flash-image", merged.ImageModel)
	assert.Equal(t, 4, merged.MaxConcurrentGenerations)
	assert.Equal(t, []string{"*"}, merged.AllowedOrigins)
	assert.Equal(t, 2*time.Minute, merged.GenerationTimeoutDuration())
	assert.Equal(t, time.Hour, merged.SessionIdleTimeoutDuration())
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{APIKey: "key"}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "key", merged.APIKey)
	assert.Zero(t, merged.Port)
	assert.Zero(t, merged.GenerationTimeoutDuration())
}
