package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
)

// Captcha environment variables.
const (
	EnvCaptchaSecret     = "CAPTCHA_SECRET"
	EnvCaptchaTTLMinutes = "CAPTCHA_TTL_MINUTES"
)

const minCaptchaSecretLength = 16

// CaptchaConfig holds the key and lifetime for signed verification challenges.
type CaptchaConfig struct {
	Secret     string
	TTLMinutes int
	// Ephemeral is true when the secret was generated at startup; challenges
	// then do not survive a restart.
	Ephemeral bool
}

// NewCaptchaConfig creates a captcha configuration from environment variables.
// It reads CAPTCHA_SECRET and CAPTCHA_TTL_MINUTES (default: 15). A missing
// secret is replaced by a random one and Ephemeral is set.
func NewCaptchaConfig() (*CaptchaConfig, error) {
	config := &CaptchaConfig{
		Secret:     os.Getenv(EnvCaptchaSecret),
		TTLMinutes: 15,
	}

	if ttl := os.Getenv(EnvCaptchaTTLMinutes); ttl != "" {
		minutes, err := strconv.Atoi(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %v", EnvCaptchaTTLMinutes, err)
		}
		config.TTLMinutes = minutes
	}

	if config.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		config.Secret = secret
		config.Ephemeral = true
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}
	return config, nil
}

// normalize validates the configuration.
func (c *CaptchaConfig) normalize() error {
	if len(c.Secret) < minCaptchaSecretLength {
		return fmt.Errorf("%s must be at least %d characters", EnvCaptchaSecret, minCaptchaSecretLength)
	}
	if c.TTLMinutes < 1 {
		return fmt.Errorf("%s must be at least 1 minute, got: %d", EnvCaptchaTTLMinutes, c.TTLMinutes)
	}
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate captcha secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
