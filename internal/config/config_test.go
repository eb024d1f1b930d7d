package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:               8080,
		DatabaseURL:        "postgres://localhost/dealflow",
		RedisURL:           "redis://localhost:6379",
		PublicBaseURL:      "http://localhost:8080",
		StateSecret:        strings.Repeat("s", 40),
		GoogleClientID:     "google-id",
		GoogleClientSecret: "google-secret",
	}
}

func TestProviderCredentials(t *testing.T) {
	assert.True(t, ProviderCredentials{ClientID: "a", ClientSecret: "b"}.Enabled())
	assert.False(t, ProviderCredentials{ClientID: "a"}.Enabled())
	assert.False(t, ProviderCredentials{}.Enabled())
}

func TestValidate(t *testing.T) {
	t.Run("accepts a complete configuration", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate(false))
	})

	t.Run("rejects partially configured provider", func(t *testing.T) {
		cfg := validConfig()
		cfg.ZoomClientID = "zoom-id"

		err := cfg.Validate(false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "zoom")
		assert.Contains(t, err.Error(), "partially configured")
	})

	t.Run("rejects placeholder credentials", func(t *testing.T) {
		cfg := validConfig()
		cfg.GoogleClientSecret = "your-client-secret"

		err := cfg.Validate(false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "placeholder")
	})

	t.Run("placeholder check is case insensitive", func(t *testing.T) {
		cfg := validConfig()
		cfg.GoogleClientID = "CHANGE-ME"

		assert.Error(t, cfg.Validate(false))
	})

	t.Run("no providers configured is allowed", func(t *testing.T) {
		cfg := validConfig()
		cfg.GoogleClientID = ""
		cfg.GoogleClientSecret = ""

		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("production requires a strong state secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.StateSecret = "short"

		err := cfg.Validate(true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OAUTH_STATE_SECRET")
	})

	t.Run("production accepts a long state secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.StateSecret = strings.Repeat("s", 40)

		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("smtp host without a from address is rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.SMTPHost = "smtp.example.com"

		err := cfg.Validate(false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SMTP_FROM")
	})

	t.Run("smtp host with a from address is accepted", func(t *testing.T) {
		cfg := validConfig()
		cfg.SMTPHost = "smtp.example.com"
		cfg.SMTPFrom = "noreply@example.com"

		assert.NoError(t, cfg.Validate(false))
	})
}

func TestDerivedValues(t *testing.T) {
	cfg := validConfig()
	cfg.ScrapeTimeoutSeconds = 30
	cfg.RefreshJobIntervalSeconds = 120

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "30s", cfg.ScrapeTimeout().String())
	assert.Equal(t, "2m0s", cfg.RefreshJobInterval().String())
}

func TestProviderAccessors(t *testing.T) {
	cfg := validConfig()
	cfg.ZoomClientID = "z-id"
	cfg.ZoomClientSecret = "z-secret"

	assert.True(t, cfg.Google().Enabled())
	assert.True(t, cfg.Zoom().Enabled())
	assert.False(t, cfg.Apollo().Enabled())
	assert.False(t, cfg.Microsoft().Enabled())
	assert.Equal(t, "z-id", cfg.Zoom().ClientID)
}
