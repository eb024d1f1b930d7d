package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

// Credential values that indicate a provider was never actually configured.
// These show up in copied .env templates and must fail validation at startup
// rather than at first token exchange.
var placeholderCredentials = []string{
	"your-client-id", "your-client-secret", "change-me", "placeholder", "xxx", "TODO",
}

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

// ProviderCredentials holds the OAuth client credentials for one provider.
// A provider is enabled when both values are set.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

func (p ProviderCredentials) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// PublicBaseURL is the externally reachable origin of this server; OAuth
	// redirect URIs are derived from it.
	PublicBaseURL      string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`
	SuccessRedirectURL string `env:"OAUTH_SUCCESS_REDIRECT_URL" envDefault:"/settings/integrations?connected=1"`
	FailureRedirectURL string `env:"OAUTH_FAILURE_REDIRECT_URL" envDefault:"/settings/integrations?error=1"`

	StateSecret   string `env:"OAUTH_STATE_SECRET,required"`
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	GoogleClientID        string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"GOOGLE_CLIENT_SECRET"`
	ApolloClientID        string `env:"APOLLO_CLIENT_ID"`
	ApolloClientSecret    string `env:"APOLLO_CLIENT_SECRET"`
	ZoomClientID          string `env:"ZOOM_CLIENT_ID"`
	ZoomClientSecret      string `env:"ZOOM_CLIENT_SECRET"`
	MicrosoftClientID     string `env:"MS_CLIENT_ID"`
	MicrosoftClientSecret string `env:"MS_CLIENT_SECRET"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	PythonBin     string `env:"PYTHON_BIN" envDefault:"python3"`
	ScraperScript string `env:"SCRAPER_SCRIPT" envDefault:"scripts/scrape_website.py"`

	ScrapeTimeoutSeconds      int `env:"SCRAPE_TIMEOUT_SECONDS" envDefault:"60"`
	RefreshJobIntervalSeconds int `env:"REFRESH_JOB_INTERVAL_SECONDS" envDefault:"300"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.ScrapeTimeoutSeconds) * time.Second
}

func (c *Config) RefreshJobInterval() time.Duration {
	return time.Duration(c.RefreshJobIntervalSeconds) * time.Second
}

func (c *Config) Google() ProviderCredentials {
	return ProviderCredentials{ClientID: c.GoogleClientID, ClientSecret: c.GoogleClientSecret}
}

func (c *Config) Apollo() ProviderCredentials {
	return ProviderCredentials{ClientID: c.ApolloClientID, ClientSecret: c.ApolloClientSecret}
}

func (c *Config) Zoom() ProviderCredentials {
	return ProviderCredentials{ClientID: c.ZoomClientID, ClientSecret: c.ZoomClientSecret}
}

func (c *Config) Microsoft() ProviderCredentials {
	return ProviderCredentials{ClientID: c.MicrosoftClientID, ClientSecret: c.MicrosoftClientSecret}
}

func (c *Config) Validate(isProduction bool) error {
	providers := map[string]ProviderCredentials{
		"google":    c.Google(),
		"apollo":    c.Apollo(),
		"zoom":      c.Zoom(),
		"microsoft": c.Microsoft(),
	}

	enabled := 0
	for name, creds := range providers {
		if creds.ClientID == "" && creds.ClientSecret == "" {
			continue
		}
		if creds.ClientID == "" || creds.ClientSecret == "" {
			return fmt.Errorf("%s OAuth is partially configured: both client id and client secret must be set", name)
		}
		if isPlaceholder(creds.ClientID) || isPlaceholder(creds.ClientSecret) {
			return fmt.Errorf("%s OAuth credentials contain a placeholder value; set real credentials or unset both", name)
		}
		enabled++
	}
	if enabled == 0 {
		log.Warn().Msg("no OAuth providers configured: all connect requests will fail")
	}

	if isProduction {
		if err := validateSecret("OAUTH_STATE_SECRET", c.StateSecret); err != nil {
			return err
		}
		if c.EncryptionKey == "" {
			log.Warn().Msg("ENCRYPTION_KEY is empty in production: provider tokens will not be encrypted at rest")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !strings.HasPrefix(c.PublicBaseURL, "https://") {
			log.Warn().Msg("PUBLIC_BASE_URL is not https in production: OAuth redirect URIs will be rejected by most providers")
		}
	}

	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}

	return nil
}

func isPlaceholder(value string) bool {
	for _, p := range placeholderCredentials {
		if strings.EqualFold(value, p) {
			return true
		}
	}
	return false
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
