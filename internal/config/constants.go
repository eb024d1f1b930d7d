package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Timeout applied to every outbound provider HTTP call (token exchange,
// refresh, profile fetch, revoke). Provider calls are single-attempt.
const ProviderHTTPTimeout = 10 * time.Second

// OAuth state parameter validity window
const StateMaxAge = 10 * time.Minute

// Lead window before token expiry at which a refresh is triggered
const TokenRefreshLead = 5 * time.Minute

// Default rate limiting
const DefaultRateLimitPerMin = 60
