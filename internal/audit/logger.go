package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventIntegrationConnect    EventType = "integration_connect"
	EventIntegrationDisconnect EventType = "integration_disconnect"
	EventOAuthFailure          EventType = "oauth_failure"
	EventStateReplay           EventType = "state_replay"
	EventAuthFailure           EventType = "auth_failure"
	EventRateLimitExceed       EventType = "rate_limit_exceeded"
	EventTokenRefresh          EventType = "token_refresh"
)

type Event struct {
	Type     EventType
	UserID   string
	Provider string
	Details  map[string]interface{}
}

// Log emits a structured security-audit record. Details must never contain
// token values.
func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "security").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.UserID != "" {
		logger = logger.With().Str("user_id", event.UserID).Logger()
	}
	if event.Provider != "" {
		logger = logger.With().Str("provider", event.Provider).Logger()
	}
	if len(event.Details) > 0 {
		logger = logger.With().Fields(event.Details).Logger()
	}

	logger.Info().Msg("audit event")
}
