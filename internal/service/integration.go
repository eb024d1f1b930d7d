package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealflow/platform-server-go/internal/audit"
	"github.com/dealflow/platform-server-go/internal/config"
	apperrors "github.com/dealflow/platform-server-go/internal/errors"
	"github.com/dealflow/platform-server-go/internal/model"
	"github.com/dealflow/platform-server-go/internal/oauth"
	"github.com/dealflow/platform-server-go/internal/repository"
)

// StateReplayGuard records consumed OAuth state values for the remainder of
// their validity window. MarkUsed returns false when the state was seen
// before.
type StateReplayGuard interface {
	MarkUsed(ctx context.Context, signature string, ttl time.Duration) (bool, error)
}

// Notifier delivers best-effort user notifications. Implementations must not
// return errors to callers; delivery failure is logged and dropped.
type Notifier interface {
	ConnectionEstablished(email, provider, capability string)
}

type ConnectResult struct {
	AuthURL      string   `json:"authUrl"`
	Scopes       []string `json:"scopes"`
	Capabilities []string `json:"capabilities"`
}

type IntegrationService struct {
	registry    *oauth.Registry
	repo        repository.IntegrationRepository
	replayGuard StateReplayGuard
	notifier    Notifier
	stateSecret string
}

func NewIntegrationService(
	registry *oauth.Registry,
	repo repository.IntegrationRepository,
	replayGuard StateReplayGuard,
	notifier Notifier,
	stateSecret string,
) *IntegrationService {
	return &IntegrationService{
		registry:    registry,
		repo:        repo,
		replayGuard: replayGuard,
		notifier:    notifier,
		stateSecret: stateSecret,
	}
}

// Connect builds the provider authorization URL for the requested
// capabilities and echoes the resolved scope list back to the caller.
func (s *IntegrationService) Connect(ctx context.Context, userID, provider string, capabilities []string) (*ConnectResult, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	authURL, scopes, err := adapter.BuildAuthorizationURL(userID, capabilities)
	if err != nil {
		return nil, err
	}

	return &ConnectResult{
		AuthURL:      authURL,
		Scopes:       scopes,
		Capabilities: adapter.EffectiveCapabilities(capabilities),
	}, nil
}

// HandleCallback runs the token-exchange half of a connect attempt: validate
// the state, guard against replay, exchange the code, fetch the profile, and
// replace any prior records for the granted capabilities. One record is
// written per granted capability; all share the token pair.
func (s *IntegrationService) HandleCallback(ctx context.Context, provider, code, state string) ([]*model.Integration, error) {
	adapter, err := s.registry.Get(provider)
	if err != nil {
		return nil, err
	}

	userID, signature, err := oauth.DecodeState(s.stateSecret, state, config.StateMaxAge, time.Now())
	if err != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventOAuthFailure, Provider: provider,
			Details: map[string]interface{}{"reason": "invalid_state"}})
		return nil, apperrors.InvalidState(err.Error())
	}

	fresh, err := s.replayGuard.MarkUsed(ctx, signature, config.StateMaxAge)
	if err != nil {
		// The guard is an extra defense on top of the signed expiring state;
		// losing redis does not take down the callback path.
		log.Warn().Err(err).Msg("state replay guard unavailable, proceeding")
	} else if !fresh {
		audit.Log(ctx, audit.Event{Type: audit.EventStateReplay, UserID: userID, Provider: provider})
		return nil, apperrors.InvalidState("state already used")
	}

	tokens, err := adapter.ExchangeCode(ctx, code)
	if err != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventOAuthFailure, UserID: userID, Provider: provider,
			Details: map[string]interface{}{"stage": "token_exchange"}})
		return nil, err
	}

	profile, err := adapter.FetchProfile(ctx, tokens.AccessToken)
	if err != nil {
		audit.Log(ctx, audit.Event{Type: audit.EventOAuthFailure, UserID: userID, Provider: provider,
			Details: map[string]interface{}{"stage": "profile_fetch"}})
		return nil, err
	}

	capabilities := adapter.CapabilitiesForScopes(tokens.Scope)
	if len(capabilities) == 0 {
		capabilities = adapter.EffectiveCapabilities(nil)
	}

	var refreshToken *string
	if tokens.RefreshToken != "" {
		refreshToken = &tokens.RefreshToken
	}
	var avatarURL *string
	if profile.AvatarURL != "" {
		avatarURL = &profile.AvatarURL
	}

	expiresAt := tokens.ExpiresAt(time.Now())
	scopes := splitScopes(tokens.Scope)

	records := make([]*model.Integration, 0, len(capabilities))
	for _, capability := range capabilities {
		record, err := s.repo.Upsert(ctx, model.UpsertIntegrationParams{
			UserID:         userID,
			Provider:       provider,
			Capability:     capability,
			AccessToken:    tokens.AccessToken,
			RefreshToken:   refreshToken,
			TokenExpiresAt: expiresAt,
			Scopes:         scopes,
			DisplayName:    profile.DisplayName,
			Email:          profile.Email,
			AvatarURL:      avatarURL,
		})
		if err != nil {
			return nil, apperrors.Database(err)
		}
		records = append(records, record)

		audit.Log(ctx, audit.Event{Type: audit.EventIntegrationConnect, UserID: userID, Provider: provider,
			Details: map[string]interface{}{"capability": capability}})

		if s.notifier != nil {
			s.notifier.ConnectionEstablished(profile.Email, provider, capability)
		}
	}

	log.Info().
		Str("provider", provider).
		Str("userId", userID).
		Int("capabilities", len(records)).
		Msg("integration connected")

	return records, nil
}

// List returns the user's active integrations. Token columns are excluded by
// the JSON mapping; nothing secret leaves this method.
func (s *IntegrationService) List(ctx context.Context, userID string) ([]*model.Integration, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return records, nil
}

// Disconnect removes an integration owned by the caller. The provider-side
// revoke is best-effort; the local delete is the operation that matters.
func (s *IntegrationService) Disconnect(ctx context.Context, userID, id string) error {
	record, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if record == nil {
		return apperrors.NotFound("integration")
	}

	if adapter, err := s.registry.Get(record.Provider); err == nil {
		adapter.Revoke(ctx, record.AccessToken)
	}

	deleted, err := s.repo.DeleteByIDAndUser(ctx, id, userID)
	if err != nil {
		return apperrors.Database(err)
	}
	if !deleted {
		return apperrors.NotFound("integration")
	}

	audit.Log(ctx, audit.Event{Type: audit.EventIntegrationDisconnect, UserID: userID, Provider: record.Provider,
		Details: map[string]interface{}{"capability": record.Capability}})

	return nil
}

// FreshAccessToken returns an access token valid for at least the refresh
// lead window, refreshing lazily when the stored one is close to expiry. The
// refreshed pair is persisted before the token is returned, since some
// providers invalidate the old pair atomically on refresh.
func (s *IntegrationService) FreshAccessToken(ctx context.Context, userID, provider, capability string) (string, error) {
	record, err := s.repo.FindByTriple(ctx, userID, provider, capability)
	if err != nil {
		return "", apperrors.Database(err)
	}
	if record == nil {
		return "", apperrors.NotFound("integration")
	}

	if !oauth.ExpiringSoon(record.TokenExpiresAt) {
		return record.AccessToken, nil
	}

	if record.RefreshToken == nil {
		return "", apperrors.TokenRefresh(provider, "", errors.New("no refresh token on record"))
	}

	adapter, err := s.registry.Get(provider)
	if err != nil {
		return "", err
	}

	tokens, err := adapter.Refresh(ctx, *record.RefreshToken)
	if err != nil {
		return "", err
	}

	var newRefresh *string
	if tokens.RefreshToken != "" {
		newRefresh = &tokens.RefreshToken
	}
	if err := s.repo.UpdateTokens(ctx, record.ID, tokens.AccessToken, newRefresh, tokens.ExpiresAt(time.Now())); err != nil {
		return "", apperrors.Database(err)
	}

	audit.Log(ctx, audit.Event{Type: audit.EventTokenRefresh, UserID: userID, Provider: provider,
		Details: map[string]interface{}{"capability": capability}})

	return tokens.AccessToken, nil
}

func splitScopes(scope string) []string {
	if scope == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range strings.Fields(scope) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
