package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dealflow/platform-server-go/internal/config"
	apperrors "github.com/dealflow/platform-server-go/internal/errors"
	"github.com/dealflow/platform-server-go/internal/model"
)

// ProfileParser normalizes a provider's profile payload into model.Profile.
type ProfileParser func(body []byte) (model.Profile, error)

// ProviderConfig is the per-provider policy: endpoints, scope vocabulary, and
// how credentials are transmitted. One Adapter implementation serves all
// providers; only this data differs.
type ProviderConfig struct {
	Name       string
	AuthURL    string
	TokenURL   string
	ProfileURL string
	RevokeURL  string

	// ScopeTable maps capability names to provider scope lists.
	ScopeTable map[string][]string

	// DefaultCapabilities are always requested, even when the caller asks for
	// nothing.
	DefaultCapabilities []string

	// ExtraAuthParams are appended to every authorization URL
	// (e.g. access_type=offline for Google).
	ExtraAuthParams url.Values

	// BasicAuthToken selects how client credentials reach the token endpoint:
	// an Authorization: Basic header (Zoom) or form-body fields (the rest).
	BasicAuthToken bool

	ParseProfile ProfileParser
}

// Adapter performs the OAuth2 lifecycle against one provider. All provider
// HTTP calls are synchronous and single-attempt; transient failures surface
// to the caller.
type Adapter struct {
	cfg         ProviderConfig
	creds       config.ProviderCredentials
	redirectURI string
	stateSecret string
	client      *http.Client
}

func NewAdapter(cfg ProviderConfig, creds config.ProviderCredentials, redirectURI, stateSecret string) *Adapter {
	return &Adapter{
		cfg:         cfg,
		creds:       creds,
		redirectURI: redirectURI,
		stateSecret: stateSecret,
		client:      &http.Client{Timeout: config.ProviderHTTPTimeout},
	}
}

func (a *Adapter) Name() string {
	return a.cfg.Name
}

func (a *Adapter) RedirectURI() string {
	return a.redirectURI
}

// Scopes resolves capability names into the provider scope list: the union of
// the default capabilities and the requested ones, each scope exactly once,
// in first-seen order.
func (a *Adapter) Scopes(capabilities []string) ([]string, error) {
	seen := make(map[string]bool)
	var scopes []string

	add := func(capability string) error {
		list, ok := a.cfg.ScopeTable[capability]
		if !ok {
			return apperrors.InvalidInput("capability", fmt.Sprintf("%q is not supported by %s", capability, a.cfg.Name))
		}
		for _, s := range list {
			if !seen[s] {
				seen[s] = true
				scopes = append(scopes, s)
			}
		}
		return nil
	}

	for _, capability := range a.cfg.DefaultCapabilities {
		if err := add(capability); err != nil {
			return nil, err
		}
	}
	for _, capability := range capabilities {
		if err := add(capability); err != nil {
			return nil, err
		}
	}

	return scopes, nil
}

// BuildAuthorizationURL returns the provider authorization URL for the given
// user and capabilities, with a signed state parameter embedded.
func (a *Adapter) BuildAuthorizationURL(userID string, capabilities []string) (string, []string, error) {
	if !a.creds.Enabled() {
		return "", nil, apperrors.Configuration(a.cfg.Name)
	}

	scopes, err := a.Scopes(capabilities)
	if err != nil {
		return "", nil, err
	}

	params := url.Values{
		"client_id":     {a.creds.ClientID},
		"redirect_uri":  {a.redirectURI},
		"response_type": {"code"},
		"scope":         {strings.Join(scopes, " ")},
		"state":         {EncodeState(a.stateSecret, userID, time.Now())},
	}
	for key, values := range a.cfg.ExtraAuthParams {
		for _, v := range values {
			params.Add(key, v)
		}
	}

	return a.cfg.AuthURL + "?" + params.Encode(), scopes, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
}

// ExchangeCode trades an authorization code for a token pair.
func (a *Adapter) ExchangeCode(ctx context.Context, code string) (model.TokenSet, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {a.redirectURI},
	}

	ts, raw, err := a.postToken(ctx, data)
	if err != nil {
		return model.TokenSet{}, apperrors.TokenExchange(a.cfg.Name, raw, err)
	}
	return ts, nil
}

// Refresh trades a refresh token for a new token pair. Some providers rotate
// the refresh token atomically on this call; the caller must persist the
// returned pair immediately or lose access.
func (a *Adapter) Refresh(ctx context.Context, refreshToken string) (model.TokenSet, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	ts, raw, err := a.postToken(ctx, data)
	if err != nil {
		return model.TokenSet{}, apperrors.TokenRefresh(a.cfg.Name, raw, err)
	}
	return ts, nil
}

func (a *Adapter) postToken(ctx context.Context, data url.Values) (model.TokenSet, string, error) {
	if !a.creds.Enabled() {
		return model.TokenSet{}, "", apperrors.Configuration(a.cfg.Name)
	}

	if a.cfg.BasicAuthToken {
		data.Del("client_id")
		data.Del("client_secret")
	} else {
		data.Set("client_id", a.creds.ClientID)
		data.Set("client_secret", a.creds.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return model.TokenSet{}, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.cfg.BasicAuthToken {
		req.SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return model.TokenSet{}, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.TokenSet{}, "", fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().Str("provider", a.cfg.Name).Int("status", resp.StatusCode).Msg("token endpoint returned non-200")
		return model.TokenSet{}, string(body), fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return model.TokenSet{}, string(body), fmt.Errorf("decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return model.TokenSet{}, string(body), fmt.Errorf("token response contains no access token")
	}

	return model.TokenSet{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    time.Duration(tr.ExpiresIn) * time.Second,
		Scope:        tr.Scope,
	}, "", nil
}

// FetchProfile retrieves and normalizes the provider's user profile.
func (a *Adapter) FetchProfile(ctx context.Context, accessToken string) (model.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.ProfileURL, nil)
	if err != nil {
		return model.Profile{}, apperrors.ProfileFetch(a.cfg.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return model.Profile{}, apperrors.ProfileFetch(a.cfg.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Profile{}, apperrors.ProfileFetch(a.cfg.Name, fmt.Errorf("read profile response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		log.Error().Str("provider", a.cfg.Name).Int("status", resp.StatusCode).Msg("profile endpoint returned non-200")
		return model.Profile{}, apperrors.ProfileFetch(a.cfg.Name, fmt.Errorf("profile endpoint returned status %d", resp.StatusCode))
	}

	profile, err := a.cfg.ParseProfile(body)
	if err != nil {
		return model.Profile{}, apperrors.ProfileFetch(a.cfg.Name, err)
	}
	return profile, nil
}

// Revoke tells the provider to invalidate a token. Revocation is advisory
// cleanup: failures are logged and swallowed, and providers without a revoke
// endpoint are a no-op.
func (a *Adapter) Revoke(ctx context.Context, accessToken string) {
	if a.cfg.RevokeURL == "" {
		return
	}

	data := url.Values{"token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.RevokeURL, strings.NewReader(data.Encode()))
	if err != nil {
		log.Warn().Err(err).Str("provider", a.cfg.Name).Msg("failed to build revoke request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if a.cfg.BasicAuthToken {
		req.SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("provider", a.cfg.Name).Msg("token revoke failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		log.Warn().Str("provider", a.cfg.Name).Int("status", resp.StatusCode).Msg("token revoke rejected")
	}
}

// EffectiveCapabilities is the union of the default capabilities and the
// requested ones, each exactly once, defaults first.
func (a *Adapter) EffectiveCapabilities(requested []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, capability := range append(append([]string{}, a.cfg.DefaultCapabilities...), requested...) {
		if !seen[capability] {
			seen[capability] = true
			out = append(out, capability)
		}
	}
	return out
}

// CapabilitiesForScopes maps a granted scope string back onto capability
// names: a capability is granted when every scope backing it was granted.
// An empty scope string (some providers omit it) yields nil; callers fall
// back to the requested capabilities.
func (a *Adapter) CapabilitiesForScopes(scope string) []string {
	if scope == "" {
		return nil
	}
	granted := make(map[string]bool)
	for _, s := range strings.Fields(scope) {
		granted[s] = true
	}

	var out []string
	for capability, list := range a.cfg.ScopeTable {
		ok := true
		for _, s := range list {
			if !granted[s] {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, capability)
		}
	}
	sort.Strings(out)
	return out
}

// ExpiringSoon reports whether a token expiry falls within the refresh lead
// window. Callers use it to refresh proactively before a provider call.
func ExpiringSoon(expiresAt time.Time) bool {
	return time.Until(expiresAt) <= config.TokenRefreshLead
}
