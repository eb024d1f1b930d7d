package model

import (
	"time"

	"github.com/lib/pq"
)

// Provider identifiers for third-party integrations.
const (
	ProviderGoogle    = "google"
	ProviderApollo    = "apollo"
	ProviderZoom      = "zoom"
	ProviderMicrosoft = "microsoft"
)

// Capability identifiers. A capability names a group of OAuth scopes
// requested together; the provider-specific scope lists live in the
// adapter configuration.
const (
	CapabilityProfile  = "profile"
	CapabilityCalendar = "calendar"
	CapabilityDrive    = "drive"
	CapabilityContacts = "contacts"
	CapabilityMeetings = "meetings"
)

func ValidProviders() []string {
	return []string{ProviderGoogle, ProviderApollo, ProviderZoom, ProviderMicrosoft}
}

// Integration is one authorized connection between a local user and one
// provider capability. At most one active row exists per
// (user, provider, capability); reconnecting replaces the previous row.
type Integration struct {
	ID             string         `db:"id" json:"id"`
	UserID         string         `db:"user_id" json:"userId"`
	Provider       string         `db:"provider" json:"provider"`
	Capability     string         `db:"capability" json:"capability"`
	AccessToken    string         `db:"access_token" json:"-"`
	RefreshToken   *string        `db:"refresh_token" json:"-"`
	TokenExpiresAt time.Time      `db:"token_expires_at" json:"tokenExpiresAt"`
	Scopes         pq.StringArray `db:"scopes" json:"scopes"`
	DisplayName    string         `db:"display_name" json:"displayName"`
	Email          string         `db:"email" json:"email"`
	AvatarURL      *string        `db:"avatar_url" json:"avatarUrl,omitempty"`
	IsActive       bool           `db:"is_active" json:"isActive"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updatedAt"`
}

type UpsertIntegrationParams struct {
	UserID         string
	Provider       string
	Capability     string
	AccessToken    string
	RefreshToken   *string
	TokenExpiresAt time.Time
	Scopes         []string
	DisplayName    string
	Email          string
	AvatarURL      *string
}

// TokenSet is the result of a token exchange or refresh.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Scope        string
}

// ExpiresAt converts the relative lifetime into an absolute expiry.
func (t TokenSet) ExpiresAt(now time.Time) time.Time {
	return now.Add(t.ExpiresIn)
}

// Profile is the provider-independent view of an authenticated user,
// normalized from whatever field names the provider's profile endpoint uses.
type Profile struct {
	ProviderUserID string
	Email          string
	DisplayName    string
	AvatarURL      string
}
