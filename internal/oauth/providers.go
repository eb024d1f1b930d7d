package oauth

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/dealflow/platform-server-go/internal/model"
)

// Provider configurations. The lifecycle logic lives entirely in Adapter;
// these describe where each provider's endpoints are, which scopes back each
// capability, and what its profile payload looks like.

func GoogleConfig() ProviderConfig {
	return ProviderConfig{
		Name:       model.ProviderGoogle,
		AuthURL:    "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:   "https://oauth2.googleapis.com/token",
		ProfileURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		RevokeURL:  "https://oauth2.googleapis.com/revoke",
		ScopeTable: map[string][]string{
			model.CapabilityProfile: {
				"openid",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			model.CapabilityCalendar: {
				"https://www.googleapis.com/auth/calendar.readonly",
				"https://www.googleapis.com/auth/calendar.events",
			},
			model.CapabilityDrive: {
				"https://www.googleapis.com/auth/drive.readonly",
				"https://www.googleapis.com/auth/drive.file",
			},
		},
		DefaultCapabilities: []string{model.CapabilityProfile},
		ExtraAuthParams: url.Values{
			"access_type": {"offline"},
			"prompt":      {"consent"},
		},
		ParseProfile: parseGoogleProfile,
	}
}

func ApolloConfig() ProviderConfig {
	return ProviderConfig{
		Name:       model.ProviderApollo,
		AuthURL:    "https://app.apollo.io/#/oauth/authorize",
		TokenURL:   "https://app.apollo.io/api/v1/oauth/token",
		ProfileURL: "https://app.apollo.io/api/v1/users/me",
		ScopeTable: map[string][]string{
			model.CapabilityProfile:  {"read_user_profile"},
			model.CapabilityContacts: {"read_contacts", "write_contacts"},
		},
		DefaultCapabilities: []string{model.CapabilityProfile},
		ParseProfile:        parseApolloProfile,
	}
}

func ZoomConfig() ProviderConfig {
	return ProviderConfig{
		Name:       model.ProviderZoom,
		AuthURL:    "https://zoom.us/oauth/authorize",
		TokenURL:   "https://zoom.us/oauth/token",
		ProfileURL: "https://api.zoom.us/v2/users/me",
		RevokeURL:  "https://zoom.us/oauth/revoke",
		ScopeTable: map[string][]string{
			model.CapabilityProfile:  {"user:read"},
			model.CapabilityMeetings: {"meeting:read", "meeting:write"},
		},
		DefaultCapabilities: []string{model.CapabilityProfile},
		// Zoom wants client credentials in a Basic auth header, not the body.
		BasicAuthToken: true,
		ParseProfile:   parseZoomProfile,
	}
}

func MicrosoftConfig() ProviderConfig {
	return ProviderConfig{
		Name:       model.ProviderMicrosoft,
		AuthURL:    "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenURL:   "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		ProfileURL: "https://graph.microsoft.com/v1.0/me",
		ScopeTable: map[string][]string{
			model.CapabilityProfile:  {"openid", "email", "offline_access", "User.Read"},
			model.CapabilityCalendar: {"Calendars.Read", "Calendars.ReadWrite"},
		},
		DefaultCapabilities: []string{model.CapabilityProfile},
		ParseProfile:        parseMicrosoftProfile,
	}
}

func parseGoogleProfile(body []byte) (model.Profile, error) {
	var p struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return model.Profile{}, err
	}
	if p.Email == "" {
		return model.Profile{}, fmt.Errorf("google profile contains no email")
	}
	return model.Profile{
		ProviderUserID: p.ID,
		Email:          p.Email,
		DisplayName:    p.Name,
		AvatarURL:      p.Picture,
	}, nil
}

func parseApolloProfile(body []byte) (model.Profile, error) {
	var p struct {
		User struct {
			ID           string `json:"id"`
			Name         string `json:"name"`
			EmailAddress string `json:"email_address"`
			Email        string `json:"email"`
			PhotoURL     string `json:"photo_url"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return model.Profile{}, err
	}
	email := p.User.EmailAddress
	if email == "" {
		email = p.User.Email
	}
	if email == "" {
		return model.Profile{}, fmt.Errorf("apollo profile contains no email")
	}
	return model.Profile{
		ProviderUserID: p.User.ID,
		Email:          email,
		DisplayName:    p.User.Name,
		AvatarURL:      p.User.PhotoURL,
	}, nil
}

func parseZoomProfile(body []byte) (model.Profile, error) {
	var p struct {
		ID        string `json:"id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
		PicURL    string `json:"pic_url"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return model.Profile{}, err
	}
	if p.Email == "" {
		return model.Profile{}, fmt.Errorf("zoom profile contains no email")
	}
	return model.Profile{
		ProviderUserID: p.ID,
		Email:          p.Email,
		DisplayName:    strings.TrimSpace(p.FirstName + " " + p.LastName),
		AvatarURL:      p.PicURL,
	}, nil
}

func parseMicrosoftProfile(body []byte) (model.Profile, error) {
	var p struct {
		ID                string `json:"id"`
		DisplayName       string `json:"displayName"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return model.Profile{}, err
	}
	email := p.Mail
	if email == "" {
		email = p.UserPrincipalName
	}
	if email == "" {
		return model.Profile{}, fmt.Errorf("microsoft profile contains no email")
	}
	return model.Profile{
		ProviderUserID: p.ID,
		Email:          email,
		DisplayName:    p.DisplayName,
	}, nil
}
