package oauth

import (
	"fmt"
	"sort"

	"github.com/dealflow/platform-server-go/internal/config"
	apperrors "github.com/dealflow/platform-server-go/internal/errors"
)

// Registry holds one Adapter per configured provider.
type Registry struct {
	adapters map[string]*Adapter
}

// NewRegistry builds adapters for every provider with complete credentials.
// Unconfigured providers are left out; looking them up yields a
// configuration error rather than a half-working adapter.
func NewRegistry(cfg *config.Config) *Registry {
	redirectURI := func(provider string) string {
		return fmt.Sprintf("%s/api/integrations/%s/callback", cfg.PublicBaseURL, provider)
	}

	adapters := make(map[string]*Adapter)
	for _, pc := range []struct {
		cfg   ProviderConfig
		creds config.ProviderCredentials
	}{
		{GoogleConfig(), cfg.Google()},
		{ApolloConfig(), cfg.Apollo()},
		{ZoomConfig(), cfg.Zoom()},
		{MicrosoftConfig(), cfg.Microsoft()},
	} {
		if !pc.creds.Enabled() {
			continue
		}
		adapters[pc.cfg.Name] = NewAdapter(pc.cfg, pc.creds, redirectURI(pc.cfg.Name), cfg.StateSecret)
	}

	return &Registry{adapters: adapters}
}

// NewRegistryWithAdapters is a constructor for tests and custom wiring.
func NewRegistryWithAdapters(adapters map[string]*Adapter) *Registry {
	return &Registry{adapters: adapters}
}

func (r *Registry) Get(provider string) (*Adapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, apperrors.Configuration(provider)
	}
	return adapter, nil
}

func (r *Registry) Enabled() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
