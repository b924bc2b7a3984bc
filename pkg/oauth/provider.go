package oauth

import (
	"context"
	"strings"
)

// Provider is one configured OAuth provider. AuthURL builds the consent-page
// redirect for the given CSRF state; FetchProfile exchanges the callback code
// and retrieves the normalized profile.
type Provider interface {
	Name() string
	AuthURL(state string) string
	FetchProfile(ctx context.Context, code string) (Profile, error)
}

// NormalizeProvider canonicalizes a provider name from the callback query:
// trims whitespace and lowercases. When the name is empty the state fallback
// is used, since some providers echo the provider name back only through
// state.
func NormalizeProvider(name, stateFallback string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		n = strings.ToLower(strings.TrimSpace(stateFallback))
	}
	return n
}

// Registry holds the configured providers keyed by canonical name
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Lookup resolves a raw provider name (with state fallback) to a configured
// provider, or ErrUnsupportedProvider.
func (r *Registry) Lookup(name, stateFallback string) (Provider, error) {
	p, ok := r.providers[NormalizeProvider(name, stateFallback)]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return p, nil
}
