package oauth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/lumenfeed/lumen/pkg/config"
)

const googleIssuer = "https://accounts.google.com"

// GoogleProvider authenticates through Google's OIDC endpoints. Discovery
// runs once at construction; the userinfo endpoint supplies the profile.
type GoogleProvider struct {
	provider *oidc.Provider
	config   *oauth2.Config
}

// NewGoogleProvider discovers Google's OIDC configuration and builds the
// oauth2 client config.
func NewGoogleProvider(ctx context.Context, cfg config.OAuthProviderConfig) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google oidc discovery failed: %w", err)
	}

	return &GoogleProvider{
		provider: provider,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}

func (g *GoogleProvider) Name() string { return "google" }

// AuthURL builds the Google consent-page URL for the given state
func (g *GoogleProvider) AuthURL(state string) string {
	return g.config.AuthCodeURL(state)
}

// FetchProfile exchanges the authorization code and reads the userinfo
// endpoint.
func (g *GoogleProvider) FetchProfile(ctx context.Context, code string) (Profile, error) {
	oauth2Token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: google code exchange: %v", ErrProviderUnavailable, err)
	}

	userInfo, err := g.provider.UserInfo(ctx, oauth2.StaticTokenSource(oauth2Token))
	if err != nil {
		return Profile{}, fmt.Errorf("%w: google userinfo: %v", ErrProviderUnavailable, err)
	}

	var gp GoogleProfile
	if err := userInfo.Claims(&gp); err != nil {
		return Profile{}, fmt.Errorf("%w: google userinfo decode: %v", ErrProviderUnavailable, err)
	}

	return gp.Normalize(), nil
}
