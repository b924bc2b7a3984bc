package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/lumenfeed/lumen/pkg/config"
)

const facebookGraphURL = "https://graph.facebook.com/v16.0/me"

// FacebookProvider authenticates through Facebook's OAuth endpoints and
// reads the profile from the Graph API.
type FacebookProvider struct {
	config   *oauth2.Config
	graphURL string
}

// NewFacebookProvider builds the oauth2 client config for Facebook
func NewFacebookProvider(cfg config.OAuthProviderConfig) *FacebookProvider {
	return &FacebookProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email", "public_profile"},
		},
		graphURL: facebookGraphURL,
	}
}

func (f *FacebookProvider) Name() string { return "facebook" }

// AuthURL builds the Facebook consent-page URL for the given state
func (f *FacebookProvider) AuthURL(state string) string {
	return f.config.AuthCodeURL(state)
}

// FetchProfile exchanges the authorization code and fetches the Graph API
// profile with the resulting token.
func (f *FacebookProvider) FetchProfile(ctx context.Context, code string) (Profile, error) {
	oauth2Token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: facebook code exchange: %v", ErrProviderUnavailable, err)
	}

	client := f.config.Client(ctx, oauth2Token)

	q := url.Values{}
	q.Set("fields", "id,name,email,picture")
	resp, err := client.Get(f.graphURL + "?" + q.Encode())
	if err != nil {
		return Profile{}, fmt.Errorf("%w: facebook graph request: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Profile{}, fmt.Errorf("%w: facebook graph status %d: %s", ErrProviderUnavailable, resp.StatusCode, body)
	}

	var fp FacebookProfile
	if err := json.NewDecoder(resp.Body).Decode(&fp); err != nil {
		return Profile{}, fmt.Errorf("%w: facebook graph decode: %v", ErrProviderUnavailable, err)
	}

	return fp.Normalize(), nil
}
