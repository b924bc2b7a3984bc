package api

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/auth"
	"github.com/lumenfeed/lumen/pkg/authz"
	"github.com/lumenfeed/lumen/pkg/oauth"
	"github.com/lumenfeed/lumen/pkg/observability"
	"github.com/lumenfeed/lumen/pkg/token"
)

var testKey = []byte("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")

// fakeAccounts backs the auth service, the oauth resolver, and the account
// endpoint in handler tests.
type fakeAccounts struct {
	accounts map[string]*account.Account
	nextID   int64
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]*account.Account), nextID: 1}
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	if a, ok := f.accounts[email]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, account.ErrNotFound
}

func (f *fakeAccounts) GetByRefreshTokenAndEmail(_ context.Context, tok, email string) (*account.Account, error) {
	a, ok := f.accounts[email]
	if !ok || a.RefreshToken == nil || *a.RefreshToken != tok {
		return nil, account.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAccounts) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := f.accounts[email]
	return ok, nil
}

func (f *fakeAccounts) Create(_ context.Context, a *account.Account) error {
	a.ID = f.nextID
	f.nextID++
	copied := *a
	f.accounts[a.Email] = &copied
	return nil
}

func (f *fakeAccounts) Update(_ context.Context, a *account.Account) error {
	copied := *a
	f.accounts[a.Email] = &copied
	return nil
}

func (f *fakeAccounts) UpdateRefreshToken(_ context.Context, email string, tok *string) error {
	a, ok := f.accounts[email]
	if !ok {
		return account.ErrNotFound
	}
	a.RefreshToken = tok
	return nil
}

func (f *fakeAccounts) add(t *testing.T, email, password string, role *account.Role) *account.Account {
	t.Helper()

	a := &account.Account{
		Email:     email,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hashStr := string(hash)
		a.PasswordHash = &hashStr
	}
	require.NoError(t, f.Create(context.Background(), a))
	return a
}

// stubProvider satisfies oauth.Provider with canned responses
type stubProvider struct {
	name    string
	profile oauth.Profile
	err     error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) AuthURL(state string) string {
	return "https://provider.example.com/authorize?state=" + state
}

func (s *stubProvider) FetchProfile(_ context.Context, code string) (oauth.Profile, error) {
	if s.err != nil {
		return oauth.Profile{}, s.err
	}
	return s.profile, nil
}

// rolePerms maps role id to granted permissions for the authorizer
type rolePerms map[int64][]account.Permission

func (p rolePerms) GetRolePermissions(_ context.Context, roleID int64) ([]account.Permission, error) {
	return p[roleID], nil
}

type harness struct {
	server   *Server
	accounts *fakeAccounts
	tokens   *token.Service
	provider *stubProvider
	roles    *fakeRoleStore
	metrics  *observability.Metrics
}

func newHarness(t *testing.T, perms rolePerms) *harness {
	t.Helper()

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	accounts := newFakeAccounts()
	tokens := token.NewService(testKey, time.Hour, 24*time.Hour)
	authSvc := auth.NewService(accounts, tokens)

	provider := &stubProvider{name: "google", profile: oauth.Profile{
		Email:     "social@x.com",
		FirstName: "Social",
		LastName:  "User",
		Avatar:    "https://img/s.png",
	}}
	registry := oauth.NewRegistry(provider)
	resolver := oauth.NewResolver(accounts)

	cookies := CookiePolicy{Secure: true, SameSite: http.SameSiteLaxMode, TTL: 24 * time.Hour}
	authHandlers := NewAuthHandlers(authSvc, accounts, registry, resolver, cookies,
		"https://app.example.com", time.Second, logger, metrics)

	roles := newFakeRoleStore()
	adminHandlers := NewAdminHandlers(roles, nil, logger)

	mw := authz.NewMiddleware(tokens, authz.NewAuthorizer(perms), nil, false, logger, metrics)

	return &harness{
		server:   NewServer(authHandlers, adminHandlers, mw, logger, metrics),
		accounts: accounts,
		tokens:   tokens,
		provider: provider,
		roles:    roles,
		metrics:  metrics,
	}
}

func (h *harness) accessToken(t *testing.T, a *account.Account) string {
	t.Helper()
	access, err := h.tokens.IssueAccessToken(a)
	require.NoError(t, err)
	return access
}

// refreshCookie extracts the refresh cookie from a response, or nil
func refreshCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == refreshCookieName {
			return c
		}
	}
	return nil
}
