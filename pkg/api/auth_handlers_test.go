package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenfeed/lumen/pkg/oauth"
)

func do(h *harness, method, path, body string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)
	return rec
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLoginEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.accounts.add(t, "a@x.com", "secret1", nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, "a@x.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)

	cookie := refreshCookie(rec.Result())
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 24*3600, cookie.MaxAge)
	assert.NotEmpty(t, cookie.Value)

	// The password hash never leaks into the response body
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAuthFlowsCountIssuedTokens(t *testing.T) {
	h := newHarness(t, nil)
	h.accounts.add(t, "a@x.com", "secret1", nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	access := h.metrics.TokensIssuedTotal.WithLabelValues("access")
	refresh := h.metrics.TokensIssuedTotal.WithLabelValues("refresh")
	assert.Equal(t, 1.0, testutil.ToFloat64(access))
	assert.Equal(t, 1.0, testutil.ToFloat64(refresh))

	cookie := refreshCookie(rec.Result())
	require.NotNil(t, cookie)
	rec = do(h, http.MethodGet, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(access))
	assert.Equal(t, 2.0, testutil.ToFloat64(refresh))

	// Failed attempts mint nothing
	rec = do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 2.0, testutil.ToFloat64(access))
}

func TestLoginEndpointRejectsBadCredentials(t *testing.T) {
	h := newHarness(t, nil)
	h.accounts.add(t, "a@x.com", "secret1", nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, refreshCookie(rec.Result()))
}

func TestLoginEndpointRejectsBlockedAccount(t *testing.T) {
	h := newHarness(t, nil)
	acct := h.accounts.add(t, "b@x.com", "secret1", nil)
	h.accounts.accounts[acct.Email].IsBlocked = true

	rec := do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"b@x.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginEndpointValidation(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/login", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpointRotatesCookie(t *testing.T) {
	h := newHarness(t, nil)
	h.accounts.add(t, "a@x.com", "secret1", nil)

	login := do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, login.Code)
	first := refreshCookie(login.Result())
	require.NotNil(t, first)

	rec := do(h, http.MethodGet, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(first)
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rotated := refreshCookie(rec.Result())
	require.NotNil(t, rotated)
	assert.NotEqual(t, first.Value, rotated.Value)

	// The consumed cookie no longer works
	rec = do(h, http.MethodGet, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(first)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshEndpointWithoutCookie(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodGet, "/api/v1/auth/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.accounts.add(t, "a@x.com", "secret1", nil)

	login := do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, login.Code)
	session := decodeSession(t, login)
	loginCookie := refreshCookie(login.Result())

	rec := do(h, http.MethodPost, "/api/v1/auth/logout", "", withBearer(session.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := refreshCookie(rec.Result())
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)

	// The slot is gone; the old cookie cannot refresh anymore
	rec = do(h, http.MethodGet, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(loginCookie)
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpointRequiresPrincipal(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/logout", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/register",
		`{"email":"new@x.com","password":"secret1","first_name":"An","last_name":"Tran"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(h, http.MethodPost, "/api/v1/auth/login", `{"email":"new@x.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterEndpointDuplicateEmail(t *testing.T) {
	h := newHarness(t, nil)
	h.accounts.add(t, "a@x.com", "secret1", nil)

	rec := do(h, http.MethodPost, "/api/v1/auth/register", `{"email":"a@x.com","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	acct := h.accounts.add(t, "a@x.com", "secret1", nil)

	rec := do(h, http.MethodGet, "/api/v1/auth/account", "", withBearer(h.accessToken(t, acct)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"a@x.com"`)

	rec = do(h, http.MethodGet, "/api/v1/auth/account", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSocialLoginRedirect(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodGet, "/api/v1/auth/social/login?login_type=google", "")
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "provider.example.com/authorize")
	assert.Contains(t, location, "state=google")
}

func TestSocialLoginUnsupportedProvider(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodGet, "/api/v1/auth/social/login?login_type=github", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/auth/social/login", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSocialCallbackCreatesAccountAndRedirects(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodGet, "/api/v1/auth/social/callback?code=abc&login_type=google", "")
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", location.Host)
	assert.Equal(t, "/login", location.Path)
	assert.NotEmpty(t, location.Query().Get("token"))
	assert.Equal(t, "true", location.Query().Get("success"))

	require.NotNil(t, refreshCookie(rec.Result()))

	created, ok := h.accounts.accounts["social@x.com"]
	require.True(t, ok)
	assert.Equal(t, "Social", created.FirstName)
	assert.Nil(t, created.PasswordHash)
}

func TestSocialCallbackProviderFromState(t *testing.T) {
	h := newHarness(t, nil)

	// login_type missing entirely; state carries the provider name
	rec := do(h, http.MethodGet, "/api/v1/auth/social/callback?code=abc&state=google", "")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestSocialCallbackFailures(t *testing.T) {
	h := newHarness(t, nil)

	rec := do(h, http.MethodGet, "/api/v1/auth/social/callback?error=access_denied&login_type=google", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/auth/social/callback?login_type=google", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/api/v1/auth/social/callback?code=abc&login_type=github", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSocialCallbackIncompleteProfile(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.profile = oauth.Profile{FirstName: "NoEmail"}

	rec := do(h, http.MethodGet, "/api/v1/auth/social/callback?code=abc&login_type=google", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSocialCallbackProviderDown(t *testing.T) {
	h := newHarness(t, nil)
	h.provider.err = oauth.ErrProviderUnavailable

	rec := do(h, http.MethodGet, "/api/v1/auth/social/callback?code=abc&login_type=google", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSocialCallbackBlockedAccount(t *testing.T) {
	h := newHarness(t, nil)
	acct := h.accounts.add(t, "social@x.com", "", nil)
	h.accounts.accounts[acct.Email].IsBlocked = true

	rec := do(h, http.MethodGet, "/api/v1/auth/social/callback?code=abc&login_type=google", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
