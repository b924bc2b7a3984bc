package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/lumenfeed/lumen/pkg/account"
	"github.com/lumenfeed/lumen/pkg/auth"
	"github.com/lumenfeed/lumen/pkg/authz"
	"github.com/lumenfeed/lumen/pkg/httputil"
	"github.com/lumenfeed/lumen/pkg/oauth"
	"github.com/lumenfeed/lumen/pkg/observability"
)

// AccountReader is the account lookup the handlers need. Satisfied by
// *account.Store.
type AccountReader interface {
	GetByEmail(ctx context.Context, email string) (*account.Account, error)
}

// AuthHandlers handles the authentication endpoints
type AuthHandlers struct {
	auth      *auth.Service
	accounts  AccountReader
	providers *oauth.Registry
	resolver  *oauth.Resolver

	cookies      CookiePolicy
	frontendURL  string
	oauthTimeout time.Duration

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthHandlers creates the auth handlers. providers and resolver may be
// nil when no OAuth provider is configured; the social endpoints then
// reject every request. metrics may be nil.
func NewAuthHandlers(authSvc *auth.Service, accounts AccountReader, providers *oauth.Registry, resolver *oauth.Resolver, cookies CookiePolicy, frontendURL string, oauthTimeout time.Duration, logger *observability.Logger, metrics *observability.Metrics) *AuthHandlers {
	return &AuthHandlers{
		auth:         authSvc,
		accounts:     accounts,
		providers:    providers,
		resolver:     resolver,
		cookies:      cookies,
		frontendURL:  frontendURL,
		oauthTimeout: oauthTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

// RegisterRoutes registers the authentication routes. Account and logout
// demand an authenticated caller but no permission match, so they are
// wrapped with RequirePrincipal rather than the full authorizer.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, mw *authz.Middleware) {
	router.HandleFunc("/api/v1/auth/login", h.login).Methods("POST")
	router.HandleFunc("/api/v1/auth/refresh", h.refresh).Methods("GET")
	router.HandleFunc("/api/v1/auth/register", h.register).Methods("POST")
	router.HandleFunc("/api/v1/auth/social/login", h.socialLogin).Methods("GET")
	router.HandleFunc("/api/v1/auth/social/callback", h.socialCallback).Methods("GET")

	router.Handle("/api/v1/auth/logout", mw.RequirePrincipal(http.HandlerFunc(h.logout))).Methods("POST")
	router.Handle("/api/v1/auth/account", mw.RequirePrincipal(http.HandlerFunc(h.currentAccount))).Methods("GET")
}

// sessionResponse is the body of every successful authentication. The
// refresh token travels only in the cookie.
type sessionResponse struct {
	User        *account.Account `json:"user"`
	AccessToken string           `json:"access_token"`
}

// login handles POST /api/v1/auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.countLogin("password", "failure")
		h.writeAuthError(w, r, err)
		return
	}
	h.countLogin("password", "success")
	h.countTokensIssued()

	h.cookies.set(w, session.RefreshToken)
	httputil.WriteSuccess(w, sessionResponse{User: session.Account, AccessToken: session.AccessToken})
}

// refresh handles GET /api/v1/auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		h.countRefresh("missing_cookie")
		httputil.WriteUnauthorized(w, "missing refresh token")
		return
	}

	session, err := h.auth.Refresh(r.Context(), cookie.Value)
	if err != nil {
		h.countRefresh("failure")
		h.writeAuthError(w, r, err)
		return
	}
	h.countRefresh("success")
	h.countTokensIssued()

	h.cookies.set(w, session.RefreshToken)
	httputil.WriteSuccess(w, sessionResponse{User: session.Account, AccessToken: session.AccessToken})
}

// logout handles POST /api/v1/auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	claims := authz.PrincipalFromContext(r.Context())

	if err := h.auth.Logout(r.Context(), claims.Subject); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("logout failed")
		httputil.WriteInternalError(w, errors.New("logout failed"))
		return
	}

	h.cookies.clear(w)
	httputil.WriteSuccess(w, map[string]bool{"success": true})
}

// register handles POST /api/v1/auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	acct, err := h.auth.Register(r.Context(), req)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}

	httputil.WriteCreated(w, acct)
}

// currentAccount handles GET /api/v1/auth/account
func (h *AuthHandlers) currentAccount(w http.ResponseWriter, r *http.Request) {
	claims := authz.PrincipalFromContext(r.Context())

	acct, err := h.accounts.GetByEmail(r.Context(), claims.Subject)
	if errors.Is(err, account.ErrNotFound) {
		httputil.WriteUnauthorized(w, "account no longer exists")
		return
	}
	if err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Error("account lookup failed")
		httputil.WriteInternalError(w, errors.New("account lookup failed"))
		return
	}

	httputil.WriteSuccess(w, acct)
}

// socialLogin handles GET /api/v1/auth/social/login?login_type=google
//
// The provider name rides along as the OAuth state so the callback can
// recover it even when the provider drops custom query parameters.
func (h *AuthHandlers) socialLogin(w http.ResponseWriter, r *http.Request) {
	if h.providers == nil {
		httputil.WriteBadRequest(w, oauth.ErrUnsupportedProvider.Error())
		return
	}

	loginType := r.URL.Query().Get("login_type")
	provider, err := h.providers.Lookup(loginType, "")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	http.Redirect(w, r, provider.AuthURL(provider.Name()), http.StatusFound)
}

// socialCallback handles GET /api/v1/auth/social/callback
func (h *AuthHandlers) socialCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		httputil.WriteBadRequest(w, "provider reported an error: "+providerErr)
		return
	}
	code := q.Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}
	if h.providers == nil {
		httputil.WriteBadRequest(w, oauth.ErrUnsupportedProvider.Error())
		return
	}

	provider, err := h.providers.Lookup(q.Get("login_type"), q.Get("state"))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.oauthTimeout)
	defer cancel()

	profile, err := provider.FetchProfile(ctx, code)
	if err != nil {
		h.countLogin(provider.Name(), "failure")
		h.writeAuthError(w, r, err)
		return
	}

	acct, err := h.resolver.Resolve(ctx, profile)
	if err != nil {
		h.countLogin(provider.Name(), "failure")
		h.writeAuthError(w, r, err)
		return
	}

	session, err := h.auth.IssueSession(r.Context(), acct)
	if err != nil {
		h.countLogin(provider.Name(), "failure")
		h.logger.WithContext(r.Context()).WithError(err).Error("session issue failed")
		httputil.WriteInternalError(w, errors.New("session issue failed"))
		return
	}
	h.countLogin(provider.Name(), "success")
	h.countTokensIssued()

	h.cookies.set(w, session.RefreshToken)
	http.Redirect(w, r, h.frontendRedirect(session.AccessToken), http.StatusFound)
}

// frontendRedirect builds the post-login URL the SPA picks the token up
// from.
func (h *AuthHandlers) frontendRedirect(accessToken string) string {
	params := url.Values{}
	params.Set("token", accessToken)
	params.Set("success", "true")
	return strings.TrimSuffix(h.frontendURL, "/") + "/login?" + params.Encode()
}

// writeAuthError maps domain errors onto HTTP statuses
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "invalid email or password")
	case errors.Is(err, auth.ErrAccountBlocked):
		httputil.WriteUnauthorized(w, "account is blocked")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrStaleRefreshToken):
		httputil.WriteUnauthorized(w, "invalid or expired refresh token")
	case errors.Is(err, auth.ErrEmailTaken):
		httputil.WriteBadRequest(w, "email is already registered")
	case errors.Is(err, oauth.ErrUnsupportedProvider), errors.Is(err, oauth.ErrProfileIncomplete):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, oauth.ErrProviderUnavailable):
		httputil.WriteServiceUnavailable(w, "authentication provider is unavailable")
	default:
		h.logger.WithContext(r.Context()).WithError(err).Error("authentication failed")
		httputil.WriteInternalError(w, errors.New("authentication failed"))
	}
}

func (h *AuthHandlers) countLogin(method, status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(method, status).Inc()
	}
}

func (h *AuthHandlers) countRefresh(status string) {
	if h.metrics != nil {
		h.metrics.RefreshTotal.WithLabelValues(status).Inc()
	}
}

// countTokensIssued records the access/refresh pair minted for a session
func (h *AuthHandlers) countTokensIssued() {
	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues("access").Inc()
		h.metrics.TokensIssuedTotal.WithLabelValues("refresh").Inc()
	}
}
