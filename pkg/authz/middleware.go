package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/lumenfeed/lumen/pkg/contextkeys"
	"github.com/lumenfeed/lumen/pkg/httputil"
	"github.com/lumenfeed/lumen/pkg/observability"
	"github.com/lumenfeed/lumen/pkg/token"
)

// TokenVerifier verifies a raw access token. Satisfied by *token.Service.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// Middleware verifies the bearer token, places the principal in the request
// context, and enforces role permissions.
type Middleware struct {
	tokens     TokenVerifier
	authorizer *Authorizer

	// bypassPaths skip both authentication and authorization. Patterns use
	// the same {name} placeholders as permission paths.
	bypassPaths []string

	// allowAnonymous lets requests without a bearer token through with no
	// principal in context. Default is to reject them with 401.
	allowAnonymous bool

	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewMiddleware builds the authorization middleware. metrics may be nil.
func NewMiddleware(tokens TokenVerifier, authorizer *Authorizer, bypassPaths []string, allowAnonymous bool, logger *observability.Logger, metrics *observability.Metrics) *Middleware {
	return &Middleware{
		tokens:         tokens,
		authorizer:     authorizer,
		bypassPaths:    bypassPaths,
		allowAnonymous: allowAnonymous,
		logger:         logger,
		metrics:        metrics,
	}
}

// PrincipalFromContext retrieves the verified claims the middleware stored,
// or nil when the request is anonymous.
func PrincipalFromContext(ctx context.Context) *token.Claims {
	claims, _ := contextkeys.Principal(ctx).(*token.Claims)
	return claims
}

// Handler wraps next with authentication and permission enforcement
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.bypassed(r.URL.Path) {
			m.decision("bypass")
			next.ServeHTTP(w, r)
			return
		}

		raw := bearerToken(r)
		if raw == "" {
			if m.allowAnonymous {
				m.decision("anonymous")
				next.ServeHTTP(w, r)
				return
			}
			m.decision("unauthenticated")
			httputil.WriteUnauthorized(w, "missing bearer token")
			return
		}

		claims, err := m.tokens.Verify(raw)
		if err != nil {
			m.decision("invalid_token")
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), claims)
		r = r.WithContext(ctx)

		err = m.authorizer.Authorize(ctx, claims, r.Method, routeTemplate(r), r.URL.Path)
		switch {
		case err == nil:
			m.decision("allow")
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrNoPermissions), errors.Is(err, ErrPermissionDenied):
			m.decision("deny")
			m.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"email":  claims.UserEmail,
				"method": r.Method,
				"path":   r.URL.Path,
			}).WithError(err).Warn("request denied")
			httputil.WriteForbidden(w, "permission denied")
		default:
			m.decision("error")
			m.logger.WithContext(ctx).WithError(err).Error("authorization check failed")
			httputil.WriteInternalError(w, errors.New("authorization check failed"))
		}
	})
}

// RequirePrincipal is a lighter wrapper for endpoints that need an
// authenticated caller but no permission match (e.g. /auth/account,
// /auth/logout).
func (m *Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			httputil.WriteUnauthorized(w, "missing bearer token")
			return
		}
		claims, err := m.tokens.Verify(raw)
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextkeys.WithPrincipal(r.Context(), claims)))
	})
}

func (m *Middleware) bypassed(path string) bool {
	for _, pattern := range m.bypassPaths {
		if MatchPattern(pattern, path) {
			return true
		}
	}
	return false
}

func (m *Middleware) decision(outcome string) {
	if m.metrics != nil {
		m.metrics.AuthzDecisionsTotal.WithLabelValues(outcome).Inc()
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

// routeTemplate resolves the matched mux route pattern, e.g.
// /api/v1/roles/{id}. Empty when the request did not come through mux or
// the route has no template.
func routeTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}
