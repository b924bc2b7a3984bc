package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lumenfeed/lumen/pkg/authz"
	"github.com/lumenfeed/lumen/pkg/httputil"
	"github.com/lumenfeed/lumen/pkg/observability"
)

// Server wires the HTTP routes: public auth endpoints, principal-only
// endpoints, and the admin CRUD behind the authorizer.
type Server struct {
	router        *mux.Router
	authHandlers  *AuthHandlers
	adminHandlers *AdminHandlers
	authz         *authz.Middleware
	logger        *observability.Logger
	metrics       *observability.Metrics
}

// NewServer creates the API server and sets up its routes. metrics may be
// nil.
func NewServer(authHandlers *AuthHandlers, adminHandlers *AdminHandlers, authzMiddleware *authz.Middleware, logger *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		authHandlers:  authHandlers,
		adminHandlers: adminHandlers,
		authz:         authzMiddleware,
		logger:        logger,
		metrics:       metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(s.logger))
	if s.metrics != nil {
		s.router.Use(s.metrics.HTTPMiddleware(routePattern))
	}

	// Auth endpoints manage their own authentication requirements
	s.authHandlers.RegisterRoutes(s.router, s.authz)

	// Everything else goes through the permission authorizer
	protected := s.router.PathPrefix("/api/v1").Subrouter()
	protected.Use(s.authz.Handler)
	s.adminHandlers.RegisterRoutes(protected)
}

// Router returns the configured handler for an http.Server
func (s *Server) Router() http.Handler {
	return s.router
}

// routePattern labels metrics with the mux route template instead of the
// raw path, keeping label cardinality bounded.
func routePattern(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return "unmatched"
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return "unmatched"
	}
	return tmpl
}
