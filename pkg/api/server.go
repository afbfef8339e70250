package api

import (
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/platinummonkey/storygate/pkg/auth"
	"github.com/platinummonkey/storygate/pkg/httputil"
	"github.com/platinummonkey/storygate/pkg/login"
	"github.com/platinummonkey/storygate/pkg/middleware"
	"github.com/platinummonkey/storygate/pkg/observability"
	"github.com/platinummonkey/storygate/pkg/rbac"
)

// DefaultSessionTTL applies when Options.SessionTTL is unset
const DefaultSessionTTL = 24 * time.Hour

// Options wires the dependencies of the API server
type Options struct {
	Store      *rbac.Store
	Identities rbac.IdentityProvider
	Sessions   *auth.SessionStore
	SessionTTL time.Duration

	// OIDC enables single sign-on when set
	OIDC login.IdentityExchanger

	// Redis enables rate limiting when set
	Redis              *redis.Client
	UserRateLimit      *middleware.RateLimitConfig
	AnonymousRateLimit *middleware.RateLimitConfig

	Logger  *observability.Logger
	Metrics *observability.Metrics

	// Tracing wraps the router with an OpenTelemetry handler
	Tracing bool
}

// Server is the storygate HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer builds the router and its middleware chain:
// recovery, request ID, logging, metrics, session, rate limit, guard.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	identities := opts.Identities
	if identities == nil {
		identities = opts.Store
	}

	s := &Server{router: mux.NewRouter()}

	s.router.Use(httputil.RecoveryMiddleware(logger))
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware(logger))
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	s.router.Use(middleware.NewSessionMiddleware(opts.Sessions, opts.Metrics).Handler)
	if opts.Redis != nil {
		s.router.Use(middleware.NewRateLimitMiddleware(opts.Redis, opts.UserRateLimit, opts.AnonymousRateLimit).Handler)
	}

	guard := rbac.NewGuard(identities, logger, opts.Metrics)
	s.router.Use(guard.Handler)

	rbac.NewHandlers(opts.Store, guard, identities, logger).RegisterRoutes(s.router)
	auth.NewHandlers(opts.Sessions).RegisterRoutes(s.router)

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	login.NewHandlers(opts.Store, opts.Sessions, ttl, opts.OIDC, opts.Metrics).RegisterRoutes(s.router)

	s.handler = s.router
	if opts.Tracing {
		s.handler = observability.TraceHandler(s.router, "storygate-api")
	}
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
