package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// meterName scopes the OTLP instruments
const meterName = "github.com/platinummonkey/storygate"

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec
	AbilityBuildsTotal  *prometheus.CounterVec

	// Identity cache metrics
	IdentityCacheHitsTotal   prometheus.Counter
	IdentityCacheMissesTotal prometheus.Counter

	// Session metrics
	SessionLookupsTotal *prometheus.CounterVec
	LoginAttemptsTotal  *prometheus.CounterVec

	// Role seeding metrics
	SeedReconcilesTotal *prometheus.CounterVec

	// authz decisions mirrored to the global OTel meter provider
	otelDecisions otelmetric.Int64Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storygate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storygate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storygate_authz_decisions_total",
				Help: "Authorization decisions made by protected routes",
			},
			[]string{"action", "subject", "decision"},
		),
		AbilityBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storygate_ability_builds_total",
				Help: "Abilities evaluated, by caller kind",
			},
			[]string{"kind"},
		),
		IdentityCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storygate_identity_cache_hits_total",
				Help: "Identity lookups served from cache",
			},
		),
		IdentityCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "storygate_identity_cache_misses_total",
				Help: "Identity lookups that went to the database",
			},
		),
		SessionLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storygate_session_lookups_total",
				Help: "Session token lookups, by result",
			},
			[]string{"result"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storygate_login_attempts_total",
				Help: "Login attempts, by method and result",
			},
			[]string{"method", "result"},
		),
		SeedReconcilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storygate_seed_reconciles_total",
				Help: "Role seed reconciliations, by trigger and status",
			},
			[]string{"trigger", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthzDecisionsTotal,
		m.AbilityBuildsTotal,
		m.IdentityCacheHitsTotal,
		m.IdentityCacheMissesTotal,
		m.SessionLookupsTotal,
		m.LoginAttemptsTotal,
		m.SeedReconcilesTotal,
	)

	decisions, err := otel.Meter(meterName).Int64Counter("storygate.authz.decisions",
		otelmetric.WithDescription("Authorization decisions made by protected routes"))
	if err == nil {
		m.otelDecisions = decisions
	}

	return m
}

// RecordAuthzDecision counts one guard decision. Recorders are no-ops on a
// nil *Metrics.
func (m *Metrics) RecordAuthzDecision(action, subject string, allowed bool) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(action, subject, decision).Inc()

	if m.otelDecisions != nil {
		m.otelDecisions.Add(context.Background(), 1, otelmetric.WithAttributes(
			attribute.String("action", action),
			attribute.String("subject", subject),
			attribute.String("decision", decision),
		))
	}
}

// RecordAbilityBuild counts one evaluated ability
func (m *Metrics) RecordAbilityBuild(anonymous bool) {
	if m == nil {
		return
	}
	kind := "authenticated"
	if anonymous {
		kind = "anonymous"
	}
	m.AbilityBuildsTotal.WithLabelValues(kind).Inc()
}

// RecordIdentityCache counts an identity cache hit or miss
func (m *Metrics) RecordIdentityCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.IdentityCacheHitsTotal.Inc()
		return
	}
	m.IdentityCacheMissesTotal.Inc()
}

// RecordSessionLookup counts a session lookup outcome
func (m *Metrics) RecordSessionLookup(result string) {
	if m == nil {
		return
	}
	m.SessionLookupsTotal.WithLabelValues(result).Inc()
}

// RecordLogin counts a login attempt
func (m *Metrics) RecordLogin(method, result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(method, result).Inc()
}

// RecordReconcile counts a seed reconciliation
func (m *Metrics) RecordReconcile(trigger string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.SeedReconcilesTotal.WithLabelValues(trigger, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by their mux route template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
