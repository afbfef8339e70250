package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_Recorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthzDecision("update", "Story", true)
	m.RecordAuthzDecision("update", "Story", false)
	m.RecordAuthzDecision("update", "Story", false)
	m.RecordAbilityBuild(true)
	m.RecordIdentityCache(true)
	m.RecordIdentityCache(false)
	m.RecordIdentityCache(false)
	m.RecordSessionLookup("hit")
	m.RecordLogin("password", "ok")
	m.RecordReconcile("watch", errors.New("bad yaml"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("update", "Story", "allow")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("update", "Story", "deny")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AbilityBuildsTotal.WithLabelValues("anonymous")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IdentityCacheHitsTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IdentityCacheMissesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttemptsTotal.WithLabelValues("password", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeedReconcilesTotal.WithLabelValues("watch", "error")))
}

func TestMetrics_AuthzDecisionsExportedToOTel(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	m := NewMetrics(prometheus.NewRegistry())
	m.RecordAuthzDecision("read", "Role", true)
	m.RecordAuthzDecision("read", "Role", false)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "storygate.authz.decisions" {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				total += point.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/api/admin/roles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/roles/"+id, nil))
		assert.Equal(t, http.StatusForbidden, w.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/admin/roles/{id}", "403")))
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)
	m.RecordAuthzDecision("read", "User", true)

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "storygate_authz_decisions_total")
}
