package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, NopLogger())
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, ShutdownOTel(context.Background(), providers, NopLogger()))
}

func TestShutdownOTel_EmptyProviders(t *testing.T) {
	assert.NoError(t, ShutdownOTel(context.Background(), &OTelProviders{}, NopLogger()))
}

func TestTraceHandler_PassesThrough(t *testing.T) {
	called := false
	h := TraceHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusTeapot)
	}), "test")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestUpdateLoggerWithTraceContext_NoSpan(t *testing.T) {
	logger := NopLogger()
	assert.Same(t, logger, UpdateLoggerWithTraceContext(context.Background(), logger))
}
