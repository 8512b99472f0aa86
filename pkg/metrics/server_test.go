package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerServesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetrics(reg)
	m.RecordRequest("STORESCP", "store", "stored", time.Millisecond)

	srv := NewServer(ServerConfig{Port: 19090, Gatherer: reg})
	assert.Equal(t, 19090, srv.Port())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dittodicom_requests_total{command="store",listener="STORESCP",outcome="stored"} 1`)
}

func TestServerWithoutGatherer(t *testing.T) {
	if IsEnabled() {
		t.Skip("global registry initialised by another test")
	}
	srv := NewServer(ServerConfig{})
	assert.Equal(t, 9090, srv.Port())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "DittoDICOM Metrics")
}

func TestServerStopIsIdempotent(t *testing.T) {
	srv := NewServer(ServerConfig{Port: 19091, Gatherer: prometheus.NewRegistry()})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, srv.Stop(ctx))
	assert.NoError(t, srv.Stop(ctx))
}
