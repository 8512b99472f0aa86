package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStorageMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewStorageMetrics(reg).(*storageMetrics)

	m.RecordRequestStart("STORESCP")
	m.RecordRequest("STORESCP", "store", "stored", 12*time.Millisecond)
	m.RecordRequest("STORESCP", "store", "stored", time.Millisecond)
	m.RecordRequest("STORESCP", "store", "no_capacity", time.Millisecond)
	m.RecordBytesStored("STORESCP", 2048)
	m.RecordTranscode("STORESCP", "validated_decompress")
	m.RecordMirrorFailure("STORESCP")
	m.RecordRateLimiterKeys("STORESCP", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("STORESCP", "store", "stored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("STORESCP", "store", "no_capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("STORESCP")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.bytesStored.WithLabelValues("STORESCP")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transcodes.WithLabelValues("STORESCP", "validated_decompress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mirrorFailures.WithLabelValues("STORESCP")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.limiterKeys.WithLabelValues("STORESCP")))

	m.RecordRequestEnd("STORESCP")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.requestsInFlight.WithLabelValues("STORESCP")))
}

func TestNilRegistryIsNoop(t *testing.T) {
	m := NewStorageMetrics(nil)
	_, ok := m.(noopStorageMetrics)
	assert.True(t, ok)

	m.RecordRequest("x", "echo", "success", time.Second)
	m.RecordBytesStored("x", 1)
}
