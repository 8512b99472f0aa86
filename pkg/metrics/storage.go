package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StorageMetrics observes the store pipeline of every listener.
//
// Every method takes the listener AE title as its first label so that one
// implementation can be shared by all listeners of a process.
//
// Implementations:
//   - NewStorageMetrics: Prometheus counters, gauges and histograms on a registry
//   - NewNoopStorageMetrics: records nothing (metrics disabled)
//
// Thread safety:
// Implementations must be safe for concurrent use; listeners record from
// every request goroutine.
type StorageMetrics interface {
	// RecordRequest counts a finished request.
	//
	// Parameters:
	//   - listener: AE title of the listener
	//   - command: "echo" or "store"
	//   - outcome: short label such as "stored", "skipped", "no_capacity",
	//     "rate_limited" or "failed"
	//   - duration: time spent handling the request
	RecordRequest(listener, command, outcome string, duration time.Duration)

	// RecordRequestStart and RecordRequestEnd bracket a store request for
	// the in-flight gauge. Every Start must be paired with an End.
	RecordRequestStart(listener string)
	RecordRequestEnd(listener string)

	// RecordBytesStored adds the size of a file written to the storage root.
	RecordBytesStored(listener string, bytes int64)

	// RecordTranscode counts the final transcode state of one object
	// ("noop", "validated_compress", "rejected_no_codec", ...).
	RecordTranscode(listener, state string)

	// RecordMirrorFailure counts an upload to the mirror that failed.
	RecordMirrorFailure(listener string)

	// RecordRateLimiterKeys reports how many calling AE titles the
	// listener's rate limiter currently tracks.
	RecordRateLimiterKeys(listener string, keys int)
}

type storageMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	bytesStored      *prometheus.CounterVec
	transcodes       *prometheus.CounterVec
	mirrorFailures   *prometheus.CounterVec
	limiterKeys      *prometheus.GaugeVec
}

// NewStorageMetrics registers the storage metrics on reg.
//
// Parameters:
//   - reg: Registerer receiving the metric families. A nil reg yields a
//     no-op implementation.
//
// Returns a StorageMetrics implementation. Panics if the families are
// already registered on reg (promauto semantics), so call it once per
// registry.
func NewStorageMetrics(reg prometheus.Registerer) StorageMetrics {
	if reg == nil {
		return NewNoopStorageMetrics()
	}

	return &storageMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodicom_requests_total",
				Help: "Total number of echo and store requests by listener and outcome",
			},
			[]string{"listener", "command", "outcome"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittodicom_request_duration_milliseconds",
				Help:    "Duration of store requests in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			[]string{"listener", "command"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodicom_requests_in_flight",
				Help: "Current number of requests being processed",
			},
			[]string{"listener"},
		),
		bytesStored: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodicom_bytes_stored_total",
				Help: "Total bytes written to storage roots",
			},
			[]string{"listener"},
		),
		transcodes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodicom_transcode_total",
				Help: "Transcode decisions by final state",
			},
			[]string{"listener", "state"},
		),
		mirrorFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodicom_mirror_failures_total",
				Help: "Uploads to the mirror that failed",
			},
			[]string{"listener"},
		),
		limiterKeys: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodicom_rate_limiter_keys",
				Help: "Calling AE titles tracked by the rate limiter",
			},
			[]string{"listener"},
		),
	}
}

// NewStorageMetricsFromRegistry uses the global registry, or returns a no-op
// implementation when InitRegistry was not called.
func NewStorageMetricsFromRegistry() StorageMetrics {
	if !IsEnabled() {
		return NewNoopStorageMetrics()
	}
	return NewStorageMetrics(GetRegistry())
}

func (m *storageMetrics) RecordRequest(listener, command, outcome string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(listener, command, outcome).Inc()
	m.requestDuration.WithLabelValues(listener, command).Observe(float64(duration.Milliseconds()))
}

func (m *storageMetrics) RecordRequestStart(listener string) {
	m.requestsInFlight.WithLabelValues(listener).Inc()
}

func (m *storageMetrics) RecordRequestEnd(listener string) {
	m.requestsInFlight.WithLabelValues(listener).Dec()
}

func (m *storageMetrics) RecordBytesStored(listener string, bytes int64) {
	m.bytesStored.WithLabelValues(listener).Add(float64(bytes))
}

func (m *storageMetrics) RecordTranscode(listener, state string) {
	m.transcodes.WithLabelValues(listener, state).Inc()
}

func (m *storageMetrics) RecordMirrorFailure(listener string) {
	m.mirrorFailures.WithLabelValues(listener).Inc()
}

func (m *storageMetrics) RecordRateLimiterKeys(listener string, keys int) {
	m.limiterKeys.WithLabelValues(listener).Set(float64(keys))
}

type noopStorageMetrics struct{}

// NewNoopStorageMetrics returns metrics that record nothing.
func NewNoopStorageMetrics() StorageMetrics { return noopStorageMetrics{} }

func (noopStorageMetrics) RecordRequest(string, string, string, time.Duration) {}
func (noopStorageMetrics) RecordRequestStart(string)                           {}
func (noopStorageMetrics) RecordRequestEnd(string)                             {}
func (noopStorageMetrics) RecordBytesStored(string, int64)                     {}
func (noopStorageMetrics) RecordTranscode(string, string)                      {}
func (noopStorageMetrics) RecordMirrorFailure(string)                          {}
func (noopStorageMetrics) RecordRateLimiterKeys(string, int)                   {}
