// Package metrics exposes Prometheus metrics for DittoDICOM listeners.
//
// Metrics are optional. Until InitRegistry is called every constructor hands
// back a no-op implementation, so listeners can record unconditionally.
//
//	metrics.InitRegistry()
//	storage := metrics.NewStorageMetricsFromRegistry()
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry together with the Go runtime and
// process collectors.
//
// It must run before any constructor that should record to Prometheus;
// constructors called earlier keep their no-op implementation.
//
// Thread safety:
// Safe to call concurrently. Only the first call has an effect.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global registry.
//
// Returns nil when InitRegistry has not been called, which callers treat as
// "metrics disabled".
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
