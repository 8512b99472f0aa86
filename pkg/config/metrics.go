package config

import (
	"github.com/marmos91/dittodicom/pkg/metrics"
)

// MetricsResult holds the metrics components created from configuration.
type MetricsResult struct {
	// Server exposes /metrics; nil when metrics are disabled.
	Server *metrics.Server

	// Storage is never nil; it records nothing when metrics are disabled.
	Storage metrics.StorageMetrics
}

// InitializeMetrics initializes the global registry and the metrics server
// when cfg.Metrics.Enabled is set.
//
// Returns a MetricsResult whose Storage is always usable. Server is nil when
// metrics are disabled; otherwise it is created but not started.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{Storage: metrics.NewNoopStorageMetrics()}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:  metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port}),
		Storage: metrics.NewStorageMetricsFromRegistry(),
	}
}
