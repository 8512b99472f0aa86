package config

import (
	"strings"
	"time"
)

// Names of the objects ApplyDefaults adds when none are configured.
const (
	DefaultStrategyName = "default"
	DefaultClassSetName = "all"
)

// ApplyDefaults fills unspecified fields. Explicit values are preserved.
//
// A configuration without strategies, class sets or listeners receives one
// of each, so that a bare installation stores everything it receives under
// a patient/study/series layout.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
	applyIndexDefaults(&cfg.Index)

	if len(cfg.StorageStrategies) == 0 {
		cfg.StorageStrategies = []StorageStrategyConfig{defaultStrategy()}
	}
	if len(cfg.SOPClassSets) == 0 {
		cfg.SOPClassSets = []SOPClassSetConfig{{Name: DefaultClassSetName, SOPClasses: []string{"*"}}}
	}
	if len(cfg.Listeners) == 0 {
		cfg.Listeners = []ListenerConfig{{
			AETitle: "STORESCP",
			Port:    11112,
			Storage: ListenerStorageConfig{Root: "/var/lib/dittodicom/storage"},
		}}
	}

	for i := range cfg.Listeners {
		applyListenerDefaults(&cfg.Listeners[i], cfg)
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyIndexDefaults(cfg *IndexConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

// applyListenerDefaults points a listener without explicit references at the
// first declared strategy and class set.
func applyListenerDefaults(l *ListenerConfig, cfg *Config) {
	if l.SOPClassSet == "" && len(cfg.SOPClassSets) > 0 {
		l.SOPClassSet = cfg.SOPClassSets[0].Name
	}
	if l.Storage.Strategy == "" && len(cfg.StorageStrategies) > 0 {
		l.Storage.Strategy = cfg.StorageStrategies[0].Name
	}
	if l.Storage.MaxDiskUsage == "" {
		l.Storage.MaxDiskUsage = "90%"
	}
	if l.Mirror.Type == "" {
		l.Mirror.Type = "none"
	}
	if l.Mirror.S3 == nil {
		l.Mirror.S3 = make(map[string]any)
	}
}

func defaultStrategy() StorageStrategyConfig {
	return StorageStrategyConfig{
		Name:                  DefaultStrategyName,
		UseDateSubdirectories: false,
		Directories: []DirectoryConfig{
			{Name: "patient", Tag: "0x00100020", Default: "UNKNOWN"},
			{Name: "study", Tag: "0x0020000D", Default: "UNKNOWN"},
			{Name: "series", Tag: "0x0020000E", Default: "UNKNOWN"},
		},
		File: FileConfig{Tag: "0x00080018", Extension: ".dcm"},
	}
}

// GetDefaultConfig returns a Config with all defaults applied, including an
// example rule set that decompresses everything received.
func GetDefaultConfig() *Config {
	cfg := &Config{
		ModalityRuleSets: []ModalityRuleSetConfig{{
			Name: "uncompressed",
			Rules: []ModalityRuleConfig{
				{Modality: "all", Action: "decompress", OutputTransferSyntax: "ExplicitVRLittleEndian"},
			},
		}},
	}
	ApplyDefaults(cfg)
	cfg.Listeners[0].Storage.ModalityRuleSet = "uncompressed"
	return cfg
}
