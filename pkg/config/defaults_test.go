package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "memory", cfg.Index.Type)

	require.Len(t, cfg.StorageStrategies, 1)
	assert.Equal(t, DefaultStrategyName, cfg.StorageStrategies[0].Name)
	require.Len(t, cfg.SOPClassSets, 1)
	assert.Equal(t, []string{"*"}, cfg.SOPClassSets[0].SOPClasses)

	require.Len(t, cfg.Listeners, 1)
	l := cfg.Listeners[0]
	assert.Equal(t, "STORESCP", l.AETitle)
	assert.Equal(t, "90%", l.Storage.MaxDiskUsage)
	assert.Equal(t, "none", l.Mirror.Type)

	assert.NoError(t, Validate(cfg))
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "warn", Format: "json", Output: "/var/log/dittodicom.log"},
		Listeners: []ListenerConfig{{
			AETitle:     "X",
			Port:        4242,
			SOPClassSet: "custom",
			Storage:     ListenerStorageConfig{Root: "/r", MaxDiskUsage: "50%", Strategy: "mine"},
			Mirror:      MirrorConfig{Type: "s3"},
		}},
	}
	ApplyDefaults(cfg)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	l := cfg.Listeners[0]
	assert.Equal(t, "custom", l.SOPClassSet)
	assert.Equal(t, "mine", l.Storage.Strategy)
	assert.Equal(t, "50%", l.Storage.MaxDiskUsage)
	assert.Equal(t, "s3", l.Mirror.Type)
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, Validate(cfg))

	listeners, err := Build(cfg)
	require.NoError(t, err)
	require.Len(t, listeners, 1)
	assert.Equal(t, "uncompressed", listeners[0].Rules.Name)
	assert.Equal(t, 90.0, listeners[0].MaxDiskUsagePercent)
}

func TestInitConfigToPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, InitConfigToPath(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, "# DittoDICOM Configuration File"))
	for _, section := range []string{"logging:", "storage_strategies:", "modality_rule_sets:", "sop_class_sets:", "listeners:"} {
		assert.Contains(t, content, section)
	}
	assert.Contains(t, content, "shutdown_timeout: 30s")

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal(data, &parsed))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "uncompressed", cfg.Listeners[0].Storage.ModalityRuleSet)

	err = InitConfigToPath(path, false)
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, InitConfigToPath(path, true))
}

func TestInitConfig_DefaultLocation(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(xdg, "dittodicom", "config.yaml"), path)
	assert.True(t, ConfigExists())
	assert.Equal(t, filepath.Join(xdg, "dittodicom"), GetConfigDir())
}
