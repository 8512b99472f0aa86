package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete DittoDICOM configuration.
//
// Named storage strategies, modality rule sets and SOP class sets are
// declared once and referenced by name from listeners. Build resolves the
// references; an unresolved name is a fatal startup error.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTODICOM_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Index records every stored instance.
	Index IndexConfig `mapstructure:"index" yaml:"index"`

	StorageStrategies []StorageStrategyConfig `mapstructure:"storage_strategies" yaml:"storage_strategies" validate:"dive"`
	ModalityRuleSets  []ModalityRuleSetConfig `mapstructure:"modality_rule_sets" yaml:"modality_rule_sets" validate:"dive"`
	SOPClassSets      []SOPClassSetConfig     `mapstructure:"sop_class_sets" yaml:"sop_class_sets" validate:"dive"`

	Listeners []ListenerConfig `mapstructure:"listeners" yaml:"listeners" validate:"required,min=1,dive"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Valid values: DEBUG, INFO, WARN, ERROR (normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// IndexConfig selects the instance index backend.
//
// Only the section matching Type is used.
type IndexConfig struct {
	// Valid values: memory, badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
}

// StorageStrategyConfig declares a path template.
type StorageStrategyConfig struct {
	Name                  string            `mapstructure:"name" yaml:"name" validate:"required"`
	UseDateSubdirectories bool              `mapstructure:"use_date_subdirectories" yaml:"use_date_subdirectories"`
	Directories           []DirectoryConfig `mapstructure:"directories" yaml:"directories" validate:"dive"`
	File                  FileConfig        `mapstructure:"file" yaml:"file"`
}

// DirectoryConfig is one templated directory level.
//
// Tag accepts 0x00100020, (0010,0020), 0010,0020 or a decimal number.
type DirectoryConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Tag     string `mapstructure:"tag" yaml:"tag" validate:"required"`
	Default string `mapstructure:"default" yaml:"default,omitempty"`
}

// FileConfig controls the file name. An empty Tag uses a random UUID.
type FileConfig struct {
	Tag       string `mapstructure:"tag" yaml:"tag,omitempty"`
	Overwrite bool   `mapstructure:"overwrite" yaml:"overwrite"`
	Extension string `mapstructure:"extension" yaml:"extension"`
}

// ModalityRuleSetConfig declares per-modality transcode rules.
type ModalityRuleSetConfig struct {
	Name  string               `mapstructure:"name" yaml:"name" validate:"required"`
	Rules []ModalityRuleConfig `mapstructure:"rules" yaml:"rules" validate:"dive"`
}

// ModalityRuleConfig is a single rule. Modality "all" is the fallback.
type ModalityRuleConfig struct {
	Modality             string `mapstructure:"modality" yaml:"modality" validate:"required"`
	Action               string `mapstructure:"action" yaml:"action,omitempty" validate:"omitempty,oneof=compress decompress"`
	Ratio                string `mapstructure:"ratio" yaml:"ratio,omitempty"`
	OutputTransferSyntax string `mapstructure:"output_transfer_syntax" yaml:"output_transfer_syntax,omitempty"`
}

// SOPClassSetConfig lists class UID patterns: exact UIDs, "*" or "<prefix>*".
type SOPClassSetConfig struct {
	Name       string   `mapstructure:"name" yaml:"name" validate:"required"`
	SOPClasses []string `mapstructure:"sop_classes" yaml:"sop_classes"`
}

// ListenerConfig declares one receiving endpoint.
type ListenerConfig struct {
	AETitle     string                `mapstructure:"ae_title" yaml:"ae_title" validate:"required,max=16"`
	Port        int                   `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	SOPClassSet string                `mapstructure:"sop_class_set" yaml:"sop_class_set" validate:"required"`
	RateLimit   RateLimitConfig       `mapstructure:"rate_limit" yaml:"rate_limit"`
	Storage     ListenerStorageConfig `mapstructure:"storage" yaml:"storage"`
	Mirror      MirrorConfig          `mapstructure:"mirror" yaml:"mirror"`
}

// RateLimitConfig bounds requests per calling AE title. Zero disables it.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             uint `mapstructure:"burst" yaml:"burst"`
}

// ListenerStorageConfig describes where and how a listener stores objects.
type ListenerStorageConfig struct {
	Root string `mapstructure:"root" yaml:"root" validate:"required"`

	// MaxDiskUsage is a percentage such as "90%" or "90".
	MaxDiskUsage string `mapstructure:"max_disk_usage" yaml:"max_disk_usage" validate:"required"`

	Strategy        string `mapstructure:"strategy" yaml:"strategy" validate:"required"`
	ModalityRuleSet string `mapstructure:"modality_rule_set" yaml:"modality_rule_set,omitempty"`

	SerializeAdmission bool `mapstructure:"serialize_admission" yaml:"serialize_admission"`
	StrictTranscode    bool `mapstructure:"strict_transcode" yaml:"strict_transcode"`
}

// MirrorConfig selects an optional off-site copy of stored files.
type MirrorConfig struct {
	// Valid values: none, s3
	Type string         `mapstructure:"type" yaml:"type" validate:"required,oneof=none s3"`
	S3   map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// Load reads configuration from file and environment, applies defaults and
// validates the result.
//
// Parameters:
//   - configPath: Explicit file path. Empty uses GetDefaultConfigPath; a
//     missing file at the default location is not an error, so a bare
//     installation runs on defaults.
//
// Returns:
//   - the validated configuration
//   - error if an explicit file is missing or unreadable, the content cannot
//     be decoded, or validation fails
//
// Example:
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	listeners, err := config.Build(cfg)
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper wires environment overrides (DITTODICOM_LOGGING_LEVEL=DEBUG)
// and the config file location.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("DITTODICOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	// $XDG_CONFIG_HOME/dittodicom/config.{yaml,toml}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir uses XDG_CONFIG_HOME, then ~/.config, then the current
// directory.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittodicom")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittodicom")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
