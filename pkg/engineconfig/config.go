// Package engineconfig provides configuration loading and validation for the
// piece tree engine.
package engineconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidHibernationThreshold = errors.New("hibernation threshold must be positive")
	ErrInvalidLogLevel             = errors.New("unrecognized log level")
)

// Default configuration values.
const (
	defaultHibernationThreshold = 1000
	defaultLogLevel             = "info"
	defaultLogFormat            = "json"
)

// Config holds all configuration for the piece tree engine.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// EngineConfig holds mutation-engine tunables.
type EngineConfig struct {
	// HibernationThreshold is loaded, defaulted and checked to be positive.
	// Nothing in pkg/piecetree reads it: BufferPool.Hibernate compacts
	// whenever it is called, whatever the node count.
	HibernationThreshold int `mapstructure:"hibernation_threshold"`

	// PropagateChangeErrors controls whether Engine.Change returns the
	// callback's error after closing the change group, instead of
	// swallowing it.
	PropagateChangeErrors bool `mapstructure:"propagate_change_errors"`

	// GroupedUndoAutoClose is loaded and defaulted with the engine section.
	// Nothing in pkg/piecetree reads it: an open change group stays open
	// until its EndChange.
	GroupedUndoAutoClose bool `mapstructure:"grouped_undo_auto_close"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig holds tracing-specific configuration.
type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("piecetree")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix("PIECETREE")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("engine.hibernation_threshold", defaultHibernationThreshold)
	viperCfg.SetDefault("engine.propagate_change_errors", false)
	viperCfg.SetDefault("engine.grouped_undo_auto_close", true)

	viperCfg.SetDefault("logging.level", defaultLogLevel)
	viperCfg.SetDefault("logging.format", defaultLogFormat)

	viperCfg.SetDefault("tracing.otlp_endpoint", "")
	viperCfg.SetDefault("tracing.otlp_insecure", false)
	viperCfg.SetDefault("tracing.sample_ratio", 1.0)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Engine.HibernationThreshold <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidHibernationThreshold, config.Engine.HibernationThreshold)
	}

	switch config.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, config.Logging.Level)
	}

	return nil
}
