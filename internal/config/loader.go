package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables. The file
// is optional; defaults plus environment overrides are enough to start.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not read config file %s: %v. Using defaults and environment variables.\n", configPath, err)
	} else {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	applyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvironmentOverrides applies environment variable overrides to
// cfg. Environment values take precedence over the file.
func applyEnvironmentOverrides(cfg *Config) {
	if lvl := os.Getenv("AGENTMESH_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if format := os.Getenv("AGENTMESH_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
	if port := os.Getenv("AGENTMESH_OPS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Ops.Port = p
		}
	}
	if interval := os.Getenv("AGENTMESH_HEALTH_CHECK_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Coordinator.HealthCheckInterval = d
		}
	}
	if interval := os.Getenv("AGENTMESH_METRICS_EXPORT_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Coordinator.MetricsExportInterval = d
		}
	}
	if ttl := os.Getenv("AGENTMESH_OPERATION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.Coordinator.OperationTTL = d
		}
	}
	if exporter := os.Getenv("AGENTMESH_TRACING_EXPORTER"); exporter != "" {
		cfg.Tracing.Exporter = exporter
	}
	if endpoint := os.Getenv("AGENTMESH_TRACING_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
	}
}

// WriteDefault writes the default configuration as YAML to path, for use
// as a starting point.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}
