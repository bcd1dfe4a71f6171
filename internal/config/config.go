package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full configuration of the coordination core.
type Config struct {
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler" yaml:"scheduler"`
	Routing     RoutingConfig     `mapstructure:"routing" yaml:"routing"`
	Risk        RiskConfig        `mapstructure:"risk" yaml:"risk"`
	Strategy    StrategyConfig    `mapstructure:"strategy" yaml:"strategy"`
	Bus         BusConfig         `mapstructure:"bus" yaml:"bus"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch" yaml:"dispatch"`
	Ops         OpsConfig         `mapstructure:"ops" yaml:"ops"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Tracing     TracingConfig     `mapstructure:"tracing" yaml:"tracing"`
	Components  []ComponentConfig `mapstructure:"components" yaml:"components"`
	Agents      []AgentConfig     `mapstructure:"agents" yaml:"agents"`
}

// CoordinatorConfig tunes the orchestrator's background loops and
// operation tracking.
type CoordinatorConfig struct {
	HealthCheckInterval   time.Duration `mapstructure:"health_check_interval" yaml:"health_check_interval"`
	MetricsExportInterval time.Duration `mapstructure:"metrics_export_interval" yaml:"metrics_export_interval"`
	EvictionInterval      time.Duration `mapstructure:"eviction_interval" yaml:"eviction_interval"`
	OperationTTL          time.Duration `mapstructure:"operation_ttl" yaml:"operation_ttl"`
	ModeQueueCap          int           `mapstructure:"mode_queue_cap" yaml:"mode_queue_cap"`
}

// SchedulerConfig tunes the fairness scheduler.
type SchedulerConfig struct {
	AgingInterval   time.Duration `mapstructure:"aging_interval" yaml:"aging_interval"`
	AgingFactor     int           `mapstructure:"aging_factor" yaml:"aging_factor"`
	DisableFairness bool          `mapstructure:"disable_fairness" yaml:"disable_fairness"`
}

// RoutingConfig tunes the routing decider.
type RoutingConfig struct {
	MaxRetries    int     `mapstructure:"max_retries" yaml:"max_retries"`
	HistoryCap    int     `mapstructure:"history_cap" yaml:"history_cap"`
	HubHealthyMin float64 `mapstructure:"hub_healthy_min" yaml:"hub_healthy_min"`
}

// RiskConfig sets the system health bands used by risk assessment.
type RiskConfig struct {
	HighBand     float64 `mapstructure:"high_band" yaml:"high_band"`
	CriticalBand float64 `mapstructure:"critical_band" yaml:"critical_band"`
}

// StrategyConfig tunes execution strategy selection.
type StrategyConfig struct {
	DistributedThreshold int           `mapstructure:"distributed_threshold" yaml:"distributed_threshold"`
	BaseDuration         time.Duration `mapstructure:"base_duration" yaml:"base_duration"`
	PerParticipant       time.Duration `mapstructure:"per_participant" yaml:"per_participant"`
}

// BusConfig sets the event bus buffer size.
type BusConfig struct {
	Buffer int `mapstructure:"buffer" yaml:"buffer"`
}

// DispatchConfig tunes the dispatch worker pool.
type DispatchConfig struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// OpsConfig configures the operational HTTP endpoint.
type OpsConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Port           int     `mapstructure:"port" yaml:"port"`
	ReadyHealthMin float64 `mapstructure:"ready_health_min" yaml:"ready_health_min"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Exporter    string  `mapstructure:"exporter" yaml:"exporter"`
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRatio float64 `mapstructure:"sample_ratio" yaml:"sample_ratio"`
}

// ComponentConfig declares a component registered at startup.
type ComponentConfig struct {
	ID           string   `mapstructure:"id" yaml:"id"`
	Dependencies []string `mapstructure:"dependencies" yaml:"dependencies"`
	Capabilities []string `mapstructure:"capabilities" yaml:"capabilities"`
}

// AgentConfig declares an agent quota set at startup.
type AgentConfig struct {
	ID            string `mapstructure:"id" yaml:"id"`
	MaxConcurrent int    `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	MaxPerMinute  int    `mapstructure:"max_per_minute" yaml:"max_per_minute"`
	MaxPerHour    int    `mapstructure:"max_per_hour" yaml:"max_per_hour"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			HealthCheckInterval:   30 * time.Second,
			MetricsExportInterval: 60 * time.Second,
			EvictionInterval:      15 * time.Second,
			OperationTTL:          5 * time.Minute,
			ModeQueueCap:          1000,
		},
		Scheduler: SchedulerConfig{
			AgingInterval: 10 * time.Second,
			AgingFactor:   1,
		},
		Routing: RoutingConfig{
			MaxRetries:    3,
			HistoryCap:    500,
			HubHealthyMin: 40,
		},
		Risk: RiskConfig{
			HighBand:     70,
			CriticalBand: 50,
		},
		Strategy: StrategyConfig{
			DistributedThreshold: 4,
			BaseDuration:         2 * time.Second,
			PerParticipant:       500 * time.Millisecond,
		},
		Bus: BusConfig{
			Buffer: 64,
		},
		Dispatch: DispatchConfig{
			Workers:   4,
			QueueSize: 128,
		},
		Ops: OpsConfig{
			Enabled:        true,
			Port:           9600,
			ReadyHealthMin: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			Endpoint:    "localhost:4317",
			Insecure:    true,
			SampleRatio: 1.0,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Coordinator.HealthCheckInterval <= 0 {
		return errors.New("coordinator.health_check_interval must be positive")
	}
	if c.Coordinator.MetricsExportInterval <= 0 {
		return errors.New("coordinator.metrics_export_interval must be positive")
	}
	if c.Coordinator.OperationTTL <= 0 {
		return errors.New("coordinator.operation_ttl must be positive")
	}
	if c.Scheduler.AgingInterval <= 0 {
		return errors.New("scheduler.aging_interval must be positive")
	}
	if c.Scheduler.AgingFactor <= 0 {
		return errors.New("scheduler.aging_factor must be positive")
	}
	if c.Routing.MaxRetries <= 0 {
		return errors.New("routing.max_retries must be positive")
	}
	if c.Routing.HistoryCap <= 0 {
		return errors.New("routing.history_cap must be positive")
	}
	if c.Risk.CriticalBand >= c.Risk.HighBand {
		return errors.New("risk.critical_band must be below risk.high_band")
	}
	if c.Strategy.DistributedThreshold < 2 {
		return errors.New("strategy.distributed_threshold must be at least 2")
	}
	if c.Ops.Enabled && (c.Ops.Port <= 0 || c.Ops.Port > 65535) {
		return errors.New("ops.port must be between 1 and 65535")
	}
	switch c.Tracing.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("tracing.exporter must be one of: none, stdout, otlp (got %q)", c.Tracing.Exporter)
	}
	seen := make(map[string]bool, len(c.Components))
	for _, comp := range c.Components {
		if comp.ID == "" {
			return errors.New("components[].id is required")
		}
		if seen[comp.ID] {
			return fmt.Errorf("duplicate component id %q", comp.ID)
		}
		seen[comp.ID] = true
	}
	for _, agent := range c.Agents {
		if agent.ID == "" {
			return errors.New("agents[].id is required")
		}
		if agent.MaxConcurrent < 0 || agent.MaxPerMinute < 0 || agent.MaxPerHour < 0 {
			return fmt.Errorf("agent %q quota limits must not be negative", agent.ID)
		}
	}
	return nil
}
