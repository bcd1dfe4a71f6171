package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devrev/agentmesh/internal/bus"
	"github.com/devrev/agentmesh/internal/config"
	"github.com/devrev/agentmesh/internal/coordinator"
	"github.com/devrev/agentmesh/internal/dispatch"
	"github.com/devrev/agentmesh/internal/health"
	"github.com/devrev/agentmesh/internal/metrics"
	"github.com/devrev/agentmesh/internal/model"
	"github.com/devrev/agentmesh/internal/observability"
	"github.com/devrev/agentmesh/internal/registry"
	"github.com/devrev/agentmesh/internal/risk"
	"github.com/devrev/agentmesh/internal/routing"
	"github.com/devrev/agentmesh/internal/scheduler"
	"github.com/devrev/agentmesh/internal/server"
	"github.com/devrev/agentmesh/internal/strategy"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	writeConfig := flag.String("write-config", "", "write the default config to the given path and exit")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.WriteDefault(*writeConfig); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write default config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Default config written to %s\n", *writeConfig)
		return
	}

	path := *configPath
	if path == "" {
		path = os.Getenv("AGENTMESH_CONFIG")
	}
	if path == "" {
		path = "./config.yaml"
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting agentmesh coordination core")

	ctx := context.Background()
	shutdownTracing, err := observability.Init(ctx, cfg.Tracing, "agentmesh")
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	m := metrics.New()
	eventBus := bus.NewBus(cfg.Bus.Buffer, logger)
	reg := registry.NewRegistry(logger)
	evaluator := health.NewEvaluator(logger)
	assessor := risk.NewAssessor(cfg.Risk.HighBand, cfg.Risk.CriticalBand, logger)
	router := routing.NewDecider(routing.Config{
		MaxRetries:    cfg.Routing.MaxRetries,
		HistoryCap:    cfg.Routing.HistoryCap,
		HubHealthyMin: cfg.Routing.HubHealthyMin,
	}, logger)
	selector := strategy.NewSelector(strategy.Config{
		DistributedThreshold: cfg.Strategy.DistributedThreshold,
		BaseDuration:         cfg.Strategy.BaseDuration,
		PerParticipant:       cfg.Strategy.PerParticipant,
	}, logger)
	sched := scheduler.NewScheduler(scheduler.Config{
		AgingInterval:   cfg.Scheduler.AgingInterval,
		AgingFactor:     cfg.Scheduler.AgingFactor,
		DisableFairness: cfg.Scheduler.DisableFairness,
	}, logger)
	pool := dispatch.NewPool(dispatch.Config{
		Workers:   cfg.Dispatch.Workers,
		QueueSize: cfg.Dispatch.QueueSize,
	}, logger)

	coord := coordinator.NewCoordinator(coordinator.Options{
		Config:    cfg.Coordinator,
		Registry:  reg,
		Health:    evaluator,
		Risk:      assessor,
		Router:    router,
		Selector:  selector,
		Scheduler: sched,
		Bus:       eventBus,
		Pool:      pool,
		Metrics:   m,
		Logger:    logger,
	})

	// Static topology and quotas from configuration.
	for _, comp := range cfg.Components {
		deps := make([]model.ComponentID, 0, len(comp.Dependencies))
		for _, d := range comp.Dependencies {
			deps = append(deps, model.ComponentID(d))
		}
		coord.RegisterComponent(model.ComponentStatus{
			ID:           model.ComponentID(comp.ID),
			State:        model.StateStarting,
			Dependencies: deps,
			Capabilities: comp.Capabilities,
		})
	}
	for _, agent := range cfg.Agents {
		coord.SetAgentQuota(agent.ID, model.AgentQuota{
			MaxConcurrent: agent.MaxConcurrent,
			MaxPerMinute:  agent.MaxPerMinute,
			MaxPerHour:    agent.MaxPerHour,
		})
	}

	coord.Start()

	var ops *server.OpsServer
	if cfg.Ops.Enabled {
		ops = server.NewOpsServer(cfg.Ops.Port, cfg.Ops.ReadyHealthMin, coord, logger)
		ops.Start()
	}

	logger.Info("agentmesh ready",
		zap.Int("components", len(cfg.Components)),
		zap.Int("agents", len(cfg.Agents)),
		zap.Bool("ops_enabled", cfg.Ops.Enabled))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if ops != nil {
		if err := ops.Stop(shutdownCtx); err != nil {
			logger.Warn("Ops server shutdown failed", zap.Error(err))
		}
	}
	coord.Shutdown()
	sched.Shutdown()
	if err := pool.Stop(5 * time.Second); err != nil {
		logger.Warn("Dispatch pool shutdown failed", zap.Error(err))
	}
	eventBus.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("Tracing shutdown failed", zap.Error(err))
	}

	logger.Info("agentmesh stopped")
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
