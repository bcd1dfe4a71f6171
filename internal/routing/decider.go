package routing

import (
	"fmt"
	"sync"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// Defaults for the decider configuration.
const (
	DefaultMaxRetries    = 3
	DefaultHistoryCap    = 500
	DefaultHubHealthyMin = 40.0

	fallbackAlertShare = 0.10
	directPreferShare  = 0.50
)

// Config holds routing decider tuning.
type Config struct {
	// MaxRetries bounds retry attempts on the fallback path.
	MaxRetries int
	// HistoryCap bounds the latency history kept for recommendations.
	HistoryCap int
	// HubHealthyMin is the system health score at or above which the hub
	// is considered healthy.
	HubHealthyMin float64
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = DefaultHistoryCap
	}
	if c.HubHealthyMin <= 0 {
		c.HubHealthyMin = DefaultHubHealthyMin
	}
}

type latencySample struct {
	mode    model.RoutingMode
	latency time.Duration
}

// ModeStats are the rolling per-mode routing statistics.
type ModeStats struct {
	Count          int
	AverageLatency time.Duration
}

// Status is a point-in-time view of routing statistics, exported with the
// periodic metrics snapshot.
type Status struct {
	Modes       map[model.RoutingMode]ModeStats
	Recommended model.RoutingMode
}

// Decider chooses a routing mode per message and tracks rolling per-mode
// latency. A message is assigned exactly one mode per send; the decider
// never returns an empty decision, even when both hub and direct paths
// are unavailable.
type Decider struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	history []latencySample
	counts  map[model.RoutingMode]int
	totals  map[model.RoutingMode]time.Duration
}

// NewDecider creates a routing decider.
func NewDecider(cfg Config, logger *zap.Logger) *Decider {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{
		cfg:     cfg,
		logger:  logger,
		history: make([]latencySample, 0, cfg.HistoryCap),
		counts:  make(map[model.RoutingMode]int),
		totals:  make(map[model.RoutingMode]time.Duration),
	}
}

// Decide chooses the routing mode for msg against the snapshot.
// Broadcast always routes via hub. Direct is preferred when a direct
// connection to the target exists, the hub is unhealthy and the message
// is not pinned to broadcast. A healthy hub takes everything else; when
// neither path is usable the message falls back with bounded retries
// rather than being dropped.
func (d *Decider) Decide(msg model.UnifiedMessage, snap model.Snapshot) model.RoutingDecision {
	if msg.IsBroadcast() {
		return model.RoutingDecision{
			Mode:   model.RouteHub,
			Reason: "broadcast targets route via hub",
		}
	}

	hubHealthy := snap.Health >= d.cfg.HubHealthyMin
	directAvailable := d.directAvailable(msg, snap)

	switch {
	case directAvailable && !hubHealthy && msg.Priority != model.MessagePriorityBroadcastOnly:
		return model.RoutingDecision{
			Mode:   model.RouteDirect,
			Reason: fmt.Sprintf("hub unhealthy (health %.1f), direct connection to %s available", snap.Health, msg.Target),
		}
	case hubHealthy:
		return model.RoutingDecision{
			Mode:   model.RouteHub,
			Reason: "hub healthy",
		}
	default:
		d.logger.Warn("No healthy route, using fallback",
			zap.String("message_id", msg.ID),
			zap.String("target", string(msg.Target)),
			zap.Float64("health", snap.Health))
		return model.RoutingDecision{
			Mode:        model.RouteFallback,
			Reason:      "hub unhealthy and no direct connection available",
			ShouldRetry: true,
			MaxRetries:  d.cfg.MaxRetries,
		}
	}
}

// directAvailable reports whether a peer-to-peer path to the target
// exists: the target must be registered and not failed.
func (d *Decider) directAvailable(msg model.UnifiedMessage, snap model.Snapshot) bool {
	target, ok := snap.Component(msg.Target)
	if !ok {
		return false
	}
	return target.State == model.StateHealthy || target.State == model.StateDegraded
}

// RecordLatency records an observed routing latency for mode. History is
// capped to bound memory; per-mode totals keep a count-weighted running
// mean.
func (d *Decider) RecordLatency(mode model.RoutingMode, latency time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.history) >= d.cfg.HistoryCap {
		evicted := d.history[0]
		d.history = d.history[1:]
		d.counts[evicted.mode]--
		d.totals[evicted.mode] -= evicted.latency
	}
	d.history = append(d.history, latencySample{mode: mode, latency: latency})
	d.counts[mode]++
	d.totals[mode] += latency
}

// AverageLatency returns the running mean latency for mode over the
// retained history window.
func (d *Decider) AverageLatency(mode model.RoutingMode) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.averageLocked(mode)
}

func (d *Decider) averageLocked(mode model.RoutingMode) time.Duration {
	n := d.counts[mode]
	if n <= 0 {
		return 0
	}
	return d.totals[mode] / time.Duration(n)
}

// RecommendOptimalMode inspects recent traffic. Heavy fallback usage
// (>10%) is a signal of systemic trouble and is surfaced as-is. Direct is
// recommended when it carries the majority of traffic and beats the hub
// on latency; hub is the default otherwise.
func (d *Decider) RecommendOptimalMode() model.RoutingMode {
	d.mu.Lock()
	defer d.mu.Unlock()

	total := len(d.history)
	if total == 0 {
		return model.RouteHub
	}

	fallbackShare := float64(d.counts[model.RouteFallback]) / float64(total)
	if fallbackShare > fallbackAlertShare {
		return model.RouteFallback
	}

	directShare := float64(d.counts[model.RouteDirect]) / float64(total)
	directAvg := d.averageLocked(model.RouteDirect)
	hubAvg := d.averageLocked(model.RouteHub)
	if directShare > directPreferShare && directAvg > 0 && (hubAvg == 0 || directAvg < hubAvg) {
		return model.RouteDirect
	}

	return model.RouteHub
}

// StatusSnapshot returns the current per-mode statistics and the
// recommended mode.
func (d *Decider) StatusSnapshot() Status {
	recommended := d.RecommendOptimalMode()

	d.mu.Lock()
	defer d.mu.Unlock()

	modes := make(map[model.RoutingMode]ModeStats, len(model.RoutingModes))
	for _, mode := range model.RoutingModes {
		modes[mode] = ModeStats{
			Count:          d.counts[mode],
			AverageLatency: d.averageLocked(mode),
		}
	}
	return Status{Modes: modes, Recommended: recommended}
}
