package strategy

import (
	"fmt"
	"sort"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// Defaults for strategy selection.
const (
	DefaultDistributedThreshold = 4
	DefaultBaseDuration         = 2 * time.Second
	DefaultPerParticipant       = 500 * time.Millisecond
)

// Config holds execution strategy tuning.
type Config struct {
	// DistributedThreshold is the participant count at which an operation
	// is partitioned instead of executed synchronously.
	DistributedThreshold int
	// BaseDuration and PerParticipant drive duration estimation.
	BaseDuration   time.Duration
	PerParticipant time.Duration
}

func (c *Config) applyDefaults() {
	if c.DistributedThreshold <= 0 {
		c.DistributedThreshold = DefaultDistributedThreshold
	}
	if c.BaseDuration <= 0 {
		c.BaseDuration = DefaultBaseDuration
	}
	if c.PerParticipant <= 0 {
		c.PerParticipant = DefaultPerParticipant
	}
}

// Selector chooses how an operation is carried out: synchronously
// in-process, partitioned across participants, forwarded whole to a
// single capable delegate, or deferred to the fairness scheduler.
type Selector struct {
	cfg    Config
	logger *zap.Logger
}

// NewSelector creates an execution strategy selector.
func NewSelector(cfg Config, logger *zap.Logger) *Selector {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{cfg: cfg, logger: logger}
}

// Select plans the execution of op against the snapshot. Selection order:
// partition when the participant count reaches the distributed threshold,
// execute immediately when every participant is healthy, otherwise search
// for a delegate, and queue when nothing else holds.
func (s *Selector) Select(op model.Operation, snap model.Snapshot) model.StrategyDecision {
	n := len(op.Participants)
	healthy := s.healthyParticipants(op, snap)

	var decision model.StrategyDecision
	switch {
	case n >= s.cfg.DistributedThreshold && len(healthy) > 0:
		decision = model.StrategyDecision{
			Strategy:   model.StrategyDistributed,
			Reason:     fmt.Sprintf("%d participants at or above distributed threshold %d", n, s.cfg.DistributedThreshold),
			Partitions: s.partition(op),
		}
	case s.CanExecuteImmediately(op, snap):
		decision = model.StrategyDecision{
			Strategy: model.StrategyImmediate,
			Reason:   fmt.Sprintf("all %d participant(s) healthy, below distributed threshold", n),
		}
	default:
		if delegate, ok := s.FindDelegate(op, snap); ok {
			decision = model.StrategyDecision{
				Strategy: model.StrategyDelegated,
				Reason:   fmt.Sprintf("delegating to least loaded capable component %s", delegate),
				Delegate: delegate,
			}
		} else {
			decision = model.StrategyDecision{
				Strategy: model.StrategyQueued,
				Reason:   "no healthy participants or capable delegate available",
			}
		}
	}

	decision.EstimatedDuration = s.EstimateDuration(decision.Strategy, n)

	s.logger.Debug("Execution strategy selected",
		zap.String("operation_id", string(op.ID)),
		zap.String("strategy", string(decision.Strategy)),
		zap.String("reason", decision.Reason))

	return decision
}

// CanExecuteImmediately is a pure fast-path predicate: every participant
// is registered and healthy, and the count is below the distributed
// threshold.
func (s *Selector) CanExecuteImmediately(op model.Operation, snap model.Snapshot) bool {
	n := len(op.Participants)
	if n == 0 || n >= s.cfg.DistributedThreshold {
		return false
	}
	for _, id := range op.Participants {
		c, ok := snap.Component(id)
		if !ok || !c.State.IsHealthy() {
			return false
		}
	}
	return true
}

// ShouldQueue is a pure predicate: the operation has no healthy
// participants and no capable delegate, so it must wait in the scheduler.
func (s *Selector) ShouldQueue(op model.Operation, snap model.Snapshot) bool {
	if len(s.healthyParticipants(op, snap)) > 0 {
		return false
	}
	_, ok := s.FindDelegate(op, snap)
	return !ok
}

// FindDelegate runs a best-fit search for a single component to carry the
// whole operation: healthy, satisfying every required capability, with
// the fewest active operations. Ties break by id for determinism.
func (s *Selector) FindDelegate(op model.Operation, snap model.Snapshot) (model.ComponentID, bool) {
	load := snap.ActiveLoad()

	candidates := make([]model.ComponentStatus, 0, len(snap.Components))
	for _, c := range snap.Components {
		if !c.State.IsHealthy() {
			continue
		}
		if !hasCapabilities(c, op.RequiredCapabilities) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return "", false
	}

	sort.Slice(candidates, func(i, j int) bool {
		li, lj := load[candidates[i].ID], load[candidates[j].ID]
		if li != lj {
			return li < lj
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates[0].ID, true
}

// EstimateDuration estimates wall time per strategy. Distributed
// estimates grow monotonically with participant count: a fixed base plus
// a per-participant coordination increment.
func (s *Selector) EstimateDuration(strategy model.ExecutionStrategy, participants int) time.Duration {
	switch strategy {
	case model.StrategyImmediate:
		return s.cfg.BaseDuration
	case model.StrategyDistributed:
		return s.cfg.BaseDuration + time.Duration(participants)*s.cfg.PerParticipant
	case model.StrategyDelegated:
		return s.cfg.BaseDuration + s.cfg.PerParticipant
	default:
		// Queued work has unknown start time; the estimate covers the
		// execution itself once dequeued.
		return s.cfg.BaseDuration
	}
}

// partition splits the operation into near-equal shards, one per
// participant, each tagged with its index and the total shard count.
func (s *Selector) partition(op model.Operation) []model.Partition {
	total := len(op.Participants)
	partitions := make([]model.Partition, 0, total)
	for i, id := range op.Participants {
		partitions = append(partitions, model.Partition{
			Index:           i,
			TotalPartitions: total,
			Participant:     id,
		})
	}
	return partitions
}

func (s *Selector) healthyParticipants(op model.Operation, snap model.Snapshot) []model.ComponentID {
	out := make([]model.ComponentID, 0, len(op.Participants))
	for _, id := range op.Participants {
		if c, ok := snap.Component(id); ok && c.State.IsHealthy() {
			out = append(out, id)
		}
	}
	return out
}

func hasCapabilities(c model.ComponentStatus, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]bool, len(c.Capabilities))
	for _, cap := range c.Capabilities {
		have[cap] = true
	}
	for _, r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}
