package health

import (
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// State weights used when aggregating system health. Degraded and
// starting components count half; failed components count zero.
const (
	healthyFractionWeight = 0.7
	errorRateWeight       = 0.3
)

// Transition records a single component state change computed from a
// batch of check results.
type Transition struct {
	ID        model.ComponentID
	From      model.ComponentState
	To        model.ComponentState
	CheckedAt time.Time
}

// Evaluator computes component health transitions and the aggregate
// system health score. It never mutates state itself; the coordinator
// applies the transitions it returns.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates a health evaluator.
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// Evaluate maps raw check results onto state transitions for the given
// components. A check that errored is treated as failed, never propagated
// to the caller. Results for unknown components are dropped with a
// warning.
func (e *Evaluator) Evaluate(results []model.CheckResult, components map[model.ComponentID]model.ComponentStatus) []Transition {
	now := time.Now()
	transitions := make([]Transition, 0, len(results))

	for _, res := range results {
		current, ok := components[res.ComponentID]
		if !ok {
			e.logger.Warn("Check result for unknown component",
				zap.String("component_id", string(res.ComponentID)))
			continue
		}

		next := res.NewState
		if res.Err != nil {
			next = model.StateFailed
			e.logger.Warn("Health check failed",
				zap.String("component_id", string(res.ComponentID)),
				zap.Error(res.Err))
		} else if !next.Valid() {
			next = model.StateFailed
		}

		transitions = append(transitions, Transition{
			ID:        res.ComponentID,
			From:      current.State,
			To:        next,
			CheckedAt: now,
		})

		if current.State != next {
			e.logger.Info("Component state transition",
				zap.String("component_id", string(res.ComponentID)),
				zap.String("from", string(current.State)),
				zap.String("to", string(next)))
		}
	}

	return transitions
}

// ComputeHealth returns the aggregate system health in [0, 100] as a
// weighted average of the healthy component fraction and the operational
// success rate. The function is monotonic: strictly more failed
// components never increases health, and a higher error rate never
// increases it either. An empty registry scores as fully healthy.
func (e *Evaluator) ComputeHealth(components map[model.ComponentID]model.ComponentStatus, errorRate float64) float64 {
	if errorRate < 0 {
		errorRate = 0
	}
	if errorRate > 1 {
		errorRate = 1
	}

	fraction := 1.0
	if len(components) > 0 {
		score := 0.0
		for _, c := range components {
			switch c.State {
			case model.StateHealthy:
				score += 1.0
			case model.StateDegraded, model.StateStarting:
				score += 0.5
			}
		}
		fraction = score / float64(len(components))
	}

	health := (healthyFractionWeight*fraction + errorRateWeight*(1-errorRate)) * 100
	if health < 0 {
		return 0
	}
	if health > 100 {
		return 100
	}
	return health
}
