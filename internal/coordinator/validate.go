package coordinator

import (
	"fmt"
	"sort"
	"time"

	"github.com/devrev/agentmesh/internal/model"
)

// ValidateSystem aggregates component, dependency and operation issues
// into a structured result. It never returns an error: findings are
// reported as errors (must fix) and warnings (degraded but operable).
func (c *Coordinator) ValidateSystem() model.ValidationResult {
	snap := c.Snapshot()
	result := model.ValidationResult{Valid: true}

	ids := make([]model.ComponentID, 0, len(snap.Components))
	for id := range snap.Components {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		comp := snap.Components[id]
		switch comp.State {
		case model.StateFailed:
			result.Errors = append(result.Errors, fmt.Sprintf("component %s is failed", id))
		case model.StateDegraded:
			result.Warnings = append(result.Warnings, fmt.Sprintf("component %s is degraded", id))
		case model.StateStarting:
			result.Warnings = append(result.Warnings, fmt.Sprintf("component %s is still starting", id))
		}

		for _, dep := range comp.Dependencies {
			target, ok := snap.Components[dep]
			if !ok {
				result.Warnings = append(result.Warnings, fmt.Sprintf("component %s depends on %s, which is not registered (permanently unsatisfied)", id, dep))
				continue
			}
			if target.State == model.StateFailed {
				result.Errors = append(result.Errors, fmt.Sprintf("component %s depends on failed component %s", id, dep))
			}
		}
	}

	if snap.Health < 50 {
		result.Errors = append(result.Errors, fmt.Sprintf("system health %.1f is critically low", snap.Health))
	} else if snap.Health < 70 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("system health %.1f is below nominal", snap.Health))
	}

	now := time.Now()
	for _, op := range snap.ActiveOperations {
		if !op.Deadline.IsZero() && now.After(op.Deadline) {
			result.Warnings = append(result.Warnings, fmt.Sprintf("operation %s exceeded its deadline and awaits eviction", op.ID))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}
