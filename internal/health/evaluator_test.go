package health

import (
	"errors"
	"testing"

	"github.com/devrev/agentmesh/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func components(states ...model.ComponentState) map[model.ComponentID]model.ComponentStatus {
	out := make(map[model.ComponentID]model.ComponentStatus, len(states))
	for i, s := range states {
		id := model.ComponentID(rune('a' + i))
		out[id] = model.ComponentStatus{ID: id, State: s}
	}
	return out
}

func TestComputeHealthAllHealthy(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	assert.Equal(t, 100.0, e.ComputeHealth(components(model.StateHealthy, model.StateHealthy), 0))
}

func TestComputeHealthEmptyRegistryIsFullyHealthy(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	assert.Equal(t, 100.0, e.ComputeHealth(nil, 0))
}

func TestComputeHealthWeighsFailures(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	// One of two failed: fraction 0.5, no operational errors.
	got := e.ComputeHealth(components(model.StateHealthy, model.StateFailed), 0)
	assert.InDelta(t, 65.0, got, 0.001)

	// Degraded counts half.
	got = e.ComputeHealth(components(model.StateHealthy, model.StateDegraded), 0)
	assert.InDelta(t, 82.5, got, 0.001)
}

func TestComputeHealthMonotonicInFailures(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	healthier := e.ComputeHealth(components(model.StateHealthy, model.StateHealthy, model.StateHealthy), 0)
	oneFailed := e.ComputeHealth(components(model.StateHealthy, model.StateHealthy, model.StateFailed), 0)
	twoFailed := e.ComputeHealth(components(model.StateHealthy, model.StateFailed, model.StateFailed), 0)

	assert.Greater(t, healthier, oneFailed)
	assert.Greater(t, oneFailed, twoFailed)
}

func TestComputeHealthMonotonicInErrorRate(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	comps := components(model.StateHealthy, model.StateHealthy)

	assert.Greater(t, e.ComputeHealth(comps, 0.1), e.ComputeHealth(comps, 0.5))
}

func TestEvaluateMapsCheckErrorToFailed(t *testing.T) {
	e := NewEvaluator(zap.NewNop())
	comps := components(model.StateHealthy)

	transitions := e.Evaluate([]model.CheckResult{
		{ComponentID: "a", NewState: model.StateHealthy, Err: errors.New("probe timeout")},
	}, comps)

	require.Len(t, transitions, 1)
	assert.Equal(t, model.StateFailed, transitions[0].To)
	assert.Equal(t, model.StateHealthy, transitions[0].From)
}

func TestEvaluateDropsUnknownComponents(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	transitions := e.Evaluate([]model.CheckResult{
		{ComponentID: "ghost", NewState: model.StateHealthy},
	}, components(model.StateHealthy))

	assert.Empty(t, transitions)
}

func TestEvaluateInvalidStateBecomesFailed(t *testing.T) {
	e := NewEvaluator(zap.NewNop())

	transitions := e.Evaluate([]model.CheckResult{
		{ComponentID: "a", NewState: "bogus"},
	}, components(model.StateHealthy))

	require.Len(t, transitions, 1)
	assert.Equal(t, model.StateFailed, transitions[0].To)
}
