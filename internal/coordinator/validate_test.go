package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/devrev/agentmesh/internal/config"
	"github.com/devrev/agentmesh/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHealthySystem(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator", "qa-reviewer")

	got := f.coord.ValidateSystem()
	assert.True(t, got.Valid)
	assert.Empty(t, got.Errors)
	assert.Empty(t, got.Warnings)
}

func TestValidateFailedComponentIsError(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator", "qa-reviewer", "qa-auditor", "qa-worker")
	f.coord.RegisterComponent(model.ComponentStatus{ID: "qa-broken", State: model.StateFailed})

	got := f.coord.ValidateSystem()
	assert.False(t, got.Valid)
	assert.Contains(t, got.Errors, "component qa-broken is failed")
}

func TestValidateDegradedAndStartingAreWarnings(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator", "qa-reviewer")
	f.coord.RegisterComponent(model.ComponentStatus{ID: "qa-slow", State: model.StateDegraded})
	f.coord.RegisterComponent(model.ComponentStatus{ID: "qa-new", State: model.StateStarting})

	got := f.coord.ValidateSystem()
	assert.True(t, got.Valid, "warnings alone keep the system valid")
	assert.Contains(t, got.Warnings, "component qa-slow is degraded")
	assert.Contains(t, got.Warnings, "component qa-new is still starting")
}

func TestValidateMissingDependencyIsWarning(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.coord.RegisterComponent(model.ComponentStatus{
		ID:           "qa-reviewer",
		State:        model.StateHealthy,
		Dependencies: []model.ComponentID{"qa-generator"},
	})

	got := f.coord.ValidateSystem()
	assert.True(t, got.Valid)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "permanently unsatisfied")
}

func TestValidateFailedDependencyIsError(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("a", "b", "c", "d", "e", "f", "g", "h")
	f.coord.RegisterComponent(model.ComponentStatus{ID: "qa-generator", State: model.StateFailed})
	f.coord.RegisterComponent(model.ComponentStatus{
		ID:           "qa-reviewer",
		State:        model.StateHealthy,
		Dependencies: []model.ComponentID{"qa-generator"},
	})

	got := f.coord.ValidateSystem()
	assert.False(t, got.Valid)
	assert.Contains(t, got.Errors, "component qa-reviewer depends on failed component qa-generator")
}

func TestValidateLowHealthFindings(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	// One failed of two: health 65, below nominal but above critical.
	f.registerHealthy("qa-generator")
	f.coord.RegisterComponent(model.ComponentStatus{ID: "qa-reviewer", State: model.StateFailed})

	got := f.coord.ValidateSystem()
	found := false
	for _, w := range got.Warnings {
		if w == "system health 65.0 is below nominal" {
			found = true
		}
	}
	assert.True(t, found, "expected below-nominal warning, got %v", got.Warnings)

	// Every component failed drives health to 30, a validation error.
	f.coord.UnregisterComponent("qa-generator")
	got = f.coord.ValidateSystem()
	assert.False(t, got.Valid)
	assert.Contains(t, got.Errors, "system health 30.0 is critically low")
}

func TestValidateOverdueOperationIsWarning(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{OperationTTL: time.Millisecond})
	f.registerHealthy("qa-generator")

	result, err := f.coord.StartOperation(context.Background(), model.Operation{
		Kind:         model.OpGenerate,
		Participants: []model.ComponentID{"qa-generator"},
	}, false)
	require.NoError(t, err)
	require.True(t, result.Success)

	time.Sleep(5 * time.Millisecond)

	got := f.coord.ValidateSystem()
	assert.True(t, got.Valid)
	require.NotEmpty(t, got.Warnings)
	assert.Contains(t, got.Warnings[len(got.Warnings)-1], "exceeded its deadline")
}
