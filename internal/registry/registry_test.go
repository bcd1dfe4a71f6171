package registry

import (
	"testing"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegisterIsIdempotentByID(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	replaced := r.Register(model.ComponentStatus{ID: "qa-generator", State: model.StateStarting})
	assert.False(t, replaced)

	replaced = r.Register(model.ComponentStatus{ID: "qa-generator", State: model.StateHealthy})
	assert.True(t, replaced)

	assert.Equal(t, 1, r.Count())

	status, ok := r.Get("qa-generator")
	require.True(t, ok)
	assert.Equal(t, model.StateHealthy, status.State, "latest status must win")
}

func TestUnregisterMissingIsNoOp(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	assert.False(t, r.Unregister("ghost"))

	r.Register(model.ComponentStatus{ID: "qa-reviewer", State: model.StateHealthy})
	assert.True(t, r.Unregister("qa-reviewer"))
	assert.False(t, r.Unregister("qa-reviewer"))
	assert.Equal(t, 0, r.Count())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(model.ComponentStatus{
		ID:           "qa-auditor",
		State:        model.StateHealthy,
		Dependencies: []model.ComponentID{"qa-generator"},
	})

	snap := r.Snapshot()
	entry := snap["qa-auditor"]
	entry.State = model.StateFailed
	entry.Dependencies[0] = "mutated"
	snap["qa-auditor"] = entry

	status, ok := r.Get("qa-auditor")
	require.True(t, ok)
	assert.Equal(t, model.StateHealthy, status.State)
	assert.Equal(t, model.ComponentID("qa-generator"), status.Dependencies[0])
}

func TestSetState(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(model.ComponentStatus{ID: "qa-generator", State: model.StateStarting})

	now := time.Now()
	assert.True(t, r.SetState("qa-generator", model.StateHealthy, now))
	assert.False(t, r.SetState("unknown", model.StateHealthy, now))

	status, _ := r.Get("qa-generator")
	assert.Equal(t, model.StateHealthy, status.State)
	assert.Equal(t, now, status.LastChecked)
}

func TestRegisterInvalidStateDefaultsToStarting(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(model.ComponentStatus{ID: "qa-generator"})

	status, ok := r.Get("qa-generator")
	require.True(t, ok)
	assert.Equal(t, model.StateStarting, status.State)
	assert.False(t, status.RegisteredAt.IsZero())
}
