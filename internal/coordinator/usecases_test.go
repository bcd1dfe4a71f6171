package coordinator

import (
	"context"
	"fmt"
	"testing"

	"github.com/devrev/agentmesh/internal/config"
	"github.com/devrev/agentmesh/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteMessageUseCaseBatchSettlesAll(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator", "qa-reviewer")
	uc := NewRouteMessageUseCase(f.coord)

	msgs := make([]model.UnifiedMessage, 0, 21)
	for i := 0; i < 21; i++ {
		if i == 10 {
			// A malformed message in the middle of the batch.
			msgs = append(msgs, model.UnifiedMessage{ID: "bad", Source: "qa-generator"})
			continue
		}
		msgs = append(msgs, model.UnifiedMessage{
			ID:     fmt.Sprintf("msg-%d", i),
			Source: "qa-generator",
			Target: "qa-reviewer",
		})
	}

	results := uc.ExecuteBatch(context.Background(), msgs)
	require.Len(t, results, 21)

	failures := 0
	for i, r := range results {
		// Request order is preserved regardless of completion order.
		assert.Equal(t, msgs[i].ID, r.Message.ID)
		if !r.Success {
			failures++
			assert.Equal(t, "bad", r.Message.ID)
		}
	}
	assert.Equal(t, 1, failures, "one failure never aborts the rest")
	assert.Equal(t, 20, f.coord.PendingMessages(model.RouteHub))
}

func TestRouteMessageUseCaseSingle(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-reviewer")
	uc := NewRouteMessageUseCase(f.coord)

	result := uc.Execute(context.Background(), model.UnifiedMessage{
		Source: "qa-generator",
		Target: "qa-reviewer",
	})
	assert.True(t, result.Success)
}

func TestExecuteOperationUseCaseConvertsErrors(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator")
	uc := NewExecuteOperationUseCase(f.coord)

	// A malformed request comes back as a structured failure.
	result := uc.Execute(context.Background(), model.Operation{Kind: model.OpGenerate}, false)
	assert.False(t, result.Success)
	assert.Equal(t, ErrInvalidOperation.Error(), result.Error)

	result = uc.Execute(context.Background(), model.Operation{
		Kind:         model.OpGenerate,
		Participants: []model.ComponentID{"qa-generator"},
	}, false)
	assert.True(t, result.Success)
}

func TestExecuteOperationUseCaseBatch(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator", "qa-reviewer")
	uc := NewExecuteOperationUseCase(f.coord)

	ops := []model.Operation{
		{Kind: model.OpGenerate, Participants: []model.ComponentID{"qa-generator"}},
		{Kind: model.OpReview}, // malformed
		{Kind: model.OpReview, Participants: []model.ComponentID{"qa-reviewer"}},
	}

	results := uc.ExecuteBatch(context.Background(), ops, false)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)

	assert.Len(t, f.coord.Snapshot().ActiveOperations, 2)
}

func TestValidateSystemUseCase(t *testing.T) {
	f := newFixture(t, config.CoordinatorConfig{})
	f.registerHealthy("qa-generator")
	uc := NewValidateSystemUseCase(f.coord)

	got := uc.Execute(context.Background())
	assert.True(t, got.Valid)
}
