package routing

import (
	"fmt"
	"testing"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func snapshot(health float64, targetState model.ComponentState) model.Snapshot {
	comps := map[model.ComponentID]model.ComponentStatus{}
	if targetState != "" {
		comps["qa-reviewer"] = model.ComponentStatus{ID: "qa-reviewer", State: targetState}
	}
	return model.Snapshot{Health: health, Components: comps}
}

func msg(target model.ComponentID, priority model.MessagePriority) model.UnifiedMessage {
	return model.UnifiedMessage{
		ID:       "msg-1",
		Source:   "qa-generator",
		Target:   target,
		Type:     "review-request",
		Priority: priority,
	}
}

func TestDecideBroadcastAlwaysHub(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	// Even with the hub unhealthy, broadcast never picks direct.
	got := d.Decide(msg(model.Broadcast, model.MessagePriorityNormal), snapshot(10, model.StateHealthy))
	assert.Equal(t, model.RouteHub, got.Mode)
}

func TestDecideHealthyHubWins(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	got := d.Decide(msg("qa-reviewer", model.MessagePriorityNormal), snapshot(90, model.StateHealthy))
	assert.Equal(t, model.RouteHub, got.Mode)
	assert.False(t, got.ShouldRetry)
}

func TestDecideDirectWhenHubUnhealthy(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	got := d.Decide(msg("qa-reviewer", model.MessagePriorityNormal), snapshot(20, model.StateHealthy))
	assert.Equal(t, model.RouteDirect, got.Mode)

	// Degraded targets still accept direct traffic.
	got = d.Decide(msg("qa-reviewer", model.MessagePriorityNormal), snapshot(20, model.StateDegraded))
	assert.Equal(t, model.RouteDirect, got.Mode)
}

func TestDecideBroadcastOnlyPriorityNeverDirect(t *testing.T) {
	d := NewDecider(Config{MaxRetries: 2}, zap.NewNop())

	got := d.Decide(msg("qa-reviewer", model.MessagePriorityBroadcastOnly), snapshot(20, model.StateHealthy))
	assert.Equal(t, model.RouteFallback, got.Mode)
	assert.True(t, got.ShouldRetry)
	assert.Equal(t, 2, got.MaxRetries)
}

func TestDecideFallbackWhenNoPathUsable(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	// Target failed and hub below threshold.
	got := d.Decide(msg("qa-reviewer", model.MessagePriorityNormal), snapshot(20, model.StateFailed))
	require.Equal(t, model.RouteFallback, got.Mode)
	assert.True(t, got.ShouldRetry)
	assert.Equal(t, DefaultMaxRetries, got.MaxRetries)

	// Unregistered target behaves the same.
	got = d.Decide(msg("ghost", model.MessagePriorityNormal), snapshot(20, model.StateHealthy))
	assert.Equal(t, model.RouteFallback, got.Mode)
}

func TestRecordLatencyEvictsOldestAtCap(t *testing.T) {
	d := NewDecider(Config{HistoryCap: 3}, zap.NewNop())

	d.RecordLatency(model.RouteHub, 100*time.Millisecond)
	d.RecordLatency(model.RouteHub, 200*time.Millisecond)
	d.RecordLatency(model.RouteHub, 300*time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, d.AverageLatency(model.RouteHub))

	// Fourth sample evicts the first.
	d.RecordLatency(model.RouteHub, 400*time.Millisecond)
	assert.Equal(t, 300*time.Millisecond, d.AverageLatency(model.RouteHub))
}

func TestAverageLatencyWithoutSamplesIsZero(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	assert.Equal(t, time.Duration(0), d.AverageLatency(model.RouteDirect))
}

func TestRecommendFallbackAboveAlertShare(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	for i := 0; i < 8; i++ {
		d.RecordLatency(model.RouteHub, 10*time.Millisecond)
	}
	d.RecordLatency(model.RouteFallback, 10*time.Millisecond)
	d.RecordLatency(model.RouteFallback, 10*time.Millisecond)

	// 2 of 10 samples are fallback, above the 10% alert share.
	assert.Equal(t, model.RouteFallback, d.RecommendOptimalMode())
}

func TestRecommendDirectWhenFasterMajority(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	for i := 0; i < 6; i++ {
		d.RecordLatency(model.RouteDirect, 5*time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		d.RecordLatency(model.RouteHub, 50*time.Millisecond)
	}

	assert.Equal(t, model.RouteDirect, d.RecommendOptimalMode())
}

func TestRecommendHubByDefault(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())

	assert.Equal(t, model.RouteHub, d.RecommendOptimalMode())

	// Direct majority that is slower than the hub does not win.
	for i := 0; i < 6; i++ {
		d.RecordLatency(model.RouteDirect, 80*time.Millisecond)
	}
	for i := 0; i < 4; i++ {
		d.RecordLatency(model.RouteHub, 10*time.Millisecond)
	}
	assert.Equal(t, model.RouteHub, d.RecommendOptimalMode())
}

func TestStatusSnapshotCoversAllModes(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())
	d.RecordLatency(model.RouteHub, 20*time.Millisecond)

	status := d.StatusSnapshot()
	require.Len(t, status.Modes, len(model.RoutingModes))
	assert.Equal(t, 1, status.Modes[model.RouteHub].Count)
	assert.Equal(t, 0, status.Modes[model.RouteDirect].Count)
	assert.Equal(t, model.RouteHub, status.Recommended)
}

func TestDecideConcurrentSafe(t *testing.T) {
	d := NewDecider(Config{}, zap.NewNop())
	snap := snapshot(90, model.StateHealthy)

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				m := msg("qa-reviewer", model.MessagePriorityNormal)
				m.ID = fmt.Sprintf("msg-%d-%d", n, j)
				d.Decide(m, snap)
				d.RecordLatency(model.RouteHub, time.Duration(j)*time.Microsecond)
			}
		}(i)
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	assert.Equal(t, 400, d.StatusSnapshot().Modes[model.RouteHub].Count)
}
