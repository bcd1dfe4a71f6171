package scheduler

import (
	"testing"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T, cfg Config) *Scheduler {
	t.Helper()
	if cfg.AgingInterval == 0 {
		// Keep the background tick out of the way; tests drive aging
		// directly.
		cfg.AgingInterval = time.Hour
	}
	s := NewScheduler(cfg, zap.NewNop())
	t.Cleanup(s.Shutdown)
	return s
}

func task(id, agent string, priority int) model.ScheduledTask {
	return model.ScheduledTask{
		TaskID:      id,
		AgentID:     agent,
		OperationID: model.OperationID("op-" + id),
		Priority:    priority,
	}
}

func TestSubmitOrdersByPriority(t *testing.T) {
	s := newTestScheduler(t, Config{})

	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	require.True(t, s.Submit(task("t2", "agent-b", 1)))
	require.True(t, s.Submit(task("t3", "agent-c", 2)))

	assert.Equal(t, "t2", s.Next().TaskID)
	assert.Equal(t, "t3", s.Next().TaskID)
	assert.Equal(t, "t1", s.Next().TaskID)
	assert.Nil(t, s.Next())
}

func TestSubmitEqualPriorityFIFO(t *testing.T) {
	s := newTestScheduler(t, Config{})
	base := time.Now()

	first := task("t1", "agent-a", 3)
	first.SubmittedAt = base
	second := task("t2", "agent-b", 3)
	second.SubmittedAt = base.Add(time.Millisecond)

	require.True(t, s.Submit(first))
	require.True(t, s.Submit(second))

	assert.Equal(t, "t1", s.Next().TaskID)
	assert.Equal(t, "t2", s.Next().TaskID)
}

func TestSubmitClampsPriority(t *testing.T) {
	s := newTestScheduler(t, Config{})

	require.True(t, s.Submit(task("t1", "agent-a", 99)))
	require.True(t, s.Submit(task("t2", "agent-b", -1)))

	// The out-of-range low value clamps to top priority and wins.
	assert.Equal(t, "t2", s.Next().TaskID)
	assert.Equal(t, "t1", s.Next().TaskID)
}

func TestQuotaMaxConcurrentRejectsAtSubmission(t *testing.T) {
	s := newTestScheduler(t, Config{})
	s.SetAgentQuota("agent-a", model.AgentQuota{MaxConcurrent: 1})

	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	require.NotNil(t, s.Next())
	assert.Equal(t, 1, s.ActiveCount("agent-a"))

	// One task active, the next submission is over quota.
	assert.False(t, s.Submit(task("t2", "agent-a", 3)))

	require.True(t, s.Complete(model.TaskResult{TaskID: "t1", Success: true}))
	assert.True(t, s.Submit(task("t3", "agent-a", 3)))

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, uint64(2), stats.Submitted)
}

func TestQuotaRateLimitCountsDequeuesNotSubmissions(t *testing.T) {
	s := newTestScheduler(t, Config{})
	s.SetAgentQuota("agent-a", model.AgentQuota{MaxPerMinute: 2})

	// Pending submissions do not consume the rate window.
	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	require.True(t, s.Submit(task("t2", "agent-a", 3)))
	require.True(t, s.Submit(task("t3", "agent-a", 3)))

	require.NotNil(t, s.Next())
	require.NotNil(t, s.Next())

	// Two dequeues inside the trailing minute exhaust the limit.
	assert.False(t, s.Submit(task("t4", "agent-a", 3)))
}

func TestAgingPromotesStarvedTask(t *testing.T) {
	s := newTestScheduler(t, Config{AgingInterval: 10 * time.Second, AgingFactor: 1})

	now := time.Now()
	old := task("starved", "agent-a", 5)
	old.SubmittedAt = now.Add(-45 * time.Second)
	fresh := task("fresh", "agent-b", 2)
	fresh.SubmittedAt = now

	require.True(t, s.Submit(old))
	require.True(t, s.Submit(fresh))

	// Before aging the fresher high-priority task leads.
	s.mu.Lock()
	head := s.queue[0].task.TaskID
	s.mu.Unlock()
	assert.Equal(t, "fresh", head)

	// 45s of wait at a 10s interval is 4 steps: 5 -> 1.
	s.mu.Lock()
	s.ageLocked(now)
	starvedEff := s.queue[0].priority
	s.mu.Unlock()

	assert.Equal(t, model.TaskPriorityMax, starvedEff)
	assert.Equal(t, "starved", s.Next().TaskID)
}

func TestAgingNeverPassesTopPriority(t *testing.T) {
	s := newTestScheduler(t, Config{AgingInterval: time.Second, AgingFactor: 2})

	now := time.Now()
	tk := task("t1", "agent-a", 4)
	tk.SubmittedAt = now.Add(-time.Hour)
	require.True(t, s.Submit(tk))

	s.mu.Lock()
	s.ageLocked(now)
	eff := s.queue[0].priority
	s.mu.Unlock()

	assert.Equal(t, model.TaskPriorityMax, eff)
}

func TestFairnessTieBreakPrefersIdlerAgent(t *testing.T) {
	s := newTestScheduler(t, Config{})

	// agent-busy gets an active task first.
	require.True(t, s.Submit(task("warm", "agent-busy", 1)))
	require.NotNil(t, s.Next())

	base := time.Now()
	busy := task("busy-task", "agent-busy", 3)
	busy.SubmittedAt = base
	idle := task("idle-task", "agent-idle", 3)
	idle.SubmittedAt = base.Add(time.Millisecond)

	require.True(t, s.Submit(busy))
	require.True(t, s.Submit(idle))

	// Same priority: the agent with fewer active tasks goes first even
	// though it submitted later.
	assert.Equal(t, "idle-task", s.Next().TaskID)
	assert.Equal(t, "busy-task", s.Next().TaskID)
}

func TestDisableFairnessFallsBackToFIFO(t *testing.T) {
	s := newTestScheduler(t, Config{DisableFairness: true})

	require.True(t, s.Submit(task("warm", "agent-busy", 1)))
	require.NotNil(t, s.Next())

	base := time.Now()
	busy := task("busy-task", "agent-busy", 3)
	busy.SubmittedAt = base
	idle := task("idle-task", "agent-idle", 3)
	idle.SubmittedAt = base.Add(time.Millisecond)

	require.True(t, s.Submit(busy))
	require.True(t, s.Submit(idle))

	assert.Equal(t, "busy-task", s.Next().TaskID)
}

func TestPendingAndActiveAreDisjoint(t *testing.T) {
	s := newTestScheduler(t, Config{})

	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	assert.Equal(t, 1, s.PendingCount())
	assert.Equal(t, 0, s.ActiveCount(""))

	got := s.Next()
	require.NotNil(t, got)
	assert.Equal(t, 0, s.PendingCount())
	assert.Equal(t, 1, s.ActiveCount(""))

	require.True(t, s.Complete(model.TaskResult{TaskID: got.TaskID, Success: true}))
	assert.Equal(t, 0, s.ActiveCount(""))
}

func TestCompleteUnknownTaskIsNoOp(t *testing.T) {
	s := newTestScheduler(t, Config{})

	assert.False(t, s.Complete(model.TaskResult{TaskID: "ghost", Success: true}))
}

func TestCompleteDoesNotRequeueFailures(t *testing.T) {
	s := newTestScheduler(t, Config{})

	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	require.NotNil(t, s.Next())
	require.True(t, s.Complete(model.TaskResult{TaskID: "t1", Success: false, Error: "agent crashed"}))

	assert.Equal(t, 0, s.PendingCount())
	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(0), stats.Completed)
}

func TestClearQueueDropsPendingOnly(t *testing.T) {
	s := newTestScheduler(t, Config{})

	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	require.NotNil(t, s.Next())
	require.True(t, s.Submit(task("t2", "agent-a", 3)))
	require.True(t, s.Submit(task("t3", "agent-a", 3)))

	assert.Equal(t, 2, s.ClearQueue())
	assert.Equal(t, 0, s.PendingCount())
	assert.Equal(t, 1, s.ActiveCount(""), "active tasks survive a queue drain")
}

func TestSubmitAfterShutdownRejected(t *testing.T) {
	s := NewScheduler(Config{AgingInterval: time.Hour}, zap.NewNop())
	s.Shutdown()
	s.Shutdown()

	assert.False(t, s.Submit(task("t1", "agent-a", 3)))
}

func TestCompactPrunesStaleRateStamps(t *testing.T) {
	s := newTestScheduler(t, Config{})
	s.SetAgentQuota("agent-a", model.AgentQuota{MaxPerHour: 1})

	require.True(t, s.Submit(task("t1", "agent-a", 3)))
	require.NotNil(t, s.Next())
	require.True(t, s.Complete(model.TaskResult{TaskID: "t1", Success: true}))

	// Inside the hour window the limit holds.
	assert.False(t, s.Submit(task("t2", "agent-a", 3)))

	// After the window passes, compaction drops the stamp and admission
	// recovers.
	future := time.Now().Add(2 * time.Hour)
	s.mu.Lock()
	s.compactLocked(future)
	s.nowFn = func() time.Time { return future }
	s.mu.Unlock()

	assert.True(t, s.Submit(task("t3", "agent-a", 3)))
}

func TestStatsTracksAverageWait(t *testing.T) {
	s := newTestScheduler(t, Config{})

	tk := task("t1", "agent-a", 3)
	tk.SubmittedAt = time.Now().Add(-2 * time.Second)
	require.True(t, s.Submit(tk))
	require.NotNil(t, s.Next())

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Dequeued)
	assert.GreaterOrEqual(t, stats.AverageWait, 2*time.Second)
}
