package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/devrev/agentmesh/internal/model"
	"go.uber.org/zap"
)

// DefaultAgingInterval is the aging tick period. Every tick, pending
// tasks move toward top priority in proportion to their wait time, so no
// task can starve indefinitely.
const (
	DefaultAgingInterval = 10 * time.Second
	DefaultAgingFactor   = 1

	rateWindowMinute = time.Minute
	rateWindowHour   = time.Hour
)

// Config holds fairness scheduler tuning.
type Config struct {
	// AgingInterval is the period of the background aging tick and the
	// wait-time unit of the aging formula.
	AgingInterval time.Duration
	// AgingFactor is how many priority steps a task gains per elapsed
	// aging interval.
	AgingFactor int
	// DisableFairness turns off the per-agent active-count tie-break in
	// queue ordering.
	DisableFairness bool
}

func (c *Config) applyDefaults() {
	if c.AgingInterval <= 0 {
		c.AgingInterval = DefaultAgingInterval
	}
	if c.AgingFactor <= 0 {
		c.AgingFactor = DefaultAgingFactor
	}
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Submitted   uint64
	Rejected    uint64
	Dequeued    uint64
	Completed   uint64
	Failed      uint64
	Pending     int
	Active      int
	AverageWait time.Duration
}

type queuedItem struct {
	task model.ScheduledTask
	// priority is the effective, aged priority; task.Priority keeps the
	// submitted value the aging formula is computed from.
	priority int
}

// Scheduler is a fairness-aware priority queue with aging and per-agent
// quota enforcement. Quota check and insert are serialized under one
// mutex so two concurrent submissions can never both pass a maxConcurrent
// check. The scheduler never returns errors on normal flow; a false from
// Submit is the only rejection signal.
type Scheduler struct {
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	queue         []*queuedItem
	active        map[string]model.ScheduledTask
	activeByAgent map[string]int
	quotas        map[string]model.AgentQuota
	dequeues      map[string][]time.Time
	totalWait     time.Duration
	stats         Stats
	closed        bool

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	nowFn    func() time.Time
}

// NewScheduler creates a fairness scheduler and starts its aging tick.
func NewScheduler(cfg Config, logger *zap.Logger) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cfg:           cfg,
		logger:        logger,
		queue:         make([]*queuedItem, 0, 64),
		active:        make(map[string]model.ScheduledTask),
		activeByAgent: make(map[string]int),
		quotas:        make(map[string]model.AgentQuota),
		dequeues:      make(map[string][]time.Time),
		ticker:        time.NewTicker(cfg.AgingInterval),
		stopCh:        make(chan struct{}),
		nowFn:         time.Now,
	}

	go s.agingLoop()

	return s
}

// SetAgentQuota configures admission limits for an agent. Quotas are
// enforced at submission time only.
func (s *Scheduler) SetAgentQuota(agentID string, quota model.AgentQuota) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quotas[agentID] = quota
	s.logger.Info("Agent quota set",
		zap.String("agent_id", agentID),
		zap.Int("max_concurrent", quota.MaxConcurrent),
		zap.Int("max_per_minute", quota.MaxPerMinute),
		zap.Int("max_per_hour", quota.MaxPerHour))
}

// Submit admits a task into the pending queue. It returns false without
// enqueueing when the task's agent has a configured quota and any limit
// is exhausted: concurrent active tasks, or dequeues in the trailing
// minute or hour windows. Rate limiting counts started tasks only, never
// pending submissions.
func (s *Scheduler) Submit(task model.ScheduledTask) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.stats.Rejected++
		return false
	}

	now := s.nowFn()
	if task.SubmittedAt.IsZero() {
		task.SubmittedAt = now
	}
	if task.Priority < model.TaskPriorityMax {
		task.Priority = model.TaskPriorityMax
	}
	if task.Priority > model.TaskPriorityMin {
		task.Priority = model.TaskPriorityMin
	}

	if reason, ok := s.quotaExceededLocked(task.AgentID, now); ok {
		s.stats.Rejected++
		s.logger.Warn("Task rejected by quota",
			zap.String("task_id", task.TaskID),
			zap.String("agent_id", task.AgentID),
			zap.String("reason", reason))
		return false
	}

	s.queue = append(s.queue, &queuedItem{task: task, priority: task.Priority})
	s.sortLocked()
	s.stats.Submitted++

	s.logger.Debug("Task submitted",
		zap.String("task_id", task.TaskID),
		zap.String("agent_id", task.AgentID),
		zap.Int("priority", task.Priority),
		zap.Int("pending", len(s.queue)))

	return true
}

// quotaExceededLocked checks every configured limit for agentID.
func (s *Scheduler) quotaExceededLocked(agentID string, now time.Time) (string, bool) {
	quota, ok := s.quotas[agentID]
	if !ok {
		return "", false
	}
	if quota.MaxConcurrent > 0 && s.activeByAgent[agentID] >= quota.MaxConcurrent {
		return "max_concurrent", true
	}
	if quota.MaxPerMinute > 0 && countSince(s.dequeues[agentID], now.Add(-rateWindowMinute)) >= quota.MaxPerMinute {
		return "max_per_minute", true
	}
	if quota.MaxPerHour > 0 && countSince(s.dequeues[agentID], now.Add(-rateWindowHour)) >= quota.MaxPerHour {
		return "max_per_hour", true
	}
	return "", false
}

// Next pops the queue head, moves it to the active set and records a
// dequeue timestamp for rate limiting. Returns nil when the queue is
// empty.
func (s *Scheduler) Next() *model.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return nil
	}

	item := s.queue[0]
	s.queue = s.queue[1:]
	task := item.task

	s.active[task.TaskID] = task
	s.activeByAgent[task.AgentID]++
	s.dequeues[task.AgentID] = append(s.dequeues[task.AgentID], s.nowFn())

	wait := s.nowFn().Sub(task.SubmittedAt)
	if wait > 0 {
		s.totalWait += wait
	}
	s.stats.Dequeued++

	s.logger.Debug("Task dequeued",
		zap.String("task_id", task.TaskID),
		zap.String("agent_id", task.AgentID),
		zap.Int("effective_priority", item.priority),
		zap.Duration("wait", wait))

	return &task
}

// Complete removes a task from the active set and updates the outcome
// counters. It performs no re-queuing; retry is the caller's
// responsibility. Unknown task ids are a no-op returning false.
func (s *Scheduler) Complete(result model.TaskResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.active[result.TaskID]
	if !ok {
		return false
	}
	delete(s.active, result.TaskID)
	s.activeByAgent[task.AgentID]--
	if s.activeByAgent[task.AgentID] <= 0 {
		delete(s.activeByAgent, task.AgentID)
	}

	if result.Success {
		s.stats.Completed++
	} else {
		s.stats.Failed++
		s.logger.Warn("Task failed",
			zap.String("task_id", result.TaskID),
			zap.String("agent_id", task.AgentID),
			zap.String("error", result.Error))
	}

	return true
}

// ClearQueue drops every pending task without completion callbacks and
// returns how many were dropped. Intended for emergency drains; active
// tasks are untouched.
func (s *Scheduler) ClearQueue() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	dropped := len(s.queue)
	s.queue = s.queue[:0]
	if dropped > 0 {
		s.logger.Warn("Pending queue cleared", zap.Int("dropped", dropped))
	}
	return dropped
}

// PendingCount returns the number of queued tasks.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

// ActiveCount returns the number of in-flight tasks, for the given agent
// when agentID is non-empty.
func (s *Scheduler) ActiveCount(agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if agentID == "" {
		return len(s.active)
	}
	return s.activeByAgent[agentID]
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.Pending = len(s.queue)
	out.Active = len(s.active)
	if s.stats.Dequeued > 0 {
		out.AverageWait = s.totalWait / time.Duration(s.stats.Dequeued)
	}
	return out
}

// Shutdown stops the aging tick. Safe to call more than once; pending and
// active tasks are left in place for inspection.
func (s *Scheduler) Shutdown() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.stopCh)
	})
}

func (s *Scheduler) agingLoop() {
	for {
		select {
		case <-s.stopCh:
			s.ticker.Stop()
			return
		case <-s.ticker.C:
			now := s.nowFn()
			s.mu.Lock()
			s.ageLocked(now)
			s.compactLocked(now)
			s.mu.Unlock()
		}
	}
}

// ageLocked recomputes every pending task's effective priority from its
// wait time: floor(wait/agingInterval) * agingFactor steps toward top
// priority, clamped at 1. The worst-case wait before a task reaches top
// priority is (priority-1)/agingFactor * agingInterval.
func (s *Scheduler) ageLocked(now time.Time) {
	changed := false
	for _, item := range s.queue {
		if item.task.Priority <= model.TaskPriorityMax {
			continue
		}
		increments := int(now.Sub(item.task.SubmittedAt)/s.cfg.AgingInterval) * s.cfg.AgingFactor
		if increments <= 0 {
			continue
		}
		aged := item.task.Priority - increments
		if aged < model.TaskPriorityMax {
			aged = model.TaskPriorityMax
		}
		if aged != item.priority {
			item.priority = aged
			changed = true
		}
	}
	if changed {
		s.sortLocked()
	}
}

// compactLocked prunes dequeue timestamps older than the largest rate
// window so the usage maps stay bounded under sustained load.
func (s *Scheduler) compactLocked(now time.Time) {
	cutoff := now.Add(-rateWindowHour)
	for agent, stamps := range s.dequeues {
		keep := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				keep = append(keep, ts)
			}
		}
		if len(keep) == 0 {
			delete(s.dequeues, agent)
			continue
		}
		s.dequeues[agent] = keep
	}
}

// sortLocked orders the queue by the three-level comparator: effective
// priority ascending, then (unless fairness is disabled) the submitting
// agent's active task count ascending, then submission time ascending.
// The sort is stable so identical inputs order deterministically.
func (s *Scheduler) sortLocked() {
	sort.SliceStable(s.queue, func(i, j int) bool {
		a, b := s.queue[i], s.queue[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if !s.cfg.DisableFairness {
			la, lb := s.activeByAgent[a.task.AgentID], s.activeByAgent[b.task.AgentID]
			if la != lb {
				return la < lb
			}
		}
		return a.task.SubmittedAt.Before(b.task.SubmittedAt)
	})
}

func countSince(stamps []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
