package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/devrev/agentmesh/internal/bus"
	"github.com/devrev/agentmesh/internal/config"
	"github.com/devrev/agentmesh/internal/dispatch"
	"github.com/devrev/agentmesh/internal/health"
	"github.com/devrev/agentmesh/internal/metrics"
	"github.com/devrev/agentmesh/internal/model"
	"github.com/devrev/agentmesh/internal/observability"
	"github.com/devrev/agentmesh/internal/registry"
	"github.com/devrev/agentmesh/internal/risk"
	"github.com/devrev/agentmesh/internal/routing"
	"github.com/devrev/agentmesh/internal/scheduler"
	"github.com/devrev/agentmesh/internal/strategy"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ErrInvalidOperation is returned when a caller submits a malformed
// operation. Expected admission failures are reported through the
// discriminated result instead.
var ErrInvalidOperation = errors.New("invalid operation")

// Coordinator owns system state and the message/operation lifecycle. It
// is the single writer: every collaborator receives an immutable snapshot
// and returns decisions. Mutations replace the relevant map wholesale so
// snapshots stay cheap and race free.
type Coordinator struct {
	cfg      config.CoordinatorConfig
	registry *registry.Registry
	health   *health.Evaluator
	risk     *risk.Assessor
	router   *routing.Decider
	selector *strategy.Selector
	sched    *scheduler.Scheduler
	bus      *bus.Bus
	pool     *dispatch.Pool
	metrics  *metrics.Metrics
	logger   *zap.Logger

	mu          sync.RWMutex
	activeOps   map[model.OperationID]model.Operation
	healthScore float64
	counters    model.StateMetrics
	modeQueues  map[model.RoutingMode][]model.UnifiedMessage

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool
}

// Options collect the coordinator's injected collaborators.
type Options struct {
	Config    config.CoordinatorConfig
	Registry  *registry.Registry
	Health    *health.Evaluator
	Risk      *risk.Assessor
	Router    *routing.Decider
	Selector  *strategy.Selector
	Scheduler *scheduler.Scheduler
	Bus       *bus.Bus
	Pool      *dispatch.Pool
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewCoordinator creates a coordinator from its collaborators. Background
// loops start with Start.
func NewCoordinator(opts Options) *Coordinator {
	cfg := opts.Config
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.MetricsExportInterval <= 0 {
		cfg.MetricsExportInterval = 60 * time.Second
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = 15 * time.Second
	}
	if cfg.OperationTTL <= 0 {
		cfg.OperationTTL = 5 * time.Minute
	}
	if cfg.ModeQueueCap <= 0 {
		cfg.ModeQueueCap = 1000
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Coordinator{
		cfg:         cfg,
		registry:    opts.Registry,
		health:      opts.Health,
		risk:        opts.Risk,
		router:      opts.Router,
		selector:    opts.Selector,
		sched:       opts.Scheduler,
		bus:         opts.Bus,
		pool:        opts.Pool,
		metrics:     opts.Metrics,
		logger:      logger,
		activeOps:   make(map[model.OperationID]model.Operation),
		healthScore: 100,
		modeQueues:  make(map[model.RoutingMode][]model.UnifiedMessage),
		stopCh:      make(chan struct{}),
	}
	return c
}

// Start launches the periodic health re-check, metrics export and
// deadline eviction loops.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	c.wg.Add(3)
	go c.healthLoop()
	go c.exportLoop()
	go c.evictionLoop()

	c.logger.Info("Coordinator started",
		zap.Duration("health_check_interval", c.cfg.HealthCheckInterval),
		zap.Duration("metrics_export_interval", c.cfg.MetricsExportInterval),
		zap.Duration("operation_ttl", c.cfg.OperationTTL))
}

// Shutdown stops the background loops. Idempotent.
func (c *Coordinator) Shutdown() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	c.logger.Info("Coordinator stopped")
}

// Snapshot returns an immutable view of current system state.
func (c *Coordinator) Snapshot() model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[model.OperationID]model.Operation, len(c.activeOps))
	for id, op := range c.activeOps {
		ops[id] = op.Clone()
	}
	return model.Snapshot{
		TakenAt:          time.Now(),
		Health:           c.healthScore,
		Components:       c.registry.Snapshot(),
		ActiveOperations: ops,
		Metrics:          c.counters,
	}
}

// RegisterComponent inserts or replaces a component and emits
// component:registered. Registration is idempotent by id.
func (c *Coordinator) RegisterComponent(status model.ComponentStatus) {
	c.registry.Register(status)
	c.refreshHealth()

	if c.metrics != nil {
		c.metrics.ComponentsRegistered.Set(float64(c.registry.Count()))
	}
	c.bus.Publish(model.ComponentRegistered{Status: status})
}

// UnregisterComponent removes a component. No-op if absent.
func (c *Coordinator) UnregisterComponent(id model.ComponentID) {
	if !c.registry.Unregister(id) {
		return
	}
	c.refreshHealth()

	if c.metrics != nil {
		c.metrics.ComponentsRegistered.Set(float64(c.registry.Count()))
	}
	c.bus.Publish(model.ComponentUnregistered{ID: id})
}

// SetAgentQuota configures admission limits for an agent's tasks.
func (c *Coordinator) SetAgentQuota(agentID string, quota model.AgentQuota) {
	c.sched.SetAgentQuota(agentID, quota)
}

// SendMessage routes a message, appends it to the mode-specific queue and
// emits routed plus delivery events. Expected failures come back in the
// result; a routable message is never dropped.
func (c *Coordinator) SendMessage(ctx context.Context, msg model.UnifiedMessage) model.RouteResult {
	_, span := observability.StartSpan(ctx, "coordinator.SendMessage",
		attribute.String("message.target", string(msg.Target)),
		attribute.String("message.type", msg.Type))
	defer span.End()

	if msg.Target == "" {
		return model.RouteResult{Success: false, Message: msg, Error: "message target is required"}
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	start := time.Now()
	snap := c.Snapshot()
	decision := c.router.Decide(msg, snap)
	latency := time.Since(start)
	c.router.RecordLatency(decision.Mode, latency)

	c.mu.Lock()
	queue := c.modeQueues[decision.Mode]
	if len(queue) >= c.cfg.ModeQueueCap {
		// Same-mode ordering is preserved; the oldest entry gives way.
		queue = queue[1:]
		c.logger.Warn("Mode queue full, oldest message evicted",
			zap.String("mode", string(decision.Mode)))
	}
	c.modeQueues[decision.Mode] = append(queue, msg)
	c.counters.MessagesRouted++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.MessagesRouted.WithLabelValues(string(decision.Mode)).Inc()
		c.metrics.RoutingLatency.WithLabelValues(string(decision.Mode)).Observe(latency.Seconds())
	}

	c.bus.Publish(model.MessageRouted{Message: msg, Mode: decision.Mode, Latency: latency})
	c.bus.Publish(model.MessageDelivered{Target: msg.Target, Message: msg})

	c.logger.Debug("Message routed",
		zap.String("message_id", msg.ID),
		zap.String("target", string(msg.Target)),
		zap.String("mode", string(decision.Mode)),
		zap.Duration("latency", latency))

	return model.RouteResult{
		Success:  true,
		Message:  msg,
		Decision: decision,
		Latency:  latency,
	}
}

// PendingMessages returns the depth of the given mode queue.
func (c *Coordinator) PendingMessages(mode model.RoutingMode) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.modeQueues[mode])
}

// TakeMessage pops the oldest message from the given mode queue,
// preserving submission order.
func (c *Coordinator) TakeMessage(mode model.RoutingMode) (model.UnifiedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.modeQueues[mode]
	if len(queue) == 0 {
		return model.UnifiedMessage{}, false
	}
	msg := queue[0]
	c.modeQueues[mode] = queue[1:]
	return msg, true
}

// StartOperation plans and dispatches an operation. Admission failures
// (risk gate, no healthy participants, scheduler quota) come back as a
// structured result; an error is returned only for malformed requests.
func (c *Coordinator) StartOperation(ctx context.Context, op model.Operation, force bool) (model.ExecuteResult, error) {
	_, span := observability.StartSpan(ctx, "coordinator.StartOperation",
		attribute.String("operation.kind", string(op.Kind)),
		attribute.Int("operation.participants", len(op.Participants)))
	defer span.End()

	if len(op.Participants) == 0 {
		return model.ExecuteResult{}, ErrInvalidOperation
	}
	if op.ID == "" {
		op.ID = model.OperationID(uuid.NewString())
	}

	snap := c.Snapshot()

	assessment := c.risk.Assess(op, snap)
	op.Risk = assessment.Level
	if !c.risk.ShouldProceed(assessment.Level, op.Priority, force) {
		c.logger.Warn("Operation blocked by risk gate",
			zap.String("operation_id", string(op.ID)),
			zap.String("risk_level", assessment.Level.String()),
			zap.Strings("factors", assessment.Factors))
		return model.ExecuteResult{
			OperationID: op.ID,
			Risk:        assessment.Level,
			Error:       "risk level " + assessment.Level.String() + " blocks execution",
		}, nil
	}

	healthyParticipants := 0
	for _, id := range op.Participants {
		if comp, ok := snap.Component(id); ok && comp.State.IsHealthy() {
			healthyParticipants++
		}
	}
	if healthyParticipants == 0 && !force {
		return model.ExecuteResult{
			OperationID: op.ID,
			Risk:        assessment.Level,
			Error:       "no healthy participants available",
		}, nil
	}

	decision := c.selector.Select(op, snap)
	op.Strategy = decision.Strategy
	op.StartedAt = time.Now()
	op.Deadline = op.StartedAt.Add(c.cfg.OperationTTL)

	c.mu.Lock()
	ops := make(map[model.OperationID]model.Operation, len(c.activeOps)+1)
	for id, existing := range c.activeOps {
		ops[id] = existing
	}
	ops[op.ID] = op
	c.activeOps = ops
	c.counters.OperationsStarted++
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.OperationsStarted.WithLabelValues(string(decision.Strategy)).Inc()
		c.metrics.ActiveOperations.Set(float64(len(ops)))
	}
	c.bus.Publish(model.OperationStarted{Operation: op})

	result := model.ExecuteResult{
		Success:     true,
		OperationID: op.ID,
		Strategy:    decision.Strategy,
		Risk:        assessment.Level,
	}

	switch decision.Strategy {
	case model.StrategyImmediate:
		for _, participant := range op.Participants {
			c.dispatchExecute(op, participant, nil)
		}
	case model.StrategyDistributed:
		for i := range decision.Partitions {
			partition := decision.Partitions[i]
			c.dispatchExecute(op, partition.Participant, &partition)
		}
	case model.StrategyDelegated:
		c.dispatchExecute(op, decision.Delegate, nil)
	case model.StrategyQueued:
		taskID, ok := c.enqueueOperation(op, decision)
		if !ok {
			c.removeOperation(op.ID, false)
			return model.ExecuteResult{
				OperationID: op.ID,
				Strategy:    decision.Strategy,
				Risk:        assessment.Level,
				Error:       "scheduler rejected task: agent quota exceeded",
			}, nil
		}
		result.TaskID = taskID
		c.bus.Publish(model.OperationQueued{Operation: op, TaskID: taskID})
	}

	c.logger.Info("Operation started",
		zap.String("operation_id", string(op.ID)),
		zap.String("kind", string(op.Kind)),
		zap.String("strategy", string(decision.Strategy)),
		zap.String("risk_level", assessment.Level.String()),
		zap.Duration("estimated_duration", decision.EstimatedDuration))

	return result, nil
}

// dispatchExecute hands one execution event to the dispatch pool. A full
// pool falls back to publishing inline so dispatch is never lost.
func (c *Coordinator) dispatchExecute(op model.Operation, target model.ComponentID, partition *model.Partition) {
	ev := model.OperationExecute{Target: target, Operation: op, Partition: partition}
	job := dispatch.Job{
		OperationID: op.ID,
		Target:      target,
		Run: func(context.Context) error {
			c.bus.Publish(ev)
			return nil
		},
	}
	if err := c.pool.Submit(job); err != nil {
		c.logger.Warn("Dispatch pool rejected job, publishing inline",
			zap.String("operation_id", string(op.ID)),
			zap.String("target", string(target)),
			zap.Error(err))
		c.bus.Publish(ev)
	}
}

// enqueueOperation converts a queued operation into a scheduled task.
func (c *Coordinator) enqueueOperation(op model.Operation, decision model.StrategyDecision) (string, bool) {
	agentID := "system"
	if len(op.Participants) > 0 {
		agentID = string(op.Participants[0])
	}
	task := model.ScheduledTask{
		TaskID:            uuid.NewString(),
		AgentID:           agentID,
		OperationID:       op.ID,
		Priority:          taskPriorityFor(op.Priority),
		SubmittedAt:       time.Now(),
		EstimatedDuration: decision.EstimatedDuration,
	}
	if !c.sched.Submit(task) {
		if c.metrics != nil {
			c.metrics.TasksRejected.WithLabelValues("quota").Inc()
		}
		return "", false
	}
	if c.metrics != nil {
		c.metrics.TasksSubmitted.Inc()
		c.metrics.QueueDepth.Set(float64(c.sched.PendingCount()))
	}
	return task.TaskID, true
}

// taskPriorityFor maps operation priority tiers onto the 1 (highest) to
// 5 (lowest) task priority scale.
func taskPriorityFor(p model.OperationPriority) int {
	switch p {
	case model.PriorityCritical:
		return 1
	case model.PriorityElevated:
		return 2
	case model.PriorityStandard:
		return 3
	default:
		return 4
	}
}

// DequeueTask pops the next admitted task and emits its dispatch event to
// the owning agent. Returns nil when nothing is pending.
func (c *Coordinator) DequeueTask() *model.ScheduledTask {
	task := c.sched.Next()
	if task == nil {
		return nil
	}

	c.mu.RLock()
	op, ok := c.activeOps[task.OperationID]
	c.mu.RUnlock()

	if ok {
		c.bus.Publish(model.OperationExecute{Target: model.ComponentID(task.AgentID), Operation: op})
	}
	if c.metrics != nil {
		c.metrics.QueueDepth.Set(float64(c.sched.PendingCount()))
		c.metrics.ActiveTasks.Set(float64(c.sched.ActiveCount("")))
	}
	return task
}

// CompleteTask reports a finished task back to the scheduler.
func (c *Coordinator) CompleteTask(result model.TaskResult) bool {
	ok := c.sched.Complete(result)
	if ok && c.metrics != nil {
		status := "success"
		if !result.Success {
			status = "failure"
		}
		c.metrics.TasksFinished.WithLabelValues(status).Inc()
		c.metrics.ActiveTasks.Set(float64(c.sched.ActiveCount("")))
	}
	return ok
}

// CompleteOperation removes an operation from the active set and updates
// the completion counters used for the operational error rate.
func (c *Coordinator) CompleteOperation(id model.OperationID, success bool) bool {
	removed := c.removeOperation(id, true)
	if !removed {
		return false
	}

	c.mu.Lock()
	if success {
		c.counters.OperationsCompleted++
	} else {
		c.counters.OperationsFailed++
	}
	finished := c.counters.OperationsCompleted + c.counters.OperationsFailed
	if finished > 0 {
		c.counters.ErrorRate = float64(c.counters.OperationsFailed) / float64(finished)
	}
	c.mu.Unlock()

	if c.metrics != nil {
		status := "success"
		if !success {
			status = "failure"
		}
		c.metrics.OperationsFinished.WithLabelValues(status).Inc()
	}
	return true
}

// removeOperation drops an operation from the active set, rebuilding the
// map wholesale.
func (c *Coordinator) removeOperation(id model.OperationID, logMissing bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.activeOps[id]; !ok {
		if logMissing {
			c.logger.Debug("Complete for unknown operation", zap.String("operation_id", string(id)))
		}
		return false
	}
	ops := make(map[model.OperationID]model.Operation, len(c.activeOps)-1)
	for opID, op := range c.activeOps {
		if opID == id {
			continue
		}
		ops[opID] = op
	}
	c.activeOps = ops

	if c.metrics != nil {
		c.metrics.ActiveOperations.Set(float64(len(ops)))
	}
	return true
}

// CheckHealth re-evaluates component states from check results and
// recomputes aggregate health. A failing check marks the component failed
// and is never propagated as an error.
func (c *Coordinator) CheckHealth(results []model.CheckResult) float64 {
	transitions := c.health.Evaluate(results, c.registry.Snapshot())
	for _, t := range transitions {
		c.registry.SetState(t.ID, t.To, t.CheckedAt)
	}
	return c.refreshHealth()
}

// refreshHealth recomputes and publishes the aggregate health score.
func (c *Coordinator) refreshHealth() float64 {
	c.mu.RLock()
	errorRate := c.counters.ErrorRate
	c.mu.RUnlock()

	score := c.health.ComputeHealth(c.registry.Snapshot(), errorRate)

	c.mu.Lock()
	c.healthScore = score
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SystemHealth.Set(score)
	}
	c.bus.Publish(model.HealthUpdated{Health: score})
	return score
}

func (c *Coordinator) healthLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			score := c.refreshHealth()
			c.logger.Debug("Periodic health re-check", zap.Float64("health", score))
		}
	}
}

func (c *Coordinator) exportLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.MetricsExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			snap := c.Snapshot()
			if c.metrics != nil {
				c.metrics.EventsDropped.Set(float64(c.bus.Dropped()))
				c.metrics.QueueDepth.Set(float64(c.sched.PendingCount()))
				c.metrics.ActiveTasks.Set(float64(c.sched.ActiveCount("")))
			}
			c.bus.Publish(model.MetricsExported{Snapshot: snap})
			c.logger.Debug("Metrics exported",
				zap.Float64("health", snap.Health),
				zap.Int("components", len(snap.Components)),
				zap.Int("active_operations", len(snap.ActiveOperations)))
		}
	}
}

// evictionLoop fails and removes operations that outlived their deadline
// so the active set stays bounded even when a dispatched operation never
// reports completion.
func (c *Coordinator) evictionLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.EvictionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.EvictExpired(time.Now())
		}
	}
}

// EvictExpired removes every active operation whose deadline passed,
// counting each as failed. Returns how many were evicted.
func (c *Coordinator) EvictExpired(now time.Time) int {
	c.mu.RLock()
	var expired []model.Operation
	for _, op := range c.activeOps {
		if !op.Deadline.IsZero() && now.After(op.Deadline) {
			expired = append(expired, op)
		}
	}
	c.mu.RUnlock()

	for _, op := range expired {
		if c.removeOperation(op.ID, false) {
			c.mu.Lock()
			c.counters.OperationsFailed++
			finished := c.counters.OperationsCompleted + c.counters.OperationsFailed
			c.counters.ErrorRate = float64(c.counters.OperationsFailed) / float64(finished)
			c.mu.Unlock()

			if c.metrics != nil {
				c.metrics.OperationsEvicted.Inc()
			}
			c.bus.Publish(model.OperationEvicted{Operation: op})
			c.logger.Warn("Operation evicted past deadline",
				zap.String("operation_id", string(op.ID)),
				zap.Time("deadline", op.Deadline))
		}
	}
	return len(expired)
}

// RoutingStatus exposes the decider's rolling statistics.
func (c *Coordinator) RoutingStatus() routing.Status {
	return c.router.StatusSnapshot()
}

// SchedulerStats exposes the scheduler's counters.
func (c *Coordinator) SchedulerStats() scheduler.Stats {
	return c.sched.Stats()
}
