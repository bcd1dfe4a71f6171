package model

import (
	"fmt"
	"time"
)

// Event topics. Per-target and per-component topics are derived with
// MessageTopic and ExecuteTopic.
const (
	TopicComponentRegistered   = "component:registered"
	TopicComponentUnregistered = "component:unregistered"
	TopicMessageRouted         = "message:routed"
	TopicMessageBroadcast      = "message:broadcast"
	TopicOperationStarted      = "operation:started"
	TopicOperationQueued       = "operation:queued"
	TopicOperationEvicted      = "operation:evicted"
	TopicHealthUpdated         = "health:updated"
	TopicMetricsExported       = "metrics:exported"
)

// MessageTopic is the delivery topic for a targeted message.
func MessageTopic(target ComponentID) string {
	if target == Broadcast {
		return TopicMessageBroadcast
	}
	return fmt.Sprintf("message:%s", target)
}

// ExecuteTopic is the dispatch topic a participant, delegate or worker
// subscribes to for operation execution.
func ExecuteTopic(id ComponentID) string {
	return fmt.Sprintf("operation:execute:%s", id)
}

// Event is a typed coordination event published on the bus.
type Event interface {
	Topic() string
}

// ComponentRegistered is emitted when a component is inserted or replaced
// in the registry.
type ComponentRegistered struct {
	Status ComponentStatus
}

func (ComponentRegistered) Topic() string { return TopicComponentRegistered }

// ComponentUnregistered is emitted when a component is removed.
type ComponentUnregistered struct {
	ID ComponentID
}

func (ComponentUnregistered) Topic() string { return TopicComponentUnregistered }

// MessageRouted is emitted once per sent message with the chosen mode and
// the observed routing latency.
type MessageRouted struct {
	Message UnifiedMessage
	Mode    RoutingMode
	Latency time.Duration
}

func (MessageRouted) Topic() string { return TopicMessageRouted }

// MessageDelivered is the per-target (or broadcast) delivery event.
type MessageDelivered struct {
	Target  ComponentID
	Message UnifiedMessage
}

func (e MessageDelivered) Topic() string { return MessageTopic(e.Target) }

// OperationStarted is emitted when an operation is admitted and recorded.
type OperationStarted struct {
	Operation Operation
}

func (OperationStarted) Topic() string { return TopicOperationStarted }

// OperationQueued is emitted when planning defers an operation to the
// fairness scheduler.
type OperationQueued struct {
	Operation Operation
	TaskID    string
}

func (OperationQueued) Topic() string { return TopicOperationQueued }

// OperationEvicted is emitted when an operation exceeds its deadline and
// is removed from the active set.
type OperationEvicted struct {
	Operation Operation
}

func (OperationEvicted) Topic() string { return TopicOperationEvicted }

// OperationExecute is the dispatch event carrying one unit of operation
// work to a participant, delegate or worker. Partition is nil unless the
// operation is distributed.
type OperationExecute struct {
	Target    ComponentID
	Operation Operation
	Partition *Partition
}

func (e OperationExecute) Topic() string { return ExecuteTopic(e.Target) }

// HealthUpdated is emitted after every health re-evaluation.
type HealthUpdated struct {
	Health float64
}

func (HealthUpdated) Topic() string { return TopicHealthUpdated }

// MetricsExported carries a periodic snapshot of system and routing
// status for the reporting layer to persist.
type MetricsExported struct {
	Snapshot Snapshot
}

func (MetricsExported) Topic() string { return TopicMetricsExported }
