package model

import "time"

// MessagePriority orders messages and constrains routing mode selection.
type MessagePriority string

const (
	MessagePriorityLow      MessagePriority = "low"
	MessagePriorityNormal   MessagePriority = "normal"
	MessagePriorityHigh     MessagePriority = "high"
	MessagePriorityCritical MessagePriority = "critical"

	// MessagePriorityBroadcastOnly pins a message to hub routing even when
	// a direct path would otherwise be preferred.
	MessagePriorityBroadcastOnly MessagePriority = "broadcast-only"
)

// UnifiedMessage is the single message shape exchanged between components.
// Messages are ephemeral: created per send, consumed by routing, never
// persisted.
type UnifiedMessage struct {
	ID          string
	Source      ComponentID
	Target      ComponentID
	Type        string
	Priority    MessagePriority
	Correlation string
	CreatedAt   time.Time
}

// IsBroadcast reports whether the message addresses all components.
func (m UnifiedMessage) IsBroadcast() bool {
	return m.Target == Broadcast
}

// RoutingMode is the path a message takes to its target.
type RoutingMode string

const (
	RouteDirect   RoutingMode = "direct"
	RouteHub      RoutingMode = "hub"
	RouteFallback RoutingMode = "fallback"
)

// RoutingModes lists every mode in preference order.
var RoutingModes = []RoutingMode{RouteDirect, RouteHub, RouteFallback}

// RoutingDecision is the value object returned by the routing decider.
// Exactly one mode is always chosen; a message is never dropped.
type RoutingDecision struct {
	Mode        RoutingMode
	Reason      string
	ShouldRetry bool
	MaxRetries  int
}
