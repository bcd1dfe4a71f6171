package model

import "time"

// RouteResult is the discriminated result of a message send. Expected
// failures set Success=false and Error; exceptions are reserved for
// invariant violations.
type RouteResult struct {
	Success  bool
	Message  UnifiedMessage
	Decision RoutingDecision
	Latency  time.Duration
	Error    string
}

// ExecuteResult is the discriminated result of starting an operation.
type ExecuteResult struct {
	Success     bool
	OperationID OperationID
	Strategy    ExecutionStrategy
	Risk        RiskLevel
	TaskID      string
	Error       string
}
