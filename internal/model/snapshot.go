package model

import "time"

// StateMetrics are the operational counters carried in a snapshot.
// ErrorRate is the failed fraction of finished operations.
type StateMetrics struct {
	MessagesRouted      uint64
	OperationsStarted   uint64
	OperationsCompleted uint64
	OperationsFailed    uint64
	ErrorRate           float64
}

// Snapshot is an immutable view of system state handed to the decision
// components. Only the coordinator mutates state; everything else reads a
// snapshot and returns a decision.
type Snapshot struct {
	TakenAt          time.Time
	Health           float64
	Components       map[ComponentID]ComponentStatus
	ActiveOperations map[OperationID]Operation
	Metrics          StateMetrics
}

// Component returns the status for id, if registered.
func (s Snapshot) Component(id ComponentID) (ComponentStatus, bool) {
	c, ok := s.Components[id]
	return c, ok
}

// HealthyCount returns the number of fully operational components.
func (s Snapshot) HealthyCount() int {
	n := 0
	for _, c := range s.Components {
		if c.State.IsHealthy() {
			n++
		}
	}
	return n
}

// ActiveLoad returns how many active operations each component
// participates in.
func (s Snapshot) ActiveLoad() map[ComponentID]int {
	load := make(map[ComponentID]int, len(s.Components))
	for _, op := range s.ActiveOperations {
		for _, p := range op.Participants {
			load[p]++
		}
	}
	return load
}

// ValidationResult aggregates system validation findings. It is always
// returned as a structured value, never as an error.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}
