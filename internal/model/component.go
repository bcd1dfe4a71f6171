package model

import "time"

// ComponentID identifies a registered component. IDs are opaque strings,
// unique per component and stable for its lifetime.
type ComponentID string

// Broadcast is the pseudo-target addressing every registered component.
const Broadcast ComponentID = "broadcast"

// ComponentState is the health state of a component.
type ComponentState string

const (
	StateHealthy  ComponentState = "healthy"
	StateDegraded ComponentState = "degraded"
	StateFailed   ComponentState = "failed"
	StateStarting ComponentState = "starting"
)

// IsHealthy reports whether the state counts as fully operational.
func (s ComponentState) IsHealthy() bool {
	return s == StateHealthy
}

// Valid reports whether s is one of the known component states.
func (s ComponentState) Valid() bool {
	switch s {
	case StateHealthy, StateDegraded, StateFailed, StateStarting:
		return true
	}
	return false
}

// ComponentStatus is the registry entry for a single component.
// Dependencies may reference ids that are not registered; such references
// are treated as permanently unsatisfied and surfaced by validation,
// never silently ignored.
type ComponentStatus struct {
	ID           ComponentID
	State        ComponentState
	Dependencies []ComponentID
	Capabilities []string
	RegisteredAt time.Time
	LastChecked  time.Time
}

// Clone returns a deep copy of the status.
func (c ComponentStatus) Clone() ComponentStatus {
	out := c
	if c.Dependencies != nil {
		out.Dependencies = make([]ComponentID, len(c.Dependencies))
		copy(out.Dependencies, c.Dependencies)
	}
	if c.Capabilities != nil {
		out.Capabilities = make([]string, len(c.Capabilities))
		copy(out.Capabilities, c.Capabilities)
	}
	return out
}

// CheckResult is the outcome of one external health probe, supplied to
// the coordinator's CheckHealth. A probe that failed outright carries Err
// and is mapped to StateFailed regardless of NewState.
type CheckResult struct {
	ComponentID ComponentID
	NewState    ComponentState
	Err         error
}
