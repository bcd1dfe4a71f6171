package model

import "time"

// OperationID identifies a tracked operation.
type OperationID string

// OperationKind names the kind of work an operation performs.
type OperationKind string

const (
	OpGenerate    OperationKind = "qa.generate"
	OpReview      OperationKind = "qa.review"
	OpAudit       OperationKind = "qa.audit"
	OpMaintenance OperationKind = "system.maintenance"
)

// OperationPriority is the declared urgency tier of an operation.
// Higher values mean more urgent; PriorityCritical is the topmost tier.
type OperationPriority int

const (
	PriorityLow OperationPriority = iota
	PriorityStandard
	PriorityElevated
	PriorityCritical
)

// String returns the tier name.
func (p OperationPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityStandard:
		return "standard"
	case PriorityElevated:
		return "elevated"
	case PriorityCritical:
		return "critical"
	}
	return "unknown"
}

// OperationSpec is the typed payload of an operation. Each kind carries a
// concrete spec variant instead of a free-form metadata bag.
type OperationSpec interface {
	Kind() OperationKind
}

// GenerateSpec describes a QA content generation request.
type GenerateSpec struct {
	Topic     string
	ItemCount int
	Difficulty string
}

func (GenerateSpec) Kind() OperationKind { return OpGenerate }

// ReviewSpec describes a review pass over previously generated content.
type ReviewSpec struct {
	BatchID   string
	Threshold float64
}

func (ReviewSpec) Kind() OperationKind { return OpReview }

// AuditSpec describes a governance audit of generated output.
type AuditSpec struct {
	BatchID string
	Rules   []string
}

func (AuditSpec) Kind() OperationKind { return OpAudit }

// MaintenanceSpec describes internal housekeeping work.
type MaintenanceSpec struct {
	Action string
}

func (MaintenanceSpec) Kind() OperationKind { return OpMaintenance }

// ExecutionStrategy is how an operation's work is carried out.
type ExecutionStrategy string

const (
	StrategyImmediate   ExecutionStrategy = "immediate"
	StrategyDistributed ExecutionStrategy = "distributed"
	StrategyDelegated   ExecutionStrategy = "delegated"
	StrategyQueued      ExecutionStrategy = "queued"
)

// Operation is a unit of coordinated work across one or more components.
// It is created by a caller, enriched with Strategy and Risk after
// planning, tracked in active operations until completion or eviction.
type Operation struct {
	ID                   OperationID
	Kind                 OperationKind
	Participants         []ComponentID
	Priority             OperationPriority
	RequiredCapabilities []string
	Spec                 OperationSpec

	// Filled in by the coordinator during StartOperation.
	Strategy  ExecutionStrategy
	Risk      RiskLevel
	StartedAt time.Time
	Deadline  time.Time
}

// Clone returns a deep copy of the operation.
func (o Operation) Clone() Operation {
	out := o
	if o.Participants != nil {
		out.Participants = make([]ComponentID, len(o.Participants))
		copy(out.Participants, o.Participants)
	}
	if o.RequiredCapabilities != nil {
		out.RequiredCapabilities = make([]string, len(o.RequiredCapabilities))
		copy(out.RequiredCapabilities, o.RequiredCapabilities)
	}
	return out
}

// Partition is one shard of a distributed operation, assigned to a single
// participant.
type Partition struct {
	Index           int
	TotalPartitions int
	Participant     ComponentID
}

// StrategyDecision is the value object returned by the execution strategy
// selector. It is never stored; the chosen strategy is copied onto the
// operation.
type StrategyDecision struct {
	Strategy          ExecutionStrategy
	Reason            string
	Partitions        []Partition
	Delegate          ComponentID
	EstimatedDuration time.Duration
}

// RiskLevel is a qualitative score gating whether an operation proceeds.
// Levels are ordered: Low < Medium < High < Critical.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// String returns the level name.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	}
	return "unknown"
}

// RiskAssessment is the result of scoring an operation against current
// system state.
type RiskAssessment struct {
	Level   RiskLevel
	Factors []string
}
