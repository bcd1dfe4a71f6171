package model

import "time"

// Task priorities run from 1 (highest) to 5 (lowest). Aging moves a
// pending task's effective priority toward TaskPriorityMax over time.
const (
	TaskPriorityMax = 1
	TaskPriorityMin = 5
)

// ScheduledTask is a concrete unit of work admitted to the fairness
// scheduler. A task lives in the pending queue or the active set, never
// both, and is destroyed on completion.
type ScheduledTask struct {
	TaskID            string
	AgentID           string
	OperationID       OperationID
	Priority          int
	SubmittedAt       time.Time
	EstimatedDuration time.Duration
}

// AgentQuota bounds task admission per agent. Limits are enforced at
// submission time only, never retroactively. Zero values disable the
// corresponding limit.
type AgentQuota struct {
	MaxConcurrent int
	MaxPerMinute  int
	MaxPerHour    int
}

// TaskResult reports the outcome of an active task back to the scheduler.
type TaskResult struct {
	TaskID   string
	Success  bool
	Error    string
	Duration time.Duration
}
