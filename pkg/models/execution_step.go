package models

import "time"

// StepStatus is the lifecycle state of one execution step.
//
// PENDING -> IN_PROGRESS -> {EXECUTED, ERROR}
// ERROR   -> IN_PROGRESS (explicit retry only)
// EXECUTED is terminal.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepExecuted   StepStatus = "EXECUTED"
	StepError      StepStatus = "ERROR"
)

// ExecutionStep is one ordered sub-action within a workflow's execution. Steps
// are owned exclusively by their parent workflow, numbered from 1, and never
// reordered after creation.
type ExecutionStep struct {
	StepNumber   int            `json:"step_number"`
	Action       string         `json:"action"`
	Tool         string         `json:"tool"`
	Status       StepStatus     `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	ExecutedAt   *time.Time     `json:"executed_at,omitempty"`
}
