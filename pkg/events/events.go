// Package events defines lifecycle event types published by the pipeline.
package events

import (
	"time"

	"github.com/dukex/tricall/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries all pipeline lifecycle events.
const Topic = "tricall.pipeline.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Run lifecycle events.
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunCancelledEvent EventType = "run.cancelled"

	// Per-transcript events.
	TranscriptFailedEvent EventType = "transcript.failed"

	// Workflow lifecycle events.
	WorkflowRoutedEvent   EventType = "workflow.routed"
	WorkflowApprovedEvent EventType = "workflow.approved"
	WorkflowRejectedEvent EventType = "workflow.rejected"
	WorkflowExecutedEvent EventType = "workflow.executed"

	// Step events.
	StepExecutedEvent EventType = "step.executed"
	StepFailedEvent   EventType = "step.failed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, runID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		RunID:     runID,
	}
}

type RunStarted struct {
	BaseEvent

	TranscriptIDs []string `json:"transcript_ids"`
	AutoApprove   bool     `json:"auto_approve"`
}

func (e RunStarted) GetType() EventType { return RunStartedEvent }

type RunCompleted struct {
	BaseEvent

	Status  models.RunStatus  `json:"status"`
	Summary models.RunSummary `json:"summary"`
}

func (e RunCompleted) GetType() EventType { return RunCompletedEvent }

type RunCancelled struct {
	BaseEvent

	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e RunCancelled) GetType() EventType { return RunCancelledEvent }

type TranscriptFailed struct {
	BaseEvent

	TranscriptID string          `json:"transcript_id"`
	Stage        models.RunStage `json:"stage"`
	Error        string          `json:"error"`
}

func (e TranscriptFailed) GetType() EventType { return TranscriptFailedEvent }

type WorkflowRouted struct {
	BaseEvent

	WorkflowID       string                `json:"workflow_id"`
	TranscriptID     string                `json:"transcript_id"`
	RiskLevel        models.RiskLevel      `json:"risk_level"`
	Status           models.WorkflowStatus `json:"status"`
	RequiresApproval bool                  `json:"requires_approval"`
}

func (e WorkflowRouted) GetType() EventType { return WorkflowRoutedEvent }

type WorkflowApproved struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	ApprovedBy string `json:"approved_by"`
	Reasoning  string `json:"reasoning,omitempty"`
}

func (e WorkflowApproved) GetType() EventType { return WorkflowApprovedEvent }

type WorkflowRejected struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	RejectedBy string `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func (e WorkflowRejected) GetType() EventType { return WorkflowRejectedEvent }

type WorkflowExecuted struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	StepCount  int    `json:"step_count"`
	DurationMs int64  `json:"duration_ms"`
}

func (e WorkflowExecuted) GetType() EventType { return WorkflowExecutedEvent }

type StepExecuted struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	StepNumber int    `json:"step_number"`
	Tool       string `json:"tool"`
}

func (e StepExecuted) GetType() EventType { return StepExecutedEvent }

type StepFailed struct {
	BaseEvent

	WorkflowID string `json:"workflow_id"`
	StepNumber int    `json:"step_number"`
	Tool       string `json:"tool"`
	Error      string `json:"error"`
}

func (e StepFailed) GetType() EventType { return StepFailedEvent }
