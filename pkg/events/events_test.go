package events

import (
	"testing"

	"github.com/dukex/tricall/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(RunStartedEvent, "run-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, RunStartedEvent, event.Type)
	assert.Equal(t, "run-1", event.RunID)
	assert.False(t, event.Timestamp.IsZero())
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		event interface{ GetType() EventType }
		want  EventType
	}{
		{RunStarted{}, RunStartedEvent},
		{RunCompleted{}, RunCompletedEvent},
		{RunCancelled{}, RunCancelledEvent},
		{TranscriptFailed{}, TranscriptFailedEvent},
		{WorkflowRouted{}, WorkflowRoutedEvent},
		{WorkflowApproved{}, WorkflowApprovedEvent},
		{WorkflowRejected{}, WorkflowRejectedEvent},
		{WorkflowExecuted{}, WorkflowExecutedEvent},
		{StepExecuted{}, StepExecutedEvent},
		{StepFailed{}, StepFailedEvent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.GetType())
	}
}

func TestTranscriptFailedCarriesStage(t *testing.T) {
	event := TranscriptFailed{
		BaseEvent:    NewBaseEvent(TranscriptFailedEvent, "run-1"),
		TranscriptID: "tr-1",
		Stage:        models.StagePlanCompleted,
		Error:        "collaborator unavailable",
	}

	assert.Equal(t, models.StagePlanCompleted, event.Stage)
	assert.Equal(t, "tr-1", event.TranscriptID)
}
