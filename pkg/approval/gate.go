// Package approval routes workflows through the risk-based approval gate.
package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/tricall/pkg/eventbus"
	"github.com/dukex/tricall/pkg/events"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
)

// Gate decides whether a workflow needs a human sign-off before execution and
// records approval decisions. All status moves go through the workflow
// repository's Update so concurrent decisions cannot interleave.
type Gate struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

func NewGate(p persistence.Persistence, bus eventbus.EventPublisher, logger *slog.Logger) *Gate {
	return &Gate{
		persistence: p,
		eventBus:    bus,
		logger:      logger.With("module", "approval_gate"),
	}
}

// Route moves a freshly extracted workflow out of PENDING_ASSESSMENT. A
// workflow auto-approves only when every signal agrees: the risk level is LOW,
// the run opted in, and the plan was marked auto-executable. Everything else,
// including an unrecognized risk level, lands in AWAITING_APPROVAL.
func (g *Gate) Route(ctx context.Context, runID, workflowID string, runAutoApprove, planAutoExecutable bool) (*models.Workflow, error) {
	workflow, err := g.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
		level, known := models.ParseRiskLevel(string(w.RiskLevel))
		if !known {
			g.logger.WarnContext(ctx, "Unknown risk level, treating as HIGH",
				"workflow_id", w.ID,
				"risk_level", w.RiskLevel)

			w.RiskLevel = level
		}

		next := models.WorkflowAwaitingApproval
		if level == models.RiskLow && runAutoApprove && planAutoExecutable {
			next = models.WorkflowAutoApproved
		}

		if err := w.TransitionStatus(models.WorkflowPendingAssessment, next); err != nil {
			return err
		}

		w.RequiresHumanApproval = next == models.WorkflowAwaitingApproval

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.publish(ctx, workflow.ID, events.WorkflowRouted{
		BaseEvent:        events.NewBaseEvent(events.WorkflowRoutedEvent, runID),
		WorkflowID:       workflow.ID,
		TranscriptID:     workflow.TranscriptID,
		RiskLevel:        workflow.RiskLevel,
		Status:           workflow.Status,
		RequiresApproval: workflow.RequiresHumanApproval,
	})

	return workflow, nil
}

// Approve records a human sign-off. The workflow stays in AWAITING_APPROVAL;
// the recorded approver is what makes it executable. A second approval is
// rejected as an invalid transition.
func (g *Gate) Approve(ctx context.Context, workflowID, approvedBy, reasoning string) (*models.Workflow, error) {
	workflow, err := g.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
		if w.Status != models.WorkflowAwaitingApproval || w.Approved() {
			return models.ErrInvalidTransition
		}

		now := time.Now().UTC()
		w.ApprovedBy = &approvedBy
		w.ApprovedAt = &now
		w.ApprovalReasoning = reasoning

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "Workflow approved",
		"workflow_id", workflow.ID,
		"approved_by", approvedBy)

	g.publish(ctx, workflow.ID, events.WorkflowApproved{
		BaseEvent:  events.NewBaseEvent(events.WorkflowApprovedEvent, ""),
		WorkflowID: workflow.ID,
		ApprovedBy: approvedBy,
		Reasoning:  reasoning,
	})

	return workflow, nil
}

// Reject moves an AWAITING_APPROVAL workflow to REJECTED. A reason is
// mandatory.
func (g *Gate) Reject(ctx context.Context, workflowID, rejectedBy, reason string) (*models.Workflow, error) {
	if reason == "" {
		return nil, models.ErrMissingReason
	}

	workflow, err := g.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
		if err := w.TransitionStatus(models.WorkflowAwaitingApproval, models.WorkflowRejected); err != nil {
			return err
		}

		now := time.Now().UTC()
		w.RejectedBy = &rejectedBy
		w.RejectedAt = &now
		w.RejectionReason = reason

		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "Workflow rejected",
		"workflow_id", workflow.ID,
		"rejected_by", rejectedBy)

	g.publish(ctx, workflow.ID, events.WorkflowRejected{
		BaseEvent:  events.NewBaseEvent(events.WorkflowRejectedEvent, ""),
		WorkflowID: workflow.ID,
		RejectedBy: rejectedBy,
		Reason:     reason,
	})

	return workflow, nil
}

func (g *Gate) publish(ctx context.Context, key string, event eventbus.Event) {
	if g.eventBus == nil {
		return
	}

	if err := g.eventBus.Publish(ctx, key, event); err != nil {
		g.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}
