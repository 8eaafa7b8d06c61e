package execution

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/tricall/pkg/eventbus"
	"github.com/dukex/tricall/pkg/events"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
)

// ErrStepNotFound indicates a step number outside the workflow's step list.
var ErrStepNotFound = errors.New("execution step not found")

// Tracker materializes action items into execution steps and drives them
// through their state machine. Step claims and result writes run under the
// repository's update lock; the actuator call itself runs outside any lock.
type Tracker struct {
	persistence persistence.Persistence
	registry    *Registry
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger
}

func NewTracker(p persistence.Persistence, registry *Registry, bus eventbus.EventPublisher, logger *slog.Logger) *Tracker {
	return &Tracker{
		persistence: p,
		registry:    registry,
		eventBus:    bus,
		logger:      logger.With("module", "execution_tracker"),
	}
}

// BuildSteps creates one PENDING step per action item, numbered from 1 in plan
// order. Calling it again on a workflow that already has steps is a no-op.
func (t *Tracker) BuildSteps(ctx context.Context, workflowID string) (*models.Workflow, error) {
	return t.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
		if len(w.Steps) > 0 {
			return nil
		}

		for i, item := range w.ActionItems {
			w.Steps = append(w.Steps, &models.ExecutionStep{
				StepNumber: i + 1,
				Action:     item.Description,
				Tool:       item.Tool,
				Status:     models.StepPending,
			})
		}

		return nil
	})
}

// ExecuteStep runs a single step. The workflow must be executable, every
// earlier step must already be EXECUTED, and the step itself PENDING, or ERROR
// for a retry. The step is claimed as IN_PROGRESS first, the actuator runs,
// then the outcome is written back; a failed step leaves the workflow
// executable so the step can be retried.
func (t *Tracker) ExecuteStep(ctx context.Context, runID, workflowID string, stepNumber int) (*models.Workflow, error) {
	claimed, err := t.claim(ctx, workflowID, stepNumber)
	if err != nil {
		return nil, err
	}

	result, execErr := t.run(ctx, claimed)

	workflow, err := t.settle(ctx, runID, workflowID, stepNumber, result, execErr)
	if err != nil {
		return nil, err
	}

	if execErr != nil {
		return workflow, execErr
	}

	return workflow, nil
}

// ExecuteWorkflow builds steps if needed and executes them in order, stopping
// at the first failure. When every step succeeds the workflow is promoted to
// EXECUTED by the final step's settlement.
func (t *Tracker) ExecuteWorkflow(ctx context.Context, runID, workflowID string) (*models.Workflow, error) {
	workflow, err := t.BuildSteps(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if len(workflow.Steps) == 0 {
		return t.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
			if !w.Executable() {
				return models.ErrInvalidTransition
			}

			now := time.Now().UTC()
			w.Status = models.WorkflowExecuted
			w.ExecutedAt = &now

			return nil
		})
	}

	for _, step := range workflow.Steps {
		if step.Status == models.StepExecuted {
			continue
		}

		workflow, err = t.ExecuteStep(ctx, runID, workflowID, step.StepNumber)
		if err != nil {
			return workflow, err
		}
	}

	return workflow, nil
}

func (t *Tracker) claim(ctx context.Context, workflowID string, stepNumber int) (*models.ExecutionStep, error) {
	var claimed models.ExecutionStep

	_, err := t.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
		if !w.Executable() {
			return models.ErrInvalidTransition
		}

		step := w.Step(stepNumber)
		if step == nil {
			return ErrStepNotFound
		}

		if step.Status != models.StepPending && step.Status != models.StepError {
			return models.ErrInvalidTransition
		}

		// Strict order: every earlier step must have executed.
		for _, prev := range w.Steps {
			if prev.StepNumber < stepNumber && prev.Status != models.StepExecuted {
				return models.ErrInvalidTransition
			}
		}

		now := time.Now().UTC()
		step.Status = models.StepInProgress
		step.StartedAt = &now
		step.ErrorMessage = ""

		claimed = *step

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &claimed, nil
}

func (t *Tracker) run(ctx context.Context, step *models.ExecutionStep) (map[string]any, error) {
	actuator, err := t.registry.Resolve(step.Tool)
	if err != nil {
		return nil, err
	}

	return actuator.Execute(ctx, step)
}

func (t *Tracker) settle(ctx context.Context, runID, workflowID string, stepNumber int, result map[string]any, execErr error) (*models.Workflow, error) {
	var promoted bool

	workflow, err := t.persistence.Workflows().Update(ctx, workflowID, func(w *models.Workflow) error {
		step := w.Step(stepNumber)
		if step == nil {
			return ErrStepNotFound
		}

		now := time.Now().UTC()

		if execErr != nil {
			step.Status = models.StepError
			step.ErrorMessage = execErr.Error()

			return nil
		}

		step.Status = models.StepExecuted
		step.Result = result
		step.ExecutedAt = &now

		if w.AllStepsExecuted() && !w.Status.Terminal() {
			w.Status = models.WorkflowExecuted
			w.ExecutedAt = &now
			promoted = true
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	step := workflow.Step(stepNumber)

	if execErr != nil {
		t.logger.WarnContext(ctx, "Step execution failed",
			"workflow_id", workflow.ID,
			"step_number", stepNumber,
			"tool", step.Tool,
			"error", execErr)

		t.publish(ctx, workflow.ID, events.StepFailed{
			BaseEvent:  events.NewBaseEvent(events.StepFailedEvent, runID),
			WorkflowID: workflow.ID,
			StepNumber: stepNumber,
			Tool:       step.Tool,
			Error:      execErr.Error(),
		})

		return workflow, nil
	}

	t.publish(ctx, workflow.ID, events.StepExecuted{
		BaseEvent:  events.NewBaseEvent(events.StepExecutedEvent, runID),
		WorkflowID: workflow.ID,
		StepNumber: stepNumber,
		Tool:       step.Tool,
	})

	if promoted {
		t.logger.InfoContext(ctx, "Workflow executed",
			"workflow_id", workflow.ID,
			"step_count", len(workflow.Steps))

		t.publish(ctx, workflow.ID, events.WorkflowExecuted{
			BaseEvent:  events.NewBaseEvent(events.WorkflowExecutedEvent, runID),
			WorkflowID: workflow.ID,
			StepCount:  len(workflow.Steps),
			DurationMs: durationMs(workflow),
		})
	}

	return workflow, nil
}

func durationMs(workflow *models.Workflow) int64 {
	if workflow.ExecutedAt == nil {
		return 0
	}

	var earliest *time.Time

	for _, step := range workflow.Steps {
		if step.StartedAt == nil {
			continue
		}

		if earliest == nil || step.StartedAt.Before(*earliest) {
			earliest = step.StartedAt
		}
	}

	if earliest == nil {
		return 0
	}

	return workflow.ExecutedAt.Sub(*earliest).Milliseconds()
}

func (t *Tracker) publish(ctx context.Context, key string, event eventbus.Event) {
	if t.eventBus == nil {
		return
	}

	if err := t.eventBus.Publish(ctx, key, event); err != nil {
		t.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}
