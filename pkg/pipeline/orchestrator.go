// Package pipeline orchestrates transcript batches through analysis, planning,
// workflow extraction, approval routing and execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/tricall/pkg/approval"
	"github.com/dukex/tricall/pkg/engines"
	"github.com/dukex/tricall/pkg/eventbus"
	"github.com/dukex/tricall/pkg/events"
	"github.com/dukex/tricall/pkg/execution"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/otelhelper"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrEmptyBatch indicates a start request without transcript ids.
var ErrEmptyBatch = errors.New("at least one transcript id is required")

const defaultStageTimeout = 60 * time.Second

// Config wires the orchestrator's collaborators.
type Config struct {
	Persistence  persistence.Persistence
	Engine       engines.Engine
	Classifier   engines.Classifier
	Gate         *approval.Gate
	Tracker      *execution.Tracker
	EventBus     eventbus.EventPublisher
	Tracer       trace.Tracer
	Logger       *slog.Logger
	StageTimeout time.Duration
}

// Orchestrator drives runs. Each transcript in a batch is processed in its own
// goroutine; a failure in one never aborts its siblings. Runs are asynchronous:
// StartRun returns the STARTED snapshot and callers poll GetStatus.
type Orchestrator struct {
	persistence  persistence.Persistence
	engine       engines.Engine
	classifier   engines.Classifier
	gate         *approval.Gate
	tracker      *execution.Tracker
	eventBus     eventbus.EventPublisher
	tracer       trace.Tracer
	logger       *slog.Logger
	stageTimeout time.Duration
}

func NewOrchestrator(cfg Config) *Orchestrator {
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("pipeline")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := cfg.StageTimeout
	if timeout <= 0 {
		timeout = defaultStageTimeout
	}

	return &Orchestrator{
		persistence:  cfg.Persistence,
		engine:       cfg.Engine,
		classifier:   cfg.Classifier,
		gate:         cfg.Gate,
		tracker:      cfg.Tracker,
		eventBus:     cfg.EventBus,
		tracer:       tracer,
		logger:       logger.With("module", "pipeline"),
		stageTimeout: timeout,
	}
}

// StartRun creates a run covering the given transcripts and kicks off
// processing in the background. The returned snapshot is the freshly persisted
// STARTED record.
func (o *Orchestrator) StartRun(ctx context.Context, transcriptIDs []string, autoApprove bool) (*models.Run, error) {
	transcriptIDs = dedupe(transcriptIDs)
	if len(transcriptIDs) == 0 {
		return nil, ErrEmptyBatch
	}

	run := &models.Run{
		ID:            uuid.New().String(),
		TranscriptIDs: transcriptIDs,
		AutoApprove:   autoApprove,
		Status:        models.RunStarted,
		Stage:         models.StageStarted,
		Summary:       models.RunSummary{Total: len(transcriptIDs)},
		CreatedAt:     time.Now().UTC(),
	}

	if err := o.persistence.Runs().Save(ctx, run); err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "Run started",
		"run_id", run.ID,
		"transcripts", len(transcriptIDs),
		"auto_approve", autoApprove)

	o.publish(ctx, run.ID, events.RunStarted{
		BaseEvent:     events.NewBaseEvent(events.RunStartedEvent, run.ID),
		TranscriptIDs: transcriptIDs,
		AutoApprove:   autoApprove,
	})

	// Processing outlives the start request.
	go o.processRun(context.WithoutCancel(ctx), run)

	return run, nil
}

// GetStatus returns the current run snapshot. Terminal runs return the same
// snapshot on every call.
func (o *Orchestrator) GetStatus(ctx context.Context, runID string) (*models.Run, error) {
	return o.persistence.Runs().GetByID(ctx, runID)
}

// Cancel requests cooperative cancellation. Workers observe the flag at stage
// boundaries; work already in flight for a transcript finishes its current
// stage. Cancelling a terminal run is an invalid transition.
func (o *Orchestrator) Cancel(ctx context.Context, runID, cancelledBy string) (*models.Run, error) {
	run, err := o.persistence.Runs().Update(ctx, runID, func(r *models.Run) error {
		if r.Status.Terminal() {
			return models.ErrInvalidTransition
		}

		r.CancelRequested = true

		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.InfoContext(ctx, "Run cancellation requested",
		"run_id", runID,
		"cancelled_by", cancelledBy)

	o.publish(ctx, runID, events.RunCancelled{
		BaseEvent:   events.NewBaseEvent(events.RunCancelledEvent, runID),
		CancelledBy: cancelledBy,
	})

	return run, nil
}

func (o *Orchestrator) processRun(ctx context.Context, run *models.Run) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.run",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.Int("tricall.run.transcripts", len(run.TranscriptIDs)),
	)
	defer span.End()

	_, err := o.persistence.Runs().Update(ctx, run.ID, func(r *models.Run) error {
		r.Status = models.RunRunning
		return nil
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "Run vanished before processing", "run_id", run.ID, "error", err)
		return
	}

	agg := newAggregator(o.persistence.Runs(), run, o.logger)

	var wg sync.WaitGroup
	for _, transcriptID := range run.TranscriptIDs {
		wg.Add(1)

		go func(id string) {
			defer wg.Done()
			o.processTranscript(ctx, run, id, agg)
		}(transcriptID)
	}

	wg.Wait()

	final, err := agg.finalize(ctx)
	if err != nil {
		o.logger.ErrorContext(ctx, "Failed to finalize run", "run_id", run.ID, "error", err)
		return
	}

	o.logger.InfoContext(ctx, "Run finished",
		"run_id", final.ID,
		"status", final.Status,
		"successful", final.Summary.Successful,
		"failed", final.Summary.Failed)

	o.publish(ctx, final.ID, events.RunCompleted{
		BaseEvent: events.NewBaseEvent(events.RunCompletedEvent, final.ID),
		Status:    final.Status,
		Summary:   final.Summary,
	})
}

// processTranscript walks one transcript through every stage. Any stage error
// is recorded against this transcript only.
func (o *Orchestrator) processTranscript(ctx context.Context, run *models.Run, transcriptID string, agg *aggregator) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "pipeline.transcript",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.TranscriptIDKey, transcriptID),
	)
	defer span.End()

	fail := func(stage models.RunStage, err error) {
		otelhelper.SetError(span, err, attribute.String(otelhelper.StageKey, string(stage)))

		o.logger.WarnContext(ctx, "Transcript failed",
			"run_id", run.ID,
			"transcript_id", transcriptID,
			"stage", stage,
			"error", err)

		agg.recordFailure(ctx, transcriptID, stage, err)

		o.publish(ctx, run.ID, events.TranscriptFailed{
			BaseEvent:    events.NewBaseEvent(events.TranscriptFailedEvent, run.ID),
			TranscriptID: transcriptID,
			Stage:        stage,
			Error:        err.Error(),
		})
	}

	if o.cancelled(ctx, run.ID) {
		fail(models.StageStarted, errors.New("run cancelled"))
		return
	}

	transcript, err := o.persistence.Transcripts().GetByID(ctx, transcriptID)
	if err != nil {
		fail(models.StageStarted, err)
		return
	}

	analysis, err := o.analyzeStage(ctx, transcript)
	if err != nil {
		fail(models.StageStarted, err)
		return
	}

	agg.advance(ctx, transcriptID, models.StageAnalysisCompleted)

	if o.cancelled(ctx, run.ID) {
		fail(models.StageAnalysisCompleted, errors.New("run cancelled"))
		return
	}

	plan, err := o.planStage(ctx, analysis)
	if err != nil {
		fail(models.StageAnalysisCompleted, err)
		return
	}

	agg.advance(ctx, transcriptID, models.StagePlanCompleted)

	if o.cancelled(ctx, run.ID) {
		fail(models.StagePlanCompleted, errors.New("run cancelled"))
		return
	}

	workflows, err := o.workflowStage(ctx, run, plan)
	if err != nil {
		fail(models.StagePlanCompleted, err)
		return
	}

	agg.advance(ctx, transcriptID, models.StageWorkflowsCompleted)

	if o.cancelled(ctx, run.ID) {
		fail(models.StageWorkflowsCompleted, errors.New("run cancelled"))
		return
	}

	executed, failed := o.executionStage(ctx, run, workflows)

	agg.advance(ctx, transcriptID, models.StageExecutionCompleted)

	now := time.Now().UTC()
	agg.recordSuccess(ctx, &models.TranscriptResult{
		TranscriptID:  transcriptID,
		Success:       true,
		AnalysisID:    analysis.ID,
		PlanID:        plan.ID,
		WorkflowCount: len(workflows),
		ExecutedCount: executed,
		FailedCount:   failed,
		CompletedAt:   &now,
	})
}

func (o *Orchestrator) analyzeStage(ctx context.Context, transcript *models.Transcript) (*models.Analysis, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	analysis, err := o.engine.Analyze(stageCtx, transcript)
	if err != nil {
		return nil, err
	}

	if err := o.persistence.Analyses().Save(ctx, analysis); err != nil {
		return nil, err
	}

	return analysis, nil
}

// planStage builds the plan and classifies it. The classification's risk level
// drives auto-executability: only LOW risk plans may execute unattended.
func (o *Orchestrator) planStage(ctx context.Context, analysis *models.Analysis) (*models.Plan, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	plan, err := o.engine.Plan(stageCtx, analysis)
	if err != nil {
		return nil, err
	}

	level, route, err := o.classifier.Classify(stageCtx, analysis)
	if err != nil {
		return nil, err
	}

	parsed, known := models.ParseRiskLevel(string(level))
	if !known {
		o.logger.WarnContext(ctx, "Classifier returned unknown risk level, treating as HIGH",
			"analysis_id", analysis.ID,
			"risk_level", level)
	}

	plan.RiskLevel = parsed
	plan.ApprovalRoute = route
	plan.AutoExecutable = parsed == models.RiskLow

	if err := o.persistence.Plans().Save(ctx, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// workflowStage extracts workflows, persists them, and routes each one through
// the approval gate.
func (o *Orchestrator) workflowStage(ctx context.Context, run *models.Run, plan *models.Plan) ([]*models.Workflow, error) {
	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	workflows, err := o.engine.ExtractWorkflows(stageCtx, plan)
	if err != nil {
		return nil, err
	}

	for _, workflow := range workflows {
		if err := o.persistence.Workflows().Save(ctx, workflow); err != nil {
			return nil, err
		}
	}

	plan.QueueStatus = models.PlanQueueRouted
	if err := o.persistence.Plans().Save(ctx, plan); err != nil {
		return nil, err
	}

	routed := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		updated, err := o.gate.Route(ctx, run.ID, workflow.ID, run.AutoApprove, plan.AutoExecutable)
		if err != nil {
			return nil, fmt.Errorf("routing workflow %s: %w", workflow.ID, err)
		}

		routed = append(routed, updated)
	}

	return routed, nil
}

// executionStage builds steps for every workflow and executes the ones that
// cleared the gate. Workflows awaiting human approval keep their PENDING steps
// for later manual execution. A workflow execution failure does not fail the
// transcript.
func (o *Orchestrator) executionStage(ctx context.Context, run *models.Run, workflows []*models.Workflow) (executed, failed int) {
	for _, workflow := range workflows {
		if _, err := o.tracker.BuildSteps(ctx, workflow.ID); err != nil {
			o.logger.WarnContext(ctx, "Failed to build steps",
				"workflow_id", workflow.ID,
				"error", err)
			failed++

			continue
		}

		if !workflow.Executable() {
			continue
		}

		stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
		_, err := o.tracker.ExecuteWorkflow(stageCtx, run.ID, workflow.ID)
		cancel()

		if err != nil {
			failed++
			continue
		}

		executed++
	}

	return executed, failed
}

// dedupe drops repeated and blank ids, keeping first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, id)
	}

	return out
}

func (o *Orchestrator) cancelled(ctx context.Context, runID string) bool {
	run, err := o.persistence.Runs().GetByID(ctx, runID)
	if err != nil {
		return false
	}

	return run.CancelRequested
}

func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.eventBus == nil {
		return
	}

	if err := o.eventBus.Publish(ctx, key, event); err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(),
			"error", err)
	}
}
