package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukex/tricall/pkg/approval"
	"github.com/dukex/tricall/pkg/engines"
	"github.com/dukex/tricall/pkg/engines/rulebased"
	"github.com/dukex/tricall/pkg/execution"
	"github.com/dukex/tricall/pkg/log"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingEngine fails Analyze for one transcript id and delegates the rest.
type failingEngine struct {
	engines.Engine
	failOn string
}

func (e *failingEngine) Analyze(ctx context.Context, transcript *models.Transcript) (*models.Analysis, error) {
	if transcript.ID == e.failOn {
		return nil, engines.StageFailure("analyze", errors.New("collaborator unavailable"))
	}

	return e.Engine.Analyze(ctx, transcript)
}

// offlineEngine fails Analyze for every transcript.
type offlineEngine struct {
	engines.Engine
}

func (e *offlineEngine) Analyze(context.Context, *models.Transcript) (*models.Analysis, error) {
	return nil, engines.StageFailure("analyze", errors.New("collaborator unavailable"))
}

// blockingEngine holds Analyze until released, so tests can interleave
// cancellation with in-flight work.
type blockingEngine struct {
	engines.Engine
	started chan struct{}
	release chan struct{}
}

func (e *blockingEngine) Analyze(ctx context.Context, transcript *models.Transcript) (*models.Analysis, error) {
	e.started <- struct{}{}
	<-e.release

	return e.Engine.Analyze(ctx, transcript)
}

func newTestOrchestrator(t *testing.T, engine engines.Engine) (*Orchestrator, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	logger := log.Discard()
	gate := approval.NewGate(store, nil, logger)
	tracker := execution.NewTracker(store, execution.DefaultRegistry(logger), nil, logger)

	base := rulebased.NewEngine()
	if engine == nil {
		engine = base
	}

	orchestrator := NewOrchestrator(Config{
		Persistence:  store,
		Engine:       engine,
		Classifier:   base,
		Gate:         gate,
		Tracker:      tracker,
		Logger:       logger,
		StageTimeout: 5 * time.Second,
	})

	return orchestrator, store
}

func seedTranscript(t *testing.T, store *file.Persistence, id, topic, content string) {
	t.Helper()

	require.NoError(t, store.Transcripts().Save(context.Background(), &models.Transcript{
		ID:         id,
		CustomerID: "cust-1",
		AdvisorID:  "adv-1",
		Topic:      topic,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}))
}

func waitTerminal(t *testing.T, o *Orchestrator, runID string) *models.Run {
	t.Helper()

	var run *models.Run

	require.Eventually(t, func() bool {
		snapshot, err := o.GetStatus(context.Background(), runID)
		if err != nil {
			return false
		}

		run = snapshot

		return run.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	return run
}

func TestStartRunRejectsEmptyBatch(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, nil)

	_, err := orchestrator.StartRun(t.Context(), nil, false)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestStartRunDeduplicatesBatch(t *testing.T) {
	orchestrator, store := newTestOrchestrator(t, nil)
	seedTranscript(t, store, "tr-1", "balance inquiry", "customer asked for the current balance")

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1", "tr-1", ""}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"tr-1"}, started.TranscriptIDs)
	assert.Equal(t, 1, started.Summary.Total)

	run := waitTerminal(t, orchestrator, started.ID)
	assert.Equal(t, models.RunSummary{Total: 1, Successful: 1, Failed: 0, SuccessRate: 1}, run.Summary)
}

func TestStartRunRejectsBlankOnlyBatch(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, nil)

	_, err := orchestrator.StartRun(t.Context(), []string{""}, false)
	assert.ErrorIs(t, err, ErrEmptyBatch)
}

func TestRunCompletesWithPartialFailure(t *testing.T) {
	engine := &failingEngine{Engine: rulebased.NewEngine(), failOn: "tr-2"}
	orchestrator, store := newTestOrchestrator(t, engine)

	for _, id := range []string{"tr-1", "tr-2", "tr-3"} {
		seedTranscript(t, store, id, "balance inquiry", "customer asked for the current balance")
	}

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1", "tr-2", "tr-3"}, true)
	require.NoError(t, err)
	assert.Equal(t, models.RunStarted, started.Status)

	run := waitTerminal(t, orchestrator, started.ID)

	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, models.StageComplete, run.Stage)
	assert.Equal(t, models.RunSummary{Total: 3, Successful: 2, Failed: 1, SuccessRate: 0.667}, run.Summary)
	assert.Len(t, run.Results, 3)

	require.Len(t, run.Errors, 1)
	assert.Equal(t, "tr-2", run.Errors[0].TranscriptID)
	assert.Contains(t, run.Errors[0].Message, "collaborator unavailable")
}

func TestRunCompletesWhenEveryTranscriptIsMissing(t *testing.T) {
	orchestrator, _ := newTestOrchestrator(t, nil)

	// No transcripts were stored, so every lookup fails. The failures are
	// isolated per transcript and the run still completes.
	started, err := orchestrator.StartRun(t.Context(), []string{"ghost-1", "ghost-2"}, false)
	require.NoError(t, err)

	run := waitTerminal(t, orchestrator, started.ID)

	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, models.RunSummary{Total: 2, Successful: 0, Failed: 2, SuccessRate: 0}, run.Summary)
	assert.Len(t, run.Errors, 2)
}

func TestRunCompletesWhenEveryTranscriptFailsAtAStage(t *testing.T) {
	orchestrator, store := newTestOrchestrator(t, &offlineEngine{Engine: rulebased.NewEngine()})

	for _, id := range []string{"tr-1", "tr-2"} {
		seedTranscript(t, store, id, "balance inquiry", "customer asked for the current balance")
	}

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1", "tr-2"}, false)
	require.NoError(t, err)

	run := waitTerminal(t, orchestrator, started.ID)

	assert.Equal(t, models.RunCompleted, run.Status)
	assert.Equal(t, models.StageComplete, run.Stage)
	assert.Equal(t, models.RunSummary{Total: 2, Successful: 0, Failed: 2, SuccessRate: 0}, run.Summary)

	require.Len(t, run.Errors, 2)
	for _, runErr := range run.Errors {
		assert.Contains(t, runErr.Message, "collaborator unavailable")
	}
}

func TestRunAutoApproveExecutesLowRiskWorkflows(t *testing.T) {
	orchestrator, store := newTestOrchestrator(t, nil)
	seedTranscript(t, store, "tr-1", "balance inquiry", "customer asked for the current balance")

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1"}, true)
	require.NoError(t, err)

	run := waitTerminal(t, orchestrator, started.ID)
	require.Equal(t, models.RunCompleted, run.Status)

	require.Len(t, run.Results, 1)
	result := run.Results[0]
	assert.True(t, result.Success)
	assert.NotZero(t, result.WorkflowCount)
	assert.Equal(t, result.WorkflowCount, result.ExecutedCount)
	assert.Zero(t, result.FailedCount)

	executed, err := store.Workflows().ListByStatus(t.Context(), models.WorkflowExecuted, 10)
	require.NoError(t, err)
	assert.Len(t, executed, result.WorkflowCount)

	for _, workflow := range executed {
		assert.True(t, workflow.AllStepsExecuted())
		assert.False(t, workflow.RequiresHumanApproval)
	}
}

func TestRunHighRiskWorkflowsAwaitApproval(t *testing.T) {
	orchestrator, store := newTestOrchestrator(t, nil)
	seedTranscript(t, store, "tr-1", "complaint", "customer mentioned an attorney and a possible lawsuit")

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1"}, true)
	require.NoError(t, err)

	run := waitTerminal(t, orchestrator, started.ID)
	require.Equal(t, models.RunCompleted, run.Status)

	require.Len(t, run.Results, 1)
	assert.Zero(t, run.Results[0].ExecutedCount)

	awaiting, err := store.Workflows().ListByStatus(t.Context(), models.WorkflowAwaitingApproval, 10)
	require.NoError(t, err)
	require.NotEmpty(t, awaiting)

	// Steps are pre-built so manual execution can start right after approval.
	for _, workflow := range awaiting {
		assert.True(t, workflow.RequiresHumanApproval)
		require.NotEmpty(t, workflow.Steps)

		for _, step := range workflow.Steps {
			assert.Equal(t, models.StepPending, step.Status)
		}
	}
}

func TestCancelStopsPendingStages(t *testing.T) {
	engine := &blockingEngine{
		Engine:  rulebased.NewEngine(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	orchestrator, store := newTestOrchestrator(t, engine)
	seedTranscript(t, store, "tr-1", "balance inquiry", "customer asked for the current balance")

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1"}, false)
	require.NoError(t, err)

	<-engine.started

	cancelledRun, err := orchestrator.Cancel(t.Context(), started.ID, "operator-1")
	require.NoError(t, err)
	assert.True(t, cancelledRun.CancelRequested)

	close(engine.release)

	run := waitTerminal(t, orchestrator, started.ID)
	assert.Equal(t, models.RunCompleted, run.Status)
	require.NotEmpty(t, run.Errors)
	assert.Contains(t, run.Errors[0].Message, "run cancelled")
}

func TestCancelTerminalRunIsInvalid(t *testing.T) {
	orchestrator, store := newTestOrchestrator(t, nil)
	seedTranscript(t, store, "tr-1", "balance inquiry", "customer asked for the current balance")

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1"}, false)
	require.NoError(t, err)

	waitTerminal(t, orchestrator, started.ID)

	_, err = orchestrator.Cancel(t.Context(), started.ID, "operator-1")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestGetStatusTerminalSnapshotIsStable(t *testing.T) {
	orchestrator, store := newTestOrchestrator(t, nil)
	seedTranscript(t, store, "tr-1", "balance inquiry", "customer asked for the current balance")

	started, err := orchestrator.StartRun(t.Context(), []string{"tr-1"}, true)
	require.NoError(t, err)

	first := waitTerminal(t, orchestrator, started.ID)

	second, err := orchestrator.GetStatus(t.Context(), started.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
