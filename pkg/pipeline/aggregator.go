package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
)

// aggregator folds per-transcript progress into the run record. All methods
// take the internal mutex before touching shared stage state, and every
// persisted change goes through the run repository's Update. Nothing here is
// called while an engine or actuator call is in flight.
type aggregator struct {
	mu     sync.Mutex
	runs   persistence.RunRepository
	runID  string
	stages map[string]int
	logger *slog.Logger
}

func newAggregator(runs persistence.RunRepository, run *models.Run, logger *slog.Logger) *aggregator {
	stages := make(map[string]int, len(run.TranscriptIDs))
	for _, id := range run.TranscriptIDs {
		stages[id] = models.StageIndex(models.StageStarted)
	}

	return &aggregator{
		runs:   runs,
		runID:  run.ID,
		stages: stages,
		logger: logger,
	}
}

// advance records that a transcript reached a stage and lowers the run's
// stage label to the minimum across the batch. Progress never moves backwards
// for a single transcript.
func (a *aggregator) advance(ctx context.Context, transcriptID string, stage models.RunStage) {
	a.mu.Lock()
	defer a.mu.Unlock()

	index := models.StageIndex(stage)
	if index > a.stages[transcriptID] {
		a.stages[transcriptID] = index
	}

	a.persistStage(ctx)
}

// recordSuccess stores the transcript's final result. The transcript counts as
// having passed every stage from here on.
func (a *aggregator) recordSuccess(ctx context.Context, result *models.TranscriptResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stages[result.TranscriptID] = models.StageIndex(models.StageComplete)

	_, err := a.runs.Update(ctx, a.runID, func(run *models.Run) error {
		run.Results = append(run.Results, result)
		run.ComputeSummary()
		run.Stage = a.minStage()

		return nil
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to record transcript result",
			"run_id", a.runID,
			"transcript_id", result.TranscriptID,
			"error", err)
	}
}

// recordFailure isolates one transcript's failure: an error entry plus a
// failed result, without touching any sibling transcript. Failed transcripts
// count as complete for stage aggregation so one dead transcript cannot pin
// the run's stage label forever.
func (a *aggregator) recordFailure(ctx context.Context, transcriptID string, stage models.RunStage, cause error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stages[transcriptID] = models.StageIndex(models.StageComplete)

	now := time.Now().UTC()

	_, err := a.runs.Update(ctx, a.runID, func(run *models.Run) error {
		run.Errors = append(run.Errors, &models.TranscriptError{
			TranscriptID: transcriptID,
			Stage:        stage,
			Message:      cause.Error(),
			Timestamp:    now,
		})
		run.Results = append(run.Results, &models.TranscriptResult{
			TranscriptID: transcriptID,
			Success:      false,
			CompletedAt:  &now,
		})
		run.ComputeSummary()
		run.Stage = a.minStage()

		return nil
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to record transcript failure",
			"run_id", a.runID,
			"transcript_id", transcriptID,
			"error", err)
	}
}

// finalize seals the run. Once every transcript has finished, with success or
// an isolated failure, the run is COMPLETED; per-transcript failures never
// fail the run as a whole.
func (a *aggregator) finalize(ctx context.Context) (*models.Run, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.runs.Update(ctx, a.runID, func(run *models.Run) error {
		run.ComputeSummary()
		run.Stage = models.StageComplete
		run.Status = models.RunCompleted

		now := time.Now().UTC()
		run.CompletedAt = &now

		return nil
	})
}

func (a *aggregator) persistStage(ctx context.Context) {
	stage := a.minStage()

	_, err := a.runs.Update(ctx, a.runID, func(run *models.Run) error {
		if run.Status.Terminal() {
			return nil
		}

		run.Stage = stage

		return nil
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to persist run stage",
			"run_id", a.runID,
			"error", err)
	}
}

// minStage is the highest stage every transcript has reached. Callers hold the
// mutex.
func (a *aggregator) minStage() models.RunStage {
	min := models.StageIndex(models.StageComplete)

	for _, index := range a.stages {
		if index < min {
			min = index
		}
	}

	return models.StageAt(min)
}
