package retention

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/tricall/pkg/log"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/dukex/tricall/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLineage(t *testing.T, store *file.Persistence, runID string, completedAt time.Time, status models.RunStatus) {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, store.Transcripts().Save(ctx, &models.Transcript{
		ID: "tr-" + runID, CustomerID: "c", AdvisorID: "a", Topic: "t", Content: "call content", CreatedAt: completedAt,
	}))
	require.NoError(t, store.Analyses().Save(ctx, &models.Analysis{
		ID: "an-" + runID, TranscriptID: "tr-" + runID, Intent: "x", CreatedAt: completedAt,
	}))
	require.NoError(t, store.Plans().Save(ctx, &models.Plan{
		ID: "plan-" + runID, AnalysisID: "an-" + runID, TranscriptID: "tr-" + runID, CreatedAt: completedAt,
	}))
	require.NoError(t, store.Workflows().Save(ctx, &models.Workflow{
		ID: "wf-" + runID, PlanID: "plan-" + runID, AnalysisID: "an-" + runID, TranscriptID: "tr-" + runID,
		WorkflowType: models.WorkflowTypeAdvisor, Status: models.WorkflowExecuted, CreatedAt: completedAt,
	}))

	require.NoError(t, store.Runs().Save(ctx, &models.Run{
		ID:            runID,
		TranscriptIDs: []string{"tr-" + runID},
		Status:        status,
		Stage:         models.StageComplete,
		Results: []*models.TranscriptResult{
			{TranscriptID: "tr-" + runID, Success: true, AnalysisID: "an-" + runID, PlanID: "plan-" + runID},
		},
		CreatedAt:   completedAt,
		CompletedAt: &completedAt,
	}))
}

func TestSweepRemovesExpiredRunsAndLineage(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC().Add(-1 * time.Hour)

	seedLineage(t, store, "run-old", old, models.RunCompleted)
	seedLineage(t, store, "run-recent", recent, models.RunCompleted)

	sweeper, err := NewSweeper(store, 24*time.Hour, "@hourly", log.Discard())
	require.NoError(t, err)

	removed, err := sweeper.Sweep(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Runs().GetByID(t.Context(), "run-old")
	assert.True(t, persistence.IsNotFound(err))
	_, err = store.Plans().GetByID(t.Context(), "plan-run-old")
	assert.True(t, persistence.IsNotFound(err))
	_, err = store.Analyses().GetByID(t.Context(), "an-run-old")
	assert.True(t, persistence.IsNotFound(err))
	_, err = store.Workflows().GetByID(t.Context(), "wf-run-old")
	assert.True(t, persistence.IsNotFound(err))

	// Transcripts are inputs and survive the sweep.
	_, err = store.Transcripts().GetByID(t.Context(), "tr-run-old")
	assert.NoError(t, err)

	// Younger runs are untouched.
	_, err = store.Runs().GetByID(t.Context(), "run-recent")
	assert.NoError(t, err)
}

func TestSweepIgnoresActiveRuns(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, store.Runs().Save(context.Background(), &models.Run{
		ID:            "run-active",
		TranscriptIDs: []string{"tr-1"},
		Status:        models.RunRunning,
		Stage:         models.StagePlanCompleted,
		CreatedAt:     old,
	}))

	sweeper, err := NewSweeper(store, 24*time.Hour, "@hourly", log.Discard())
	require.NoError(t, err)

	removed, err := sweeper.Sweep(t.Context())
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = store.Runs().GetByID(t.Context(), "run-active")
	assert.NoError(t, err)
}

func TestNewSweeperValidation(t *testing.T) {
	store := file.NewPersistence(t.TempDir())

	_, err := NewSweeper(store, 0, "@hourly", log.Discard())
	assert.Error(t, err)

	_, err = NewSweeper(store, time.Hour, "not a cron expr", log.Discard())
	assert.Error(t, err)
}
