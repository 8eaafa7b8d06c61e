package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/dukex/tricall/pkg/persistence/postgresql"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"runs", "workflows", "plans", "analyses", "transcripts", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("tricall_test"),
			postgres.WithUsername("tricall"),
			postgres.WithPassword("tricall"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = store.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return store, ctx
}

func TestTranscriptRoundTrip(t *testing.T) {
	store, ctx := setupTestDB(t)

	transcript := &models.Transcript{
		ID:         "tr-1",
		CustomerID: "cust-1",
		AdvisorID:  "adv-1",
		Topic:      "balance inquiry",
		Content:    "customer asked for the current balance",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	require.NoError(t, store.Transcripts().Save(ctx, transcript))

	loaded, err := store.Transcripts().GetByID(ctx, "tr-1")
	require.NoError(t, err)
	assert.Equal(t, transcript.Topic, loaded.Topic)
	assert.Equal(t, transcript.Content, loaded.Content)

	all, err := store.Transcripts().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.Transcripts().Delete(ctx, "tr-1"))

	_, err = store.Transcripts().GetByID(ctx, "tr-1")
	assert.True(t, persistence.IsTranscriptNotFound(err))
}

func TestWorkflowUpdateIsCompareAndSwap(t *testing.T) {
	store, ctx := setupTestDB(t)

	workflow := &models.Workflow{
		ID:           "wf-1",
		PlanID:       "plan-1",
		AnalysisID:   "an-1",
		TranscriptID: "tr-1",
		WorkflowType: models.WorkflowTypeAdvisor,
		RiskLevel:    models.RiskMedium,
		Status:       models.WorkflowAwaitingApproval,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Workflows().Save(ctx, workflow))

	updated, err := store.Workflows().Update(ctx, "wf-1", func(w *models.Workflow) error {
		return w.TransitionStatus(models.WorkflowAwaitingApproval, models.WorkflowRejected)
	})
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRejected, updated.Status)

	// A second transition expecting the old state fails and leaves the row
	// unchanged.
	_, err = store.Workflows().Update(ctx, "wf-1", func(w *models.Workflow) error {
		return w.TransitionStatus(models.WorkflowAwaitingApproval, models.WorkflowExecuted)
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := store.Workflows().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRejected, stored.Status)
}

func TestWorkflowListByStatus(t *testing.T) {
	store, ctx := setupTestDB(t)

	base := time.Now().UTC()

	for i, status := range []models.WorkflowStatus{
		models.WorkflowAwaitingApproval,
		models.WorkflowAwaitingApproval,
		models.WorkflowExecuted,
	} {
		require.NoError(t, store.Workflows().Save(ctx, &models.Workflow{
			ID:           "wf-" + string(rune('a'+i)),
			PlanID:       "plan-1",
			WorkflowType: models.WorkflowTypeAdvisor,
			Status:       status,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	awaiting, err := store.Workflows().ListByStatus(ctx, models.WorkflowAwaitingApproval, 10)
	require.NoError(t, err)
	require.Len(t, awaiting, 2)
	// Newest first.
	assert.Equal(t, "wf-b", awaiting[0].ID)

	limited, err := store.Workflows().ListByStatus(ctx, models.WorkflowAwaitingApproval, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	all, err := store.Workflows().ListByStatus(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunListTerminalBefore(t *testing.T) {
	store, ctx := setupTestDB(t)

	old := time.Now().UTC().Add(-48 * time.Hour)
	recent := time.Now().UTC()

	require.NoError(t, store.Runs().Save(ctx, &models.Run{
		ID: "run-old", TranscriptIDs: []string{"tr-1"}, Status: models.RunCompleted,
		Stage: models.StageComplete, CreatedAt: old, CompletedAt: &old,
	}))
	require.NoError(t, store.Runs().Save(ctx, &models.Run{
		ID: "run-recent", TranscriptIDs: []string{"tr-2"}, Status: models.RunFailed,
		Stage: models.StageComplete, CreatedAt: recent, CompletedAt: &recent,
	}))
	require.NoError(t, store.Runs().Save(ctx, &models.Run{
		ID: "run-active", TranscriptIDs: []string{"tr-3"}, Status: models.RunRunning,
		Stage: models.StagePlanCompleted, CreatedAt: old,
	}))

	expired, err := store.Runs().ListTerminalBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "run-old", expired[0].ID)
}

func TestRunDocumentRoundTrip(t *testing.T) {
	store, ctx := setupTestDB(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	run := &models.Run{
		ID:            "run-1",
		TranscriptIDs: []string{"tr-1", "tr-2"},
		AutoApprove:   true,
		Status:        models.RunCompleted,
		Stage:         models.StageComplete,
		Results: []*models.TranscriptResult{
			{TranscriptID: "tr-1", Success: true, WorkflowCount: 2, ExecutedCount: 2},
			{TranscriptID: "tr-2", Success: false},
		},
		Errors: []*models.TranscriptError{
			{TranscriptID: "tr-2", Stage: models.StageStarted, Message: "boom", Timestamp: now},
		},
		CreatedAt:   now,
		CompletedAt: &now,
	}
	run.ComputeSummary()

	require.NoError(t, store.Runs().Save(ctx, run))

	loaded, err := store.Runs().GetByID(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Summary, loaded.Summary)
	assert.Len(t, loaded.Results, 2)
	assert.Len(t, loaded.Errors, 1)
}
