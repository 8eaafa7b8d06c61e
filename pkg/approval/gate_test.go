package approval

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/tricall/pkg/log"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T) (*Gate, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())

	return NewGate(store, nil, log.Discard()), store
}

func seedWorkflow(t *testing.T, store *file.Persistence, status models.WorkflowStatus, level models.RiskLevel) *models.Workflow {
	t.Helper()

	workflow := &models.Workflow{
		ID:           "wf-" + string(level) + "-" + string(status),
		PlanID:       "plan-1",
		AnalysisID:   "an-1",
		TranscriptID: "tr-1",
		Title:        "Follow up",
		WorkflowType: models.WorkflowTypeAdvisor,
		RiskLevel:    level,
		Status:       status,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, store.Workflows().Save(context.Background(), workflow))

	return workflow
}

func TestRouteAutoApprovesOnlyWhenAllSignalsAgree(t *testing.T) {
	tests := []struct {
		name           string
		level          models.RiskLevel
		runAutoApprove bool
		autoExecutable bool
		want           models.WorkflowStatus
	}{
		{"low risk with both opt-ins", models.RiskLow, true, true, models.WorkflowAutoApproved},
		{"low risk without run opt-in", models.RiskLow, false, true, models.WorkflowAwaitingApproval},
		{"low risk without auto-executable plan", models.RiskLow, true, false, models.WorkflowAwaitingApproval},
		{"medium risk", models.RiskMedium, true, true, models.WorkflowAwaitingApproval},
		{"high risk", models.RiskHigh, true, true, models.WorkflowAwaitingApproval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, store := newGate(t)
			seeded := seedWorkflow(t, store, models.WorkflowPendingAssessment, tt.level)

			routed, err := gate.Route(t.Context(), "run-1", seeded.ID, tt.runAutoApprove, tt.autoExecutable)
			require.NoError(t, err)
			assert.Equal(t, tt.want, routed.Status)
			assert.Equal(t, tt.want == models.WorkflowAwaitingApproval, routed.RequiresHumanApproval)
		})
	}
}

func TestRouteTreatsUnknownRiskAsHigh(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowPendingAssessment, models.RiskLevel("SEVERE"))

	routed, err := gate.Route(t.Context(), "run-1", seeded.ID, true, true)
	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, routed.RiskLevel)
	assert.Equal(t, models.WorkflowAwaitingApproval, routed.Status)
}

func TestRouteRejectsAlreadyRoutedWorkflow(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowAwaitingApproval, models.RiskHigh)

	_, err := gate.Route(t.Context(), "run-1", seeded.ID, false, false)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestApproveRecordsApproverAndKeepsStatus(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowAwaitingApproval, models.RiskHigh)

	approved, err := gate.Approve(t.Context(), seeded.ID, "supervisor-9", "reviewed the call")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowAwaitingApproval, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "supervisor-9", *approved.ApprovedBy)
	assert.NotNil(t, approved.ApprovedAt)
	assert.True(t, approved.Executable())
}

func TestApproveTwiceFails(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowAwaitingApproval, models.RiskHigh)

	_, err := gate.Approve(t.Context(), seeded.ID, "supervisor-9", "")
	require.NoError(t, err)

	_, err = gate.Approve(t.Context(), seeded.ID, "supervisor-10", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	stored, err := store.Workflows().GetByID(t.Context(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, "supervisor-9", *stored.ApprovedBy)
}

func TestApproveRejectedWorkflowFails(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowRejected, models.RiskHigh)

	_, err := gate.Approve(t.Context(), seeded.ID, "supervisor-9", "")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestRejectRequiresReason(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowAwaitingApproval, models.RiskHigh)

	_, err := gate.Reject(t.Context(), seeded.ID, "supervisor-9", "")
	assert.ErrorIs(t, err, models.ErrMissingReason)

	stored, err := store.Workflows().GetByID(t.Context(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowAwaitingApproval, stored.Status)
}

func TestRejectMovesToRejected(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowAwaitingApproval, models.RiskHigh)

	rejected, err := gate.Reject(t.Context(), seeded.ID, "supervisor-9", "customer already contacted")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRejected, rejected.Status)
	assert.Equal(t, "customer already contacted", rejected.RejectionReason)
	require.NotNil(t, rejected.RejectedBy)
	assert.Equal(t, "supervisor-9", *rejected.RejectedBy)
	assert.False(t, rejected.Executable())
}

func TestRejectAutoApprovedWorkflowFails(t *testing.T) {
	gate, store := newGate(t)
	seeded := seedWorkflow(t, store, models.WorkflowAutoApproved, models.RiskLow)

	_, err := gate.Reject(t.Context(), seeded.ID, "supervisor-9", "too risky")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
