package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
)

// TranscriptRepository handles transcript database operations.
type TranscriptRepository struct {
	store *docTable[models.Transcript]
}

func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{
		store: newDocTable(db, "transcripts", persistence.ErrTranscriptNotFound, func(t *models.Transcript) rowMeta {
			return rowMeta{CreatedAt: t.CreatedAt}
		}),
	}
}

func (r *TranscriptRepository) Save(ctx context.Context, transcript *models.Transcript) error {
	return r.store.save(ctx, transcript.ID, transcript)
}

func (r *TranscriptRepository) GetByID(ctx context.Context, id string) (*models.Transcript, error) {
	return r.store.get(ctx, id)
}

func (r *TranscriptRepository) GetAll(ctx context.Context) ([]*models.Transcript, error) {
	return r.store.query(ctx, "SELECT data FROM transcripts ORDER BY created_at DESC")
}

func (r *TranscriptRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(ctx, id)
}

// AnalysisRepository handles analysis database operations.
type AnalysisRepository struct {
	store *docTable[models.Analysis]
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{
		store: newDocTable(db, "analyses", persistence.ErrAnalysisNotFound, func(a *models.Analysis) rowMeta {
			return rowMeta{CreatedAt: a.CreatedAt}
		}),
	}
}

func (r *AnalysisRepository) Save(ctx context.Context, analysis *models.Analysis) error {
	return r.store.save(ctx, analysis.ID, analysis)
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*models.Analysis, error) {
	return r.store.get(ctx, id)
}

func (r *AnalysisRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(ctx, id)
}

// PlanRepository handles plan database operations.
type PlanRepository struct {
	store *docTable[models.Plan]
}

func NewPlanRepository(db *sql.DB) *PlanRepository {
	return &PlanRepository{
		store: newDocTable(db, "plans", persistence.ErrPlanNotFound, func(p *models.Plan) rowMeta {
			return rowMeta{CreatedAt: p.CreatedAt}
		}),
	}
}

func (r *PlanRepository) Save(ctx context.Context, plan *models.Plan) error {
	return r.store.save(ctx, plan.ID, plan)
}

func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	return r.store.get(ctx, id)
}

func (r *PlanRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(ctx, id)
}

// WorkflowRepository handles workflow database operations, steps included.
type WorkflowRepository struct {
	store *docTable[models.Workflow]
}

func NewWorkflowRepository(db *sql.DB) *WorkflowRepository {
	return &WorkflowRepository{
		store: newDocTable(db, "workflows", persistence.ErrWorkflowNotFound, func(w *models.Workflow) rowMeta {
			return rowMeta{Status: string(w.Status), CreatedAt: w.CreatedAt}
		}),
	}
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	return r.store.save(ctx, workflow.ID, workflow)
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	return r.store.get(ctx, id)
}

// ListByStatus returns workflows filtered by status (all statuses when empty),
// newest first, capped at limit when limit > 0.
func (r *WorkflowRepository) ListByStatus(ctx context.Context, status models.WorkflowStatus, limit int) ([]*models.Workflow, error) {
	query := "SELECT data FROM workflows"
	args := make([]any, 0, 2)

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, limit)
	}

	return r.store.query(ctx, query, args...)
}

func (r *WorkflowRepository) Update(ctx context.Context, id string, fn func(*models.Workflow) error) (*models.Workflow, error) {
	return r.store.update(ctx, id, fn)
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(ctx, id)
}

// RunRepository handles run database operations.
type RunRepository struct {
	store *docTable[models.Run]
}

func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{
		store: newDocTable(db, "runs", persistence.ErrRunNotFound, func(run *models.Run) rowMeta {
			return rowMeta{Status: string(run.Status), CreatedAt: run.CreatedAt, CompletedAt: run.CompletedAt}
		}),
	}
}

func (r *RunRepository) Save(ctx context.Context, run *models.Run) error {
	return r.store.save(ctx, run.ID, run)
}

func (r *RunRepository) GetByID(ctx context.Context, id string) (*models.Run, error) {
	return r.store.get(ctx, id)
}

func (r *RunRepository) Update(ctx context.Context, id string, fn func(*models.Run) error) (*models.Run, error) {
	return r.store.update(ctx, id, fn)
}

// ListTerminalBefore returns terminal runs whose completion predates the cutoff.
func (r *RunRepository) ListTerminalBefore(ctx context.Context, cutoff time.Time) ([]*models.Run, error) {
	query := `
		SELECT data FROM runs
		WHERE status IN ($1, $2) AND completed_at IS NOT NULL AND completed_at < $3
		ORDER BY completed_at ASC
	`

	return r.store.query(ctx, query, string(models.RunCompleted), string(models.RunFailed), cutoff)
}

func (r *RunRepository) Delete(ctx context.Context, id string) error {
	return r.store.delete(ctx, id)
}
