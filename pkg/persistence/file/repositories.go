package file

import (
	"context"
	"sort"
	"time"

	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
)

// TranscriptRepository handles transcript file operations.
type TranscriptRepository struct {
	store *collection[models.Transcript]
}

func NewTranscriptRepository(root string) *TranscriptRepository {
	return &TranscriptRepository{
		store: newCollection[models.Transcript](root, "transcripts", persistence.ErrTranscriptNotFound),
	}
}

func (r *TranscriptRepository) Save(_ context.Context, transcript *models.Transcript) error {
	return r.store.save(transcript.ID, transcript)
}

func (r *TranscriptRepository) GetByID(_ context.Context, id string) (*models.Transcript, error) {
	return r.store.get(id)
}

func (r *TranscriptRepository) GetAll(_ context.Context) ([]*models.Transcript, error) {
	transcripts, err := r.store.all()
	if err != nil {
		return nil, err
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].CreatedAt.After(transcripts[j].CreatedAt)
	})

	return transcripts, nil
}

func (r *TranscriptRepository) Delete(_ context.Context, id string) error {
	return r.store.delete(id)
}

// AnalysisRepository handles analysis file operations.
type AnalysisRepository struct {
	store *collection[models.Analysis]
}

func NewAnalysisRepository(root string) *AnalysisRepository {
	return &AnalysisRepository{
		store: newCollection[models.Analysis](root, "analyses", persistence.ErrAnalysisNotFound),
	}
}

func (r *AnalysisRepository) Save(_ context.Context, analysis *models.Analysis) error {
	return r.store.save(analysis.ID, analysis)
}

func (r *AnalysisRepository) GetByID(_ context.Context, id string) (*models.Analysis, error) {
	return r.store.get(id)
}

func (r *AnalysisRepository) Delete(_ context.Context, id string) error {
	return r.store.delete(id)
}

// PlanRepository handles plan file operations.
type PlanRepository struct {
	store *collection[models.Plan]
}

func NewPlanRepository(root string) *PlanRepository {
	return &PlanRepository{
		store: newCollection[models.Plan](root, "plans", persistence.ErrPlanNotFound),
	}
}

func (r *PlanRepository) Save(_ context.Context, plan *models.Plan) error {
	return r.store.save(plan.ID, plan)
}

func (r *PlanRepository) GetByID(_ context.Context, id string) (*models.Plan, error) {
	return r.store.get(id)
}

func (r *PlanRepository) Delete(_ context.Context, id string) error {
	return r.store.delete(id)
}

// WorkflowRepository handles workflow file operations, steps included.
type WorkflowRepository struct {
	store *collection[models.Workflow]
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{
		store: newCollection[models.Workflow](root, "workflows", persistence.ErrWorkflowNotFound),
	}
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return r.store.save(workflow.ID, workflow)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	return r.store.get(id)
}

// ListByStatus returns workflows filtered by status (all statuses when empty),
// newest first, capped at limit when limit > 0.
func (r *WorkflowRepository) ListByStatus(_ context.Context, status models.WorkflowStatus, limit int) ([]*models.Workflow, error) {
	workflows, err := r.store.all()
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.Workflow, 0, len(workflows))

	for _, workflow := range workflows {
		if status != "" && workflow.Status != status {
			continue
		}

		filtered = append(filtered, workflow)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}

	return filtered, nil
}

func (r *WorkflowRepository) Update(_ context.Context, id string, fn func(*models.Workflow) error) (*models.Workflow, error) {
	return r.store.update(id, fn)
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	return r.store.delete(id)
}

// RunRepository handles run file operations.
type RunRepository struct {
	store *collection[models.Run]
}

func NewRunRepository(root string) *RunRepository {
	return &RunRepository{
		store: newCollection[models.Run](root, "runs", persistence.ErrRunNotFound),
	}
}

func (r *RunRepository) Save(_ context.Context, run *models.Run) error {
	return r.store.save(run.ID, run)
}

func (r *RunRepository) GetByID(_ context.Context, id string) (*models.Run, error) {
	return r.store.get(id)
}

func (r *RunRepository) Update(_ context.Context, id string, fn func(*models.Run) error) (*models.Run, error) {
	return r.store.update(id, fn)
}

// ListTerminalBefore returns terminal runs whose completion predates the cutoff.
func (r *RunRepository) ListTerminalBefore(_ context.Context, cutoff time.Time) ([]*models.Run, error) {
	runs, err := r.store.all()
	if err != nil {
		return nil, err
	}

	matches := make([]*models.Run, 0)

	for _, run := range runs {
		if !run.Status.Terminal() || run.CompletedAt == nil {
			continue
		}

		if run.CompletedAt.Before(cutoff) {
			matches = append(matches, run)
		}
	}

	return matches, nil
}

func (r *RunRepository) Delete(_ context.Context, id string) error {
	return r.store.delete(id)
}
