// Package persistence provides the data storage abstraction for pipeline entities.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/tricall/pkg/models"
)

// TranscriptRepository stores pipeline inputs. Transcripts are immutable.
type TranscriptRepository interface {
	Save(ctx context.Context, transcript *models.Transcript) error
	GetByID(ctx context.Context, id string) (*models.Transcript, error)
	GetAll(ctx context.Context) ([]*models.Transcript, error)
	Delete(ctx context.Context, id string) error
}

// AnalysisRepository stores Analyze-stage output.
type AnalysisRepository interface {
	Save(ctx context.Context, analysis *models.Analysis) error
	GetByID(ctx context.Context, id string) (*models.Analysis, error)
	Delete(ctx context.Context, id string) error
}

// PlanRepository stores Plan-stage output.
type PlanRepository interface {
	Save(ctx context.Context, plan *models.Plan) error
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	Delete(ctx context.Context, id string) error
}

// WorkflowRepository stores workflows with their embedded execution steps.
// Update runs the mutation under the repository's write lock so state-machine
// transitions inside fn are compare-and-swap: fn sees the current stored value,
// and its error aborts the write.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	ListByStatus(ctx context.Context, status models.WorkflowStatus, limit int) ([]*models.Workflow, error)
	Update(ctx context.Context, id string, fn func(*models.Workflow) error) (*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// RunRepository stores orchestration runs.
type RunRepository interface {
	Save(ctx context.Context, run *models.Run) error
	GetByID(ctx context.Context, id string) (*models.Run, error)
	Update(ctx context.Context, id string, fn func(*models.Run) error) (*models.Run, error)
	ListTerminalBefore(ctx context.Context, cutoff time.Time) ([]*models.Run, error)
	Delete(ctx context.Context, id string) error
}

// Persistence bundles the per-entity repositories behind one storage backend.
// No transaction semantics are assumed beyond single-entity atomicity.
type Persistence interface {
	Transcripts() TranscriptRepository
	Analyses() AnalysisRepository
	Plans() PlanRepository
	Workflows() WorkflowRepository
	Runs() RunRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
