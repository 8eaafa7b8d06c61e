// Package file provides file-based persistence for pipeline entities.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/dukex/tricall/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system. Each
// entity kind lives in its own directory with one JSON file per record.
type Persistence struct {
	root        string
	transcripts *TranscriptRepository
	analyses    *AnalysisRepository
	plans       *PlanRepository
	workflows   *WorkflowRepository
	runs        *RunRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so database-URL style configuration
// works unchanged.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:        cleanRoot,
		transcripts: NewTranscriptRepository(cleanRoot),
		analyses:    NewAnalysisRepository(cleanRoot),
		plans:       NewPlanRepository(cleanRoot),
		workflows:   NewWorkflowRepository(cleanRoot),
		runs:        NewRunRepository(cleanRoot),
	}
}

func (p *Persistence) Transcripts() persistence.TranscriptRepository { return p.transcripts }
func (p *Persistence) Analyses() persistence.AnalysisRepository      { return p.analyses }
func (p *Persistence) Plans() persistence.PlanRepository             { return p.plans }
func (p *Persistence) Workflows() persistence.WorkflowRepository     { return p.workflows }
func (p *Persistence) Runs() persistence.RunRepository               { return p.runs }

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
