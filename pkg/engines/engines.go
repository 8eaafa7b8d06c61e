// Package engines defines the opaque stage collaborators the pipeline calls:
// analysis, planning, workflow extraction, and risk classification. The
// orchestrator treats every implementation as a black box returning structured
// output or an error.
package engines

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/tricall/pkg/models"
)

// ErrStageFailure marks an engine or actuator call that failed: network error,
// timeout, or malformed collaborator output. During batch processing it is
// captured per transcript and never propagates to sibling transcripts.
var ErrStageFailure = errors.New("stage execution failed")

// StageFailure wraps a cause as a stage failure.
func StageFailure(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStageFailure, stage, err)
}

// IsStageFailure checks whether an error is a stage failure.
func IsStageFailure(err error) bool {
	return errors.Is(err, ErrStageFailure)
}

// Engine produces the structured artifacts of the three processing stages.
type Engine interface {
	// Analyze derives risk scores, intent and a summary from a transcript.
	Analyze(ctx context.Context, transcript *models.Transcript) (*models.Analysis, error)

	// Plan derives the four-audience action plan from an analysis.
	Plan(ctx context.Context, analysis *models.Analysis) (*models.Plan, error)

	// ExtractWorkflows decomposes a plan into discrete actionable workflows.
	// A plan may yield zero workflows.
	ExtractWorkflows(ctx context.Context, plan *models.Plan) ([]*models.Workflow, error)
}

// Classifier turns an analysis into a risk level and a routing recommendation.
type Classifier interface {
	Classify(ctx context.Context, analysis *models.Analysis) (models.RiskLevel, string, error)
}
