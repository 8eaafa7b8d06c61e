package models

import (
	"math"
	"time"
)

// RunStatus is the lifecycle state of an orchestration run.
type RunStatus string

const (
	RunStarted   RunStatus = "STARTED"
	RunRunning   RunStatus = "RUNNING"
	RunCompleted RunStatus = "COMPLETED"
	// RunFailed marks a run the orchestrator could not process at all.
	// Per-transcript failures are isolated and still end in COMPLETED.
	RunFailed RunStatus = "FAILED"
)

// Terminal reports whether the run can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// RunStage labels the highest pipeline stage every transcript in the batch has
// reached (terminally failed transcripts count as having passed all stages).
type RunStage string

const (
	StageStarted            RunStage = "STARTED"
	StageAnalysisCompleted  RunStage = "ANALYSIS_COMPLETED"
	StagePlanCompleted      RunStage = "PLAN_COMPLETED"
	StageWorkflowsCompleted RunStage = "WORKFLOWS_COMPLETED"
	StageExecutionCompleted RunStage = "EXECUTION_COMPLETED"
	StageComplete           RunStage = "COMPLETE"
)

// stageOrder is the pipeline progression used for run-level aggregation.
var stageOrder = []RunStage{
	StageStarted,
	StageAnalysisCompleted,
	StagePlanCompleted,
	StageWorkflowsCompleted,
	StageExecutionCompleted,
	StageComplete,
}

// StageIndex returns the position of a stage in the pipeline progression.
func StageIndex(s RunStage) int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}

	return 0
}

// StageAt returns the stage label at the given progression index, clamped.
func StageAt(index int) RunStage {
	if index < 0 {
		return stageOrder[0]
	}

	if index >= len(stageOrder) {
		return stageOrder[len(stageOrder)-1]
	}

	return stageOrder[index]
}

// TranscriptResult is the per-transcript outcome inside a run.
type TranscriptResult struct {
	TranscriptID  string     `json:"transcript_id"`
	Success       bool       `json:"success"`
	AnalysisID    string     `json:"analysis_id,omitempty"`
	PlanID        string     `json:"plan_id,omitempty"`
	WorkflowCount int        `json:"workflow_count"`
	ExecutedCount int        `json:"executed_count"`
	FailedCount   int        `json:"failed_count"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TranscriptError records an isolated per-transcript failure.
type TranscriptError struct {
	TranscriptID string    `json:"transcript_id"`
	Stage        RunStage  `json:"stage"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// RunSummary aggregates per-transcript outcomes. successful + failed <= total
// always; equality holds once the run is terminal.
type RunSummary struct {
	Total       int     `json:"total"`
	Successful  int     `json:"successful"`
	Failed      int     `json:"failed"`
	SuccessRate float64 `json:"success_rate"`
}

// Run is one orchestration batch covering one or more transcripts end-to-end.
// Results and errors grow incrementally while the run progresses; the record is
// immutable once status is terminal.
type Run struct {
	ID              string              `json:"id"`
	TranscriptIDs   []string            `json:"transcript_ids"`
	AutoApprove     bool                `json:"auto_approve"`
	Status          RunStatus           `json:"status"`
	Stage           RunStage            `json:"stage"`
	Results         []*TranscriptResult `json:"results"`
	Errors          []*TranscriptError  `json:"errors"`
	Summary         RunSummary          `json:"summary"`
	CancelRequested bool                `json:"cancel_requested"`
	CreatedAt       time.Time           `json:"created_at"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
}

// ComputeSummary fills the summary counts from the recorded results. The rate
// is rounded to three decimals so terminal snapshots are stable.
func (r *Run) ComputeSummary() {
	summary := RunSummary{Total: len(r.TranscriptIDs)}

	for _, res := range r.Results {
		if res.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	if summary.Total > 0 {
		rate := float64(summary.Successful) / float64(summary.Total)
		summary.SuccessRate = math.Round(rate*1000) / 1000
	}

	r.Summary = summary
}
