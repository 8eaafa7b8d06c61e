package models

import (
	"errors"
	"time"
)

// State-machine errors shared by the approval gate and the execution tracker.
var (
	// ErrInvalidTransition indicates an illegal state-machine move. The entity is
	// left unchanged when this is returned.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingReason indicates a rejection without a mandatory reason.
	ErrMissingReason = errors.New("rejection reason is required")
)

// WorkflowType is the audience a workflow was extracted for.
type WorkflowType string

const (
	WorkflowTypeBorrower   WorkflowType = "BORROWER"
	WorkflowTypeAdvisor    WorkflowType = "ADVISOR"
	WorkflowTypeSupervisor WorkflowType = "SUPERVISOR"
	WorkflowTypeLeadership WorkflowType = "LEADERSHIP"
)

// RiskLevel classifies a workflow for approval routing.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// ParseRiskLevel maps a raw level string to a known RiskLevel. The second return
// is false when the value is unknown or empty; callers are expected to fail safe
// toward HIGH in that case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), true
	default:
		return RiskHigh, false
	}
}

// WorkflowStatus is the lifecycle state of a workflow.
//
// PENDING_ASSESSMENT -> {AWAITING_APPROVAL, AUTO_APPROVED}
// AWAITING_APPROVAL  -> {EXECUTED, REJECTED}
// AUTO_APPROVED      -> EXECUTED
// EXECUTED and REJECTED are terminal.
type WorkflowStatus string

const (
	WorkflowPendingAssessment WorkflowStatus = "PENDING_ASSESSMENT"
	WorkflowAwaitingApproval  WorkflowStatus = "AWAITING_APPROVAL"
	WorkflowAutoApproved      WorkflowStatus = "AUTO_APPROVED"
	WorkflowRejected          WorkflowStatus = "REJECTED"
	WorkflowExecuted          WorkflowStatus = "EXECUTED"
)

// Terminal reports whether no further status transition is permitted.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowRejected || s == WorkflowExecuted
}

// Workflow is a single actionable item extracted from a plan. The full lineage
// (plan, analysis, transcript) is retained for audit.
type Workflow struct {
	ID           string `json:"id"`
	PlanID       string `json:"plan_id"`
	AnalysisID   string `json:"analysis_id"`
	TranscriptID string `json:"transcript_id"`

	Title        string       `json:"title"`
	WorkflowType WorkflowType `json:"workflow_type"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	ActionItems  []ActionItem `json:"action_items"`

	Status                WorkflowStatus `json:"status"`
	RequiresHumanApproval bool           `json:"requires_human_approval"`

	ApprovedBy        *string    `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ApprovalReasoning string     `json:"approval_reasoning,omitempty"`
	RejectedBy        *string    `json:"rejected_by,omitempty"`
	RejectedAt        *time.Time `json:"rejected_at,omitempty"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	ExecutedAt        *time.Time `json:"executed_at,omitempty"`

	Steps []*ExecutionStep `json:"steps"`

	CreatedAt time.Time `json:"created_at"`
}

// Approved reports whether a human has signed off on this workflow.
func (w *Workflow) Approved() bool {
	return w.ApprovedBy != nil
}

// Executable reports whether the workflow may be handed to the execution
// tracker: either auto-approved, or awaiting approval with a recorded approver.
func (w *Workflow) Executable() bool {
	if w.Status == WorkflowAutoApproved {
		return true
	}

	return w.Status == WorkflowAwaitingApproval && w.Approved()
}

// TransitionStatus performs a compare-and-swap status move. It fails with
// ErrInvalidTransition when the current status does not match the expected
// pre-state, leaving the workflow unchanged.
func (w *Workflow) TransitionStatus(expect, next WorkflowStatus) error {
	if w.Status != expect {
		return ErrInvalidTransition
	}

	w.Status = next

	return nil
}

// Step returns the execution step with the given number, or nil.
func (w *Workflow) Step(number int) *ExecutionStep {
	for _, s := range w.Steps {
		if s.StepNumber == number {
			return s
		}
	}

	return nil
}

// AllStepsExecuted reports whether every child step reached EXECUTED. A
// workflow with no steps counts as fully executed.
func (w *Workflow) AllStepsExecuted() bool {
	for _, s := range w.Steps {
		if s.Status != StepExecuted {
			return false
		}
	}

	return true
}
