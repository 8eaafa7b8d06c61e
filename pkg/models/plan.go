package models

import "time"

// PlanQueueStatus tracks where a plan sits relative to workflow extraction.
type PlanQueueStatus string

const (
	PlanQueuePending PlanQueueStatus = "PENDING"
	PlanQueueRouted  PlanQueueStatus = "ROUTED"
)

// ActionItem is one recommended action inside a role-scoped sub-plan. Tool names
// the actuator needed to carry the action out (email, crm, document, compliance,
// servicing).
type ActionItem struct {
	Description string `json:"description"`
	Tool        string `json:"tool"`
}

// SubPlan is the action recommendation for a single audience.
type SubPlan struct {
	Summary     string       `json:"summary"`
	ActionItems []ActionItem `json:"action_items,omitempty"`
}

// Plan is the four-audience action recommendation derived from an analysis.
// Created by the Plan stage; only approval metadata mutates afterwards.
type Plan struct {
	ID           string `json:"id"`
	AnalysisID   string `json:"analysis_id"`
	TranscriptID string `json:"transcript_id"`

	Borrower   SubPlan `json:"borrower"`
	Advisor    SubPlan `json:"advisor"`
	Supervisor SubPlan `json:"supervisor"`
	Leadership SubPlan `json:"leadership"`

	RiskLevel      RiskLevel       `json:"risk_level"`
	ApprovalRoute  string          `json:"approval_route"`
	AutoExecutable bool            `json:"auto_executable"`
	QueueStatus    PlanQueueStatus `json:"queue_status"`

	ApprovedBy *string    `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// SubPlanFor returns the sub-plan addressed to the given workflow audience.
func (p *Plan) SubPlanFor(t WorkflowType) SubPlan {
	switch t {
	case WorkflowTypeBorrower:
		return p.Borrower
	case WorkflowTypeAdvisor:
		return p.Advisor
	case WorkflowTypeSupervisor:
		return p.Supervisor
	case WorkflowTypeLeadership:
		return p.Leadership
	default:
		return SubPlan{}
	}
}
