// Package web provides HTTP request and response types for the pipeline API.
package web

// StartRunRequest represents the request body for starting an orchestration run.
type StartRunRequest struct {
	TranscriptIDs []string `json:"transcript_ids" validate:"required,min=1,dive,required"`
	AutoApprove   bool     `json:"auto_approve"`
}

// StartRunResponse acknowledges an accepted run. Processing is asynchronous;
// callers poll the status endpoint.
type StartRunResponse struct {
	RunID   string `json:"run_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CancelRunRequest represents the optional request body for cancelling a run.
type CancelRunRequest struct {
	CancelledBy string `json:"cancelled_by,omitempty"`
}

// ApproveWorkflowRequest represents the request body for approving a workflow.
type ApproveWorkflowRequest struct {
	ApprovedBy string `json:"approved_by" validate:"required"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// RejectWorkflowRequest represents the request body for rejecting a workflow.
// A reason is always required.
type RejectWorkflowRequest struct {
	RejectedBy string `json:"rejected_by" validate:"required"`
	Reason     string `json:"reason"      validate:"required"`
}

// CreateTranscriptRequest represents the request body for storing a call transcript.
type CreateTranscriptRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	AdvisorID  string `json:"advisor_id"  validate:"required"`
	Topic      string `json:"topic"       validate:"required"`
	Content    string `json:"content"     validate:"required,min=10"`
}
