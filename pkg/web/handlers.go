// Package web provides HTTP handlers and REST API endpoints for the decision pipeline.
package web

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/dukex/tricall/pkg/approval"
	"github.com/dukex/tricall/pkg/execution"
	"github.com/dukex/tricall/pkg/models"
	"github.com/dukex/tricall/pkg/persistence"
	"github.com/dukex/tricall/pkg/pipeline"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

const defaultHierarchicalLimit = 50

type APIHandlers struct {
	orchestrator *pipeline.Orchestrator
	gate         *approval.Gate
	tracker      *execution.Tracker
	persistence  persistence.Persistence
	validator    *validator.Validate
	logger       *slog.Logger
}

func NewAPIHandlers(
	orchestrator *pipeline.Orchestrator,
	gate *approval.Gate,
	tracker *execution.Tracker,
	p persistence.Persistence,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: orchestrator,
		gate:         gate,
		tracker:      tracker,
		persistence:  p,
		validator:    validate,
		logger:       logger.With("module", "web"),
	}
}

func (h *APIHandlers) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.orchestrator.StartRun(c.Context(), req.TranscriptIDs, req.AutoApprove)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(StartRunResponse{
		RunID:   run.ID,
		Status:  string(run.Status),
		Message: "run accepted, poll the status endpoint for progress",
	})
}

func (h *APIHandlers) GetRunStatus(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.orchestrator.GetStatus(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	// Body is optional; an empty cancelled_by is accepted.
	var req CancelRunRequest
	_ = c.Bind().JSON(&req)

	run, err := h.orchestrator.Cancel(c.Context(), id, req.CancelledBy)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(run)
}

// ApproveWorkflow records the approval and then executes the workflow's steps
// synchronously. A step failure does not undo the approval; the returned
// workflow carries the failed step's detail and the step can be retried.
func (h *APIHandlers) ApproveWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req ApproveWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.gate.Approve(c.Context(), id, req.ApprovedBy, req.Reasoning)
	if err != nil {
		return handleDomainError(c, err)
	}

	executed, execErr := h.tracker.ExecuteWorkflow(c.Context(), "", workflow.ID)
	if execErr != nil {
		if executed == nil {
			return handleDomainError(c, execErr)
		}

		h.logger.WarnContext(c.Context(), "Execution after approval stopped on step failure",
			"workflow_id", workflow.ID,
			"error", execErr)

		return c.JSON(executed)
	}

	return c.JSON(executed)
}

func (h *APIHandlers) RejectWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req RejectWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.gate.Reject(c.Context(), id, req.RejectedBy, req.Reason)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ExecuteStep(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	stepNumber, err := strconv.Atoi(c.Params("n"))
	if err != nil || stepNumber < 1 {
		return badRequest(c, "Step number must be a positive integer")
	}

	workflow, execErr := h.tracker.ExecuteStep(c.Context(), "", id, stepNumber)
	if execErr != nil {
		if workflow == nil {
			return handleDomainError(c, execErr)
		}

		// The step failed inside the actuator; its ERROR state and message are
		// part of the returned workflow.
		return c.JSON(workflow)
	}

	return c.JSON(workflow)
}

// GetHierarchicalExecutions returns workflows with their nested steps, newest
// first. An optional status filter narrows the view to one lifecycle state.
func (h *APIHandlers) GetHierarchicalExecutions(c fiber.Ctx) error {
	limit := defaultHierarchicalLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	statuses := []models.WorkflowStatus{
		models.WorkflowPendingAssessment,
		models.WorkflowAwaitingApproval,
		models.WorkflowAutoApproved,
		models.WorkflowRejected,
		models.WorkflowExecuted,
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)

		valid := false
		for _, known := range statuses {
			if status == known {
				valid = true
				break
			}
		}

		if !valid {
			return badRequest(c, "Unknown workflow status: "+statusStr)
		}

		statuses = []models.WorkflowStatus{status}
	}

	workflows := make([]*models.Workflow, 0, limit)

	for _, status := range statuses {
		batch, err := h.persistence.Workflows().ListByStatus(c.Context(), status, limit)
		if err != nil {
			return internalError(c, err)
		}

		workflows = append(workflows, batch...)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	if len(workflows) > limit {
		workflows = workflows[:limit]
	}

	return c.JSON(fiber.Map{
		"workflows": workflows,
		"count":     len(workflows),
	})
}

func (h *APIHandlers) CreateTranscript(c fiber.Ctx) error {
	var req CreateTranscriptRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	transcript := &models.Transcript{
		ID:         uuid.New().String(),
		CustomerID: req.CustomerID,
		AdvisorID:  req.AdvisorID,
		Topic:      req.Topic,
		Content:    req.Content,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.persistence.Transcripts().Save(c.Context(), transcript); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(transcript)
}

func (h *APIHandlers) GetTranscripts(c fiber.Ctx) error {
	transcripts, err := h.persistence.Transcripts().GetAll(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"transcripts": transcripts,
		"count":       len(transcripts),
	})
}

func (h *APIHandlers) GetTranscript(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Transcript ID is required")
	}

	transcript, err := h.persistence.Transcripts().GetByID(c.Context(), id)
	if err != nil {
		return handleDomainError(c, err)
	}

	return c.JSON(transcript)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Tricall API is healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Tricall API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
