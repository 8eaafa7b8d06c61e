// Package remote implements the engine interfaces against an HTTP analysis
// service. Responses are schema-validated before use.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dukex/tricall/pkg/engines"
	"github.com/dukex/tricall/pkg/models"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

const defaultTimeout = 30 * time.Second

type Engine struct {
	baseURL string
	client  *http.Client
}

// NewEngine creates a remote engine against the given base URL. The timeout
// bounds each stage call; zero selects the default.
func NewEngine(baseURL string, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Engine{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *Engine) Analyze(ctx context.Context, transcript *models.Transcript) (*models.Analysis, error) {
	body, err := e.post(ctx, "/v1/analyze", transcript, analysisSchema)
	if err != nil {
		return nil, engines.StageFailure("analyze", err)
	}

	var analysis models.Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, engines.StageFailure("analyze", err)
	}

	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}

	analysis.CreatedAt = time.Now().UTC()

	return &analysis, nil
}

func (e *Engine) Plan(ctx context.Context, analysis *models.Analysis) (*models.Plan, error) {
	body, err := e.post(ctx, "/v1/plan", analysis, planSchema)
	if err != nil {
		return nil, engines.StageFailure("plan", err)
	}

	var plan models.Plan
	if err := json.Unmarshal(body, &plan); err != nil {
		return nil, engines.StageFailure("plan", err)
	}

	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}

	plan.QueueStatus = models.PlanQueuePending
	plan.CreatedAt = time.Now().UTC()

	return &plan, nil
}

// extractedWorkflow is the engine's wire shape for one workflow; identity and
// lineage are assigned locally so the collaborator cannot forge them.
type extractedWorkflow struct {
	WorkflowType models.WorkflowType `json:"workflow_type"`
	Title        string              `json:"title"`
	ActionItems  []models.ActionItem `json:"action_items"`
}

func (e *Engine) ExtractWorkflows(ctx context.Context, plan *models.Plan) ([]*models.Workflow, error) {
	body, err := e.post(ctx, "/v1/workflows", plan, workflowsSchema)
	if err != nil {
		return nil, engines.StageFailure("extract_workflows", err)
	}

	var response struct {
		Workflows []extractedWorkflow `json:"workflows"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return nil, engines.StageFailure("extract_workflows", err)
	}

	workflows := make([]*models.Workflow, 0, len(response.Workflows))

	for _, extracted := range response.Workflows {
		workflows = append(workflows, &models.Workflow{
			ID:           uuid.New().String(),
			PlanID:       plan.ID,
			AnalysisID:   plan.AnalysisID,
			TranscriptID: plan.TranscriptID,
			Title:        extracted.Title,
			WorkflowType: extracted.WorkflowType,
			RiskLevel:    plan.RiskLevel,
			ActionItems:  extracted.ActionItems,
			Status:       models.WorkflowPendingAssessment,
			CreatedAt:    time.Now().UTC(),
		})
	}

	return workflows, nil
}

func (e *Engine) Classify(ctx context.Context, analysis *models.Analysis) (models.RiskLevel, string, error) {
	body, err := e.post(ctx, "/v1/classify", analysis, classificationSchema)
	if err != nil {
		return "", "", engines.StageFailure("classify", err)
	}

	var response struct {
		RiskLevel     string `json:"risk_level"`
		ApprovalRoute string `json:"approval_route"`
	}

	if err := json.Unmarshal(body, &response); err != nil {
		return "", "", engines.StageFailure("classify", err)
	}

	return models.RiskLevel(response.RiskLevel), response.ApprovalRoute, nil
}

func (e *Engine) post(ctx context.Context, path string, payload any, schema string) ([]byte, error) {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := validate(schema, body); err != nil {
		return nil, err
	}

	return body, nil
}

func validate(schema string, body []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			details = append(details, violation.String())
		}

		return fmt.Errorf("engine response failed schema validation: %s", strings.Join(details, "; "))
	}

	return nil
}
