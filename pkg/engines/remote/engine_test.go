package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/tricall/pkg/engines"
	"github.com/dukex/tricall/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineServer(t *testing.T, handlers map[string]http.HandlerFunc) *Engine {
	t.Helper()

	mux := http.NewServeMux()
	for path, handler := range handlers {
		mux.HandleFunc(path, handler)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewEngine(server.URL, 5*time.Second)
}

func jsonResponse(payload any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func TestAnalyzeValidResponse(t *testing.T) {
	engine := engineServer(t, map[string]http.HandlerFunc{
		"/v1/analyze": jsonResponse(map[string]any{
			"transcript_id": "tr-1",
			"intent":        "payment_relief",
			"summary":       "borrower asked for a deferral",
			"risk_scores": map[string]float64{
				"delinquency": 0.8,
				"churn":       0.1,
				"compliance":  0.0,
			},
		}),
	})

	analysis, err := engine.Analyze(t.Context(), &models.Transcript{ID: "tr-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.ID)
	assert.Equal(t, "tr-1", analysis.TranscriptID)
	assert.Equal(t, "payment_relief", analysis.Intent)
	assert.InDelta(t, 0.8, analysis.RiskScores.Delinquency, 0.0001)
}

func TestAnalyzeRejectsSchemaViolation(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{
			name: "missing risk_scores",
			payload: map[string]any{
				"transcript_id": "tr-1",
				"intent":        "x",
				"summary":       "y",
			},
		},
		{
			name: "score out of range",
			payload: map[string]any{
				"transcript_id": "tr-1",
				"intent":        "x",
				"summary":       "y",
				"risk_scores": map[string]float64{
					"delinquency": 1.4,
					"churn":       0.1,
					"compliance":  0.0,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := engineServer(t, map[string]http.HandlerFunc{
				"/v1/analyze": jsonResponse(tt.payload),
			})

			_, err := engine.Analyze(t.Context(), &models.Transcript{ID: "tr-1"})
			require.Error(t, err)
			assert.True(t, engines.IsStageFailure(err))
		})
	}
}

func TestAnalyzeNonOKStatusIsStageFailure(t *testing.T) {
	engine := engineServer(t, map[string]http.HandlerFunc{
		"/v1/analyze": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
		},
	})

	_, err := engine.Analyze(t.Context(), &models.Transcript{ID: "tr-1"})
	require.Error(t, err)
	assert.True(t, engines.IsStageFailure(err))
	assert.Contains(t, err.Error(), "503")
}

func TestExtractWorkflowsAssignsLineage(t *testing.T) {
	engine := engineServer(t, map[string]http.HandlerFunc{
		"/v1/workflows": jsonResponse(map[string]any{
			"workflows": []map[string]any{
				{
					"workflow_type": "SUPERVISOR",
					"title":         "Compliance review",
					"action_items": []map[string]any{
						{"description": "Open compliance case", "tool": "compliance"},
					},
				},
			},
		}),
	})

	plan := &models.Plan{
		ID:           "plan-1",
		AnalysisID:   "an-1",
		TranscriptID: "tr-1",
		RiskLevel:    models.RiskHigh,
	}

	workflows, err := engine.ExtractWorkflows(t.Context(), plan)
	require.NoError(t, err)
	require.Len(t, workflows, 1)

	workflow := workflows[0]
	assert.NotEmpty(t, workflow.ID)
	assert.Equal(t, "plan-1", workflow.PlanID)
	assert.Equal(t, "an-1", workflow.AnalysisID)
	assert.Equal(t, "tr-1", workflow.TranscriptID)
	assert.Equal(t, models.RiskHigh, workflow.RiskLevel)
	assert.Equal(t, models.WorkflowPendingAssessment, workflow.Status)
}

func TestClassifyRejectsUnknownRiskLevel(t *testing.T) {
	engine := engineServer(t, map[string]http.HandlerFunc{
		"/v1/classify": jsonResponse(map[string]any{
			"risk_level":     "CRITICAL",
			"approval_route": "SUPERVISOR_QUEUE",
		}),
	})

	_, _, err := engine.Classify(t.Context(), &models.Analysis{ID: "an-1"})
	require.Error(t, err)
	assert.True(t, engines.IsStageFailure(err))
}

func TestClassifyValidResponse(t *testing.T) {
	engine := engineServer(t, map[string]http.HandlerFunc{
		"/v1/classify": jsonResponse(map[string]any{
			"risk_level":     "MEDIUM",
			"approval_route": "ADVISOR_QUEUE",
		}),
	})

	level, route, err := engine.Classify(t.Context(), &models.Analysis{ID: "an-1"})
	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, level)
	assert.Equal(t, "ADVISOR_QUEUE", route)
}
