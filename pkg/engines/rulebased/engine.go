// Package rulebased provides a deterministic in-process engine. It stands in
// for the remote analysis service in development and tests; identical input
// always yields identical output.
package rulebased

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dukex/tricall/pkg/models"
	"github.com/google/uuid"
)

// Keyword weights per risk dimension. Matching is case-insensitive substring
// search over topic and content.
var (
	delinquencySignals = map[string]float64{
		"missed payment": 0.5,
		"late payment":   0.4,
		"hardship":       0.4,
		"job loss":       0.35,
		"deferral":       0.3,
		"default":        0.6,
	}
	churnSignals = map[string]float64{
		"cancel":      0.5,
		"competitor":  0.4,
		"refinance":   0.35,
		"frustrated":  0.3,
		"complaint":   0.3,
		"close my":    0.5,
	}
	complianceSignals = map[string]float64{
		"lawsuit":        0.7,
		"attorney":       0.6,
		"legal":          0.5,
		"discriminat":    0.8,
		"regulator":      0.6,
		"formal dispute": 0.5,
	}
)

var intentByKeyword = []struct {
	keyword string
	intent  string
}{
	{"deferral", "payment_relief"},
	{"hardship", "payment_relief"},
	{"refinance", "retention"},
	{"cancel", "retention"},
	{"complaint", "complaint_resolution"},
	{"dispute", "complaint_resolution"},
	{"payoff", "account_servicing"},
	{"balance", "account_servicing"},
}

const summaryLimit = 240

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Analyze(_ context.Context, transcript *models.Transcript) (*models.Analysis, error) {
	text := strings.ToLower(transcript.Topic + " " + transcript.Content)

	analysis := &models.Analysis{
		ID:           uuid.New().String(),
		TranscriptID: transcript.ID,
		Intent:       detectIntent(text),
		Summary:      summarize(transcript),
		RiskScores: models.RiskScores{
			Delinquency: score(text, delinquencySignals),
			Churn:       score(text, churnSignals),
			Compliance:  score(text, complianceSignals),
		},
		CreatedAt: time.Now().UTC(),
	}

	return analysis, nil
}

func (e *Engine) Plan(_ context.Context, analysis *models.Analysis) (*models.Plan, error) {
	plan := &models.Plan{
		ID:           uuid.New().String(),
		AnalysisID:   analysis.ID,
		TranscriptID: analysis.TranscriptID,
		QueueStatus:  models.PlanQueuePending,
		CreatedAt:    time.Now().UTC(),
	}

	plan.Borrower = borrowerPlan(analysis)
	plan.Advisor = advisorPlan(analysis)
	plan.Supervisor = supervisorPlan(analysis)
	plan.Leadership = leadershipPlan(analysis)

	return plan, nil
}

func (e *Engine) ExtractWorkflows(_ context.Context, plan *models.Plan) ([]*models.Workflow, error) {
	audiences := []models.WorkflowType{
		models.WorkflowTypeBorrower,
		models.WorkflowTypeAdvisor,
		models.WorkflowTypeSupervisor,
		models.WorkflowTypeLeadership,
	}

	workflows := make([]*models.Workflow, 0, len(audiences))

	for _, audience := range audiences {
		sub := plan.SubPlanFor(audience)
		if len(sub.ActionItems) == 0 {
			continue
		}

		workflows = append(workflows, &models.Workflow{
			ID:           uuid.New().String(),
			PlanID:       plan.ID,
			AnalysisID:   plan.AnalysisID,
			TranscriptID: plan.TranscriptID,
			Title:        sub.Summary,
			WorkflowType: audience,
			RiskLevel:    plan.RiskLevel,
			ActionItems:  sub.ActionItems,
			Status:       models.WorkflowPendingAssessment,
			CreatedAt:    time.Now().UTC(),
		})
	}

	return workflows, nil
}

// Classify thresholds the highest dimension score. The route recommendation
// names the queue a human reviewer would pick the plan up from.
func (e *Engine) Classify(_ context.Context, analysis *models.Analysis) (models.RiskLevel, string, error) {
	max := analysis.RiskScores.Max()

	switch {
	case max >= 0.7:
		return models.RiskHigh, "SUPERVISOR_QUEUE", nil
	case max >= 0.4:
		return models.RiskMedium, "ADVISOR_QUEUE", nil
	default:
		return models.RiskLow, "AUTO", nil
	}
}

func score(text string, signals map[string]float64) float64 {
	total := 0.0

	for keyword, weight := range signals {
		if strings.Contains(text, keyword) {
			total += weight
		}
	}

	if total > 1.0 {
		total = 1.0
	}

	return total
}

func detectIntent(text string) string {
	for _, entry := range intentByKeyword {
		if strings.Contains(text, entry.keyword) {
			return entry.intent
		}
	}

	return "general_inquiry"
}

func summarize(transcript *models.Transcript) string {
	summary := fmt.Sprintf("%s: %s", transcript.Topic, transcript.Content)
	if len(summary) <= summaryLimit {
		return summary
	}

	// Back off to a rune boundary so the cut never splits a character.
	cut := summaryLimit
	for cut > 0 && !utf8.RuneStart(summary[cut]) {
		cut--
	}

	return summary[:cut]
}

func borrowerPlan(analysis *models.Analysis) models.SubPlan {
	sub := models.SubPlan{Summary: "Borrower follow-up for " + analysis.Intent}

	sub.ActionItems = append(sub.ActionItems, models.ActionItem{
		Description: "Send follow-up summary of the call to the borrower",
		Tool:        "email",
	})

	if analysis.Intent == "payment_relief" {
		sub.ActionItems = append(sub.ActionItems, models.ActionItem{
			Description: "Send hardship assistance options document",
			Tool:        "document",
		})
	}

	return sub
}

func advisorPlan(analysis *models.Analysis) models.SubPlan {
	sub := models.SubPlan{Summary: "Advisor follow-up for " + analysis.Intent}

	sub.ActionItems = append(sub.ActionItems, models.ActionItem{
		Description: "Log call outcome and next contact date",
		Tool:        "crm",
	})

	if analysis.RiskScores.Churn >= 0.4 {
		sub.ActionItems = append(sub.ActionItems, models.ActionItem{
			Description: "Schedule retention outreach within 48 hours",
			Tool:        "crm",
		})
	}

	return sub
}

func supervisorPlan(analysis *models.Analysis) models.SubPlan {
	sub := models.SubPlan{Summary: "Supervisor review for " + analysis.Intent}

	if analysis.RiskScores.Compliance >= 0.4 {
		sub.ActionItems = append(sub.ActionItems, models.ActionItem{
			Description: "Open compliance review case for this interaction",
			Tool:        "compliance",
		})
	}

	if analysis.RiskScores.Delinquency >= 0.5 {
		sub.ActionItems = append(sub.ActionItems, models.ActionItem{
			Description: "Review account for loss-mitigation eligibility",
			Tool:        "servicing",
		})
	}

	return sub
}

func leadershipPlan(analysis *models.Analysis) models.SubPlan {
	sub := models.SubPlan{Summary: "Leadership visibility for " + analysis.Intent}

	if analysis.RiskScores.Max() >= 0.7 {
		sub.ActionItems = append(sub.ActionItems, models.ActionItem{
			Description: "Flag interaction in the weekly risk digest",
			Tool:        "document",
		})
	}

	return sub
}
