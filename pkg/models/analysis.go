package models

import "time"

// RiskScores holds the per-dimension scores produced by the analysis engine.
// Scores are normalized to [0, 1].
type RiskScores struct {
	Delinquency float64 `json:"delinquency"`
	Churn       float64 `json:"churn"`
	Compliance  float64 `json:"compliance"`
}

// Max returns the highest of the three dimension scores.
func (s RiskScores) Max() float64 {
	max := s.Delinquency
	if s.Churn > max {
		max = s.Churn
	}

	if s.Compliance > max {
		max = s.Compliance
	}

	return max
}

// Analysis is the structured output of the Analyze stage for one transcript.
// One analysis per transcript per run; immutable after creation.
type Analysis struct {
	ID           string     `json:"id"`
	TranscriptID string     `json:"transcript_id"`
	Intent       string     `json:"intent"`
	Summary      string     `json:"summary"`
	RiskScores   RiskScores `json:"risk_scores"`
	CreatedAt    time.Time  `json:"created_at"`
}
