// Package models defines the core domain entities for the transcript decision pipeline.
package models

import "time"

// Transcript is a captured customer-service interaction. Immutable once created;
// it is the input to every pipeline run.
type Transcript struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id" validate:"required"`
	AdvisorID  string    `json:"advisor_id"  validate:"required"`
	Topic      string    `json:"topic"       validate:"required"`
	Content    string    `json:"content"     validate:"required"`
	CreatedAt  time.Time `json:"created_at"`
}
