// Package persistence provides standardized error types for storage operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTranscriptNotFound indicates a transcript was not found by the given identifier.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrAnalysisNotFound indicates an analysis was not found by the given identifier.
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrPlanNotFound indicates a plan was not found by the given identifier.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("run not found")
)

// StoreError wraps storage errors with the operation and entity context.
type StoreError struct {
	Op     string // Operation being performed (e.g., "GetByID", "Save", "Update")
	Entity string // Entity kind (e.g., "workflow", "run")
	ID     string // Entity ID if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new storage error with context.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Err: err}
}

// IsNotFound checks whether an error indicates any entity was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTranscriptNotFound) ||
		errors.Is(err, ErrAnalysisNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrRunNotFound)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsRunNotFound checks if an error indicates a run was not found.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsTranscriptNotFound checks if an error indicates a transcript was not found.
func IsTranscriptNotFound(err error) bool {
	return errors.Is(err, ErrTranscriptNotFound)
}
