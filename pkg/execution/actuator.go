// Package execution turns approved workflows into tracked, per-step action
// execution against registered actuators.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/tricall/pkg/models"
)

// Actuator performs the side effect for one execution step. Implementations
// must be safe for concurrent use; the tracker never serializes calls across
// workflows.
type Actuator interface {
	Execute(ctx context.Context, step *models.ExecutionStep) (map[string]any, error)
}

// ActuatorFunc adapts a function to the Actuator interface.
type ActuatorFunc func(ctx context.Context, step *models.ExecutionStep) (map[string]any, error)

func (f ActuatorFunc) Execute(ctx context.Context, step *models.ExecutionStep) (map[string]any, error) {
	return f(ctx, step)
}

// Registry maps tool names to actuators.
type Registry struct {
	mu        sync.RWMutex
	actuators map[string]Actuator
}

func NewRegistry() *Registry {
	return &Registry{actuators: make(map[string]Actuator)}
}

func (r *Registry) Register(tool string, actuator Actuator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.actuators[tool] = actuator
}

// Resolve returns the actuator for a tool, or an error when none is registered.
func (r *Registry) Resolve(tool string) (Actuator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actuator, ok := r.actuators[tool]
	if !ok {
		return nil, fmt.Errorf("no actuator registered for tool %q", tool)
	}

	return actuator, nil
}

// Tools returns the registered tool names.
func (r *Registry) Tools() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]string, 0, len(r.actuators))
	for tool := range r.actuators {
		tools = append(tools, tool)
	}

	return tools
}

// LogActuator records the action without performing any external side effect.
// It backs every tool in development deployments.
type LogActuator struct {
	tool   string
	logger *slog.Logger
}

func NewLogActuator(tool string, logger *slog.Logger) *LogActuator {
	return &LogActuator{tool: tool, logger: logger.With("module", "actuator", "tool", tool)}
}

func (a *LogActuator) Execute(ctx context.Context, step *models.ExecutionStep) (map[string]any, error) {
	a.logger.InfoContext(ctx, "Executing action", "step_number", step.StepNumber, "action", step.Action)

	return map[string]any{
		"tool":        a.tool,
		"action":      step.Action,
		"executed_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// DefaultRegistry registers a log-only actuator for every tool the planners
// emit.
func DefaultRegistry(logger *slog.Logger) *Registry {
	registry := NewRegistry()

	for _, tool := range []string{"email", "crm", "document", "compliance", "servicing"} {
		registry.Register(tool, NewLogActuator(tool, logger))
	}

	return registry
}
