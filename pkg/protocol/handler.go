// Package protocol defines the interfaces and contracts for pluggable node
// action handlers and the external collaborators they depend on.
package protocol

import (
	"context"

	"github.com/threadlinehq/threadline/pkg/models"
)

// Well-known outcome labels. The executor follows the outgoing edge whose
// source handle matches the label a handler returns.
const (
	OutcomeNext    = "next"
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// ExecutionState is the read-only view of an execution a handler receives.
// Variables is a snapshot; handlers return output through HandlerResult and
// never mutate execution state directly.
type ExecutionState struct {
	ExecutionID string
	WorkflowID  string
	BusinessID  string
	Variables   map[string]any
	Message     *models.Message
	Config      models.WorkflowConfig
}

// HandlerResult is the successful outcome of one node invocation.
type HandlerResult struct {
	Outcome string
	Output  map[string]any
}

// Handler executes a single node action.
type Handler interface {
	// ID returns the node instance id this handler was created for.
	ID() string

	// Type returns the node type tag.
	Type() string

	// Execute runs the action against the given execution state.
	Execute(ctx context.Context, state ExecutionState) (*HandlerResult, error)
}

// HandlerFactory creates handler instances and provides metadata about the
// node type.
type HandlerFactory interface {
	// Create creates a new handler instance with the given node parameters.
	Create(ctx context.Context, id string, params map[string]any) (Handler, error)

	// ID returns the unique node type tag for this handler type.
	ID() string

	// Name returns the human-readable name for this handler type.
	Name() string

	// Description returns a description of what this handler does.
	Description() string

	// Schema returns the JSON schema for the node's parameters.
	Schema() map[string]any
}
