// Package workflow implements workflow graph validation and the graph
// execution engine.
package workflow

import (
	"errors"
	"fmt"
)

// Graph configuration errors. All of them are raised at save/validate time,
// never during execution.
var (
	ErrNoNodes            = errors.New("workflow has no nodes")
	ErrDuplicateNodeID    = errors.New("duplicate node id")
	ErrUnknownNodeType    = errors.New("unknown node type")
	ErrDanglingEdge       = errors.New("edge references undeclared node")
	ErrMissingEntryNode   = errors.New("workflow has no entry node")
	ErrAmbiguousEntryNode = errors.New("workflow has more than one entry node")
	ErrCyclicGraph        = errors.New("workflow graph contains a cycle")
	ErrAmbiguousEdges     = errors.New("multiple outgoing edges require handles")
)

// ValidationError wraps a graph configuration error with workflow context.
type ValidationError struct {
	WorkflowID string
	Detail     string
	Err        error
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("workflow %s is invalid: %v (%s)", e.WorkflowID, e.Err, e.Detail)
	}

	return fmt.Sprintf("workflow %s is invalid: %v", e.WorkflowID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError reports whether err is a workflow configuration error.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}
