package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/registry"
)

var structValidator = validator.New()

// Validate checks a workflow definition before it is saved. A workflow that
// passes validation can always be executed: every edge resolves, exactly one
// entry node exists, every node type has a registered handler with valid
// parameters and the graph is acyclic.
func Validate(workflow *models.Workflow, reg *registry.Registry) error {
	err := structValidator.Struct(workflow)
	if err != nil {
		return &ValidationError{WorkflowID: workflow.ID, Detail: err.Error(), Err: fmt.Errorf("struct validation failed")}
	}

	if len(workflow.Nodes) == 0 {
		return &ValidationError{WorkflowID: workflow.ID, Err: ErrNoNodes}
	}

	nodeIDs := make(map[string]struct{}, len(workflow.Nodes))

	for _, node := range workflow.Nodes {
		if _, exists := nodeIDs[node.ID]; exists {
			return &ValidationError{WorkflowID: workflow.ID, Detail: node.ID, Err: ErrDuplicateNodeID}
		}

		nodeIDs[node.ID] = struct{}{}

		if !reg.IsKnownType(node.Type) {
			return &ValidationError{WorkflowID: workflow.ID, Detail: node.Type, Err: ErrUnknownNodeType}
		}

		err := reg.ValidateParams(node.Type, node.Data)
		if err != nil {
			return &ValidationError{WorkflowID: workflow.ID, Detail: err.Error(), Err: ErrUnknownNodeType}
		}
	}

	incoming := make(map[string]int, len(workflow.Nodes))

	for _, edge := range workflow.Edges {
		if _, ok := nodeIDs[edge.Source]; !ok {
			return &ValidationError{WorkflowID: workflow.ID, Detail: edge.Source, Err: ErrDanglingEdge}
		}

		if _, ok := nodeIDs[edge.Target]; !ok {
			return &ValidationError{WorkflowID: workflow.ID, Detail: edge.Target, Err: ErrDanglingEdge}
		}

		incoming[edge.Target]++
	}

	err = validateHandles(workflow)
	if err != nil {
		return err
	}

	entry := ""

	for _, node := range workflow.Nodes {
		if incoming[node.ID] == 0 {
			if entry != "" {
				return &ValidationError{WorkflowID: workflow.ID, Detail: entry + ", " + node.ID, Err: ErrAmbiguousEntryNode}
			}

			entry = node.ID
		}
	}

	if entry == "" {
		return &ValidationError{WorkflowID: workflow.ID, Err: ErrMissingEntryNode}
	}

	err = validateAcyclic(workflow)
	if err != nil {
		return err
	}

	return nil
}

// EntryNode returns the single node with no incoming edges. Callers run
// Validate first; an invalid graph yields an error here too.
func EntryNode(workflow *models.Workflow) (*models.WorkflowNode, error) {
	incoming := make(map[string]int)
	for _, edge := range workflow.Edges {
		incoming[edge.Target]++
	}

	var entry *models.WorkflowNode

	for _, node := range workflow.Nodes {
		if incoming[node.ID] == 0 {
			if entry != nil {
				return nil, &ValidationError{WorkflowID: workflow.ID, Err: ErrAmbiguousEntryNode}
			}

			entry = node
		}
	}

	if entry == nil {
		return nil, &ValidationError{WorkflowID: workflow.ID, Err: ErrMissingEntryNode}
	}

	return entry, nil
}

// validateHandles rejects nodes whose outgoing edges cannot be selected
// unambiguously: a node may have one unlabeled edge, or several labeled ones.
// Several edges sharing a label is legal and fans out in parallel.
func validateHandles(workflow *models.Workflow) error {
	for _, node := range workflow.Nodes {
		outgoing := workflow.OutgoingEdges(node.ID)
		if len(outgoing) <= 1 {
			continue
		}

		for _, edge := range outgoing {
			if edge.SourceHandle == "" {
				return &ValidationError{WorkflowID: workflow.ID, Detail: node.ID, Err: ErrAmbiguousEdges}
			}
		}
	}

	return nil
}

// validateAcyclic runs a depth-first search with coloring; a back edge means
// a cycle. The executor assumes a DAG and never detects cycles at runtime.
func validateAcyclic(workflow *models.Workflow) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on stack
		black = 2 // done
	)

	colors := make(map[string]int, len(workflow.Nodes))

	adjacency := make(map[string][]string)
	for _, edge := range workflow.Edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	var visit func(id string) bool

	visit = func(id string) bool {
		colors[id] = gray

		for _, next := range adjacency[id] {
			switch colors[next] {
			case gray:
				return false
			case white:
				if !visit(next) {
					return false
				}
			}
		}

		colors[id] = black

		return true
	}

	for _, node := range workflow.Nodes {
		if colors[node.ID] == white {
			if !visit(node.ID) {
				return &ValidationError{WorkflowID: workflow.ID, Err: ErrCyclicGraph}
			}
		}
	}

	return nil
}
