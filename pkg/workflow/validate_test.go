package workflow

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/registry"
)

type stubHandler struct {
	id      string
	execute func(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error)
}

func (h *stubHandler) ID() string   { return h.id }
func (h *stubHandler) Type() string { return "stub" }

func (h *stubHandler) Execute(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	return h.execute(ctx, state)
}

type stubFactory struct {
	typeTag   string
	behaviors map[string]func(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error)
}

func (f *stubFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Handler, error) {
	execute, ok := f.behaviors[id]
	if !ok {
		execute = func(context.Context, protocol.ExecutionState) (*protocol.HandlerResult, error) {
			return &protocol.HandlerResult{Outcome: protocol.OutcomeNext}, nil
		}
	}

	return &stubHandler{id: id, execute: execute}, nil
}

func (f *stubFactory) ID() string          { return f.typeTag }
func (f *stubFactory) Name() string        { return f.typeTag }
func (f *stubFactory) Description() string { return "test stub" }
func (f *stubFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegistry(t *testing.T, behaviors map[string]func(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error)) *registry.Registry {
	t.Helper()

	reg := registry.NewRegistry(testLogger())
	reg.Register(&stubFactory{typeTag: "stub", behaviors: behaviors})

	return reg
}

func testWorkflow(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) *models.Workflow {
	return &models.Workflow{
		ID:         "wf-1",
		BusinessID: "biz-1",
		Name:       "order updates",
		Type:       models.WorkflowTypeSMS,
		Status:     models.WorkflowStatusActive,
		Nodes:      nodes,
		Edges:      edges,
	}
}

func node(id string) *models.WorkflowNode {
	return &models.WorkflowNode{ID: id, Type: "stub"}
}

func edge(source, target, handle string) *models.WorkflowEdge {
	return &models.WorkflowEdge{ID: source + "->" + target, Source: source, Target: target, SourceHandle: handle}
}

func TestValidateAcceptsLinearWorkflow(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("b"), node("c")},
		[]*models.WorkflowEdge{edge("a", "b", ""), edge("b", "c", "")},
	)

	require.NoError(t, Validate(workflow, reg))
}

func TestValidateRejectsEmptyGraph(t *testing.T) {
	reg := testRegistry(t, nil)
	workflow := testWorkflow(nil, nil)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoNodes)
}

func TestValidateRejectsDuplicateNodeIDs(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("a")},
		nil,
	)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
}

func TestValidateRejectsUnknownNodeType(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{{ID: "a", Type: "teleport"}},
		nil,
	)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownNodeType)
	assert.True(t, IsValidationError(err))
}

func TestValidateRejectsDanglingEdge(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a")},
		[]*models.WorkflowEdge{edge("a", "ghost", "")},
	)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDanglingEdge)
}

func TestValidateRejectsCycle(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("b"), node("c")},
		[]*models.WorkflowEdge{
			edge("a", "b", ""),
			edge("b", "c", "next"),
			edge("c", "b", "retry"),
		},
	)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCyclicGraph)
}

func TestValidateRejectsMultipleEntryNodes(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("b"), node("c")},
		[]*models.WorkflowEdge{edge("a", "c", "")},
	)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousEntryNode)
}

func TestValidateRejectsUnlabeledFanOut(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("b"), node("c")},
		[]*models.WorkflowEdge{edge("a", "b", "next"), edge("a", "c", "")},
	)

	err := Validate(workflow, reg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousEdges)
}

func TestValidateAllowsLabeledParallelFanOut(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("b"), node("c")},
		[]*models.WorkflowEdge{edge("a", "b", "next"), edge("a", "c", "next")},
	)

	require.NoError(t, Validate(workflow, reg))
}

func TestValidateRejectsMissingName(t *testing.T) {
	reg := testRegistry(t, nil)

	workflow := testWorkflow([]*models.WorkflowNode{node("a")}, nil)
	workflow.Name = ""

	require.Error(t, Validate(workflow, reg))
}

func TestEntryNodeFindsSingleRoot(t *testing.T) {
	workflow := testWorkflow(
		[]*models.WorkflowNode{node("a"), node("b")},
		[]*models.WorkflowEdge{edge("a", "b", "")},
	)

	entry, err := EntryNode(workflow)
	require.NoError(t, err)
	assert.Equal(t, "a", entry.ID)
}
