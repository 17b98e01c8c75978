package registry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

type fakeHandler struct {
	id string
}

func (h *fakeHandler) ID() string   { return h.id }
func (h *fakeHandler) Type() string { return "fake_action" }

func (h *fakeHandler) Execute(_ context.Context, _ protocol.ExecutionState) (*protocol.HandlerResult, error) {
	return &protocol.HandlerResult{Outcome: protocol.OutcomeNext}, nil
}

type fakeFactory struct{}

func (f *fakeFactory) ID() string          { return "fake_action" }
func (f *fakeFactory) Name() string        { return "Fake Action" }
func (f *fakeFactory) Description() string { return "Test-only action" }

func (f *fakeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"target": map[string]any{"type": "string"},
			"limit":  map[string]any{"type": "number"},
		},
		"required": []any{"target"},
	}
}

func (f *fakeFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Handler, error) {
	return &fakeHandler{id: id}, nil
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	reg := NewRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
	reg.Register(&fakeFactory{})

	return reg
}

func TestRegistryKnownTypes(t *testing.T) {
	reg := testRegistry(t)

	assert.True(t, reg.IsKnownType("fake_action"))
	assert.False(t, reg.IsKnownType("missing_action"))
	assert.Equal(t, []string{"fake_action"}, reg.KnownTypes())
}

func TestCreateHandler(t *testing.T) {
	reg := testRegistry(t)

	handler, err := reg.CreateHandler(context.Background(), "fake_action", "node-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "node-1", handler.ID())
	assert.Equal(t, "fake_action", handler.Type())
}

func TestCreateHandlerUnknownType(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.CreateHandler(context.Background(), "missing_action", "node-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestValidateParams(t *testing.T) {
	reg := testRegistry(t)

	err := reg.ValidateParams("fake_action", map[string]any{"target": "somewhere", "limit": 5})
	assert.NoError(t, err)
}

func TestValidateParamsRejectsMissingRequired(t *testing.T) {
	reg := testRegistry(t)

	err := reg.ValidateParams("fake_action", map[string]any{"limit": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params for node type 'fake_action'")
}

func TestValidateParamsRejectsWrongType(t *testing.T) {
	reg := testRegistry(t)

	err := reg.ValidateParams("fake_action", map[string]any{"target": "somewhere", "limit": "five"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid params")
}

func TestValidateParamsUnknownType(t *testing.T) {
	reg := testRegistry(t)

	err := reg.ValidateParams("missing_action", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
