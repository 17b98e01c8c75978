// Package end implements the end node, the explicit terminal of a branch.
package end

import (
	"context"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type Handler struct {
	id string
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeEnd }

func (h *Handler) Execute(_ context.Context, _ protocol.ExecutionState) (*protocol.HandlerResult, error) {
	return &protocol.HandlerResult{Outcome: protocol.OutcomeNext}, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, id string, _ map[string]any) (protocol.Handler, error) {
	return &Handler{id: id}, nil
}

func (f *Factory) ID() string   { return models.NodeTypeEnd }
func (f *Factory) Name() string { return "End" }

func (f *Factory) Description() string {
	return "Marks the end of a branch"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{"type": "object", "additionalProperties": true}
}
