// Package branch implements the branch node: it renders a value against the
// execution state and maps it to an outcome label, steering edge selection.
package branch

import (
	"context"
	"fmt"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/template"
)

type Handler struct {
	id           string
	value        string
	cases        map[string]string
	defaultLabel string
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeBranch }

func (h *Handler) Execute(_ context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	rendered, err := template.RenderString(h.value, state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render branch value: %w", err))
	}

	outcome, ok := h.cases[rendered]
	if !ok {
		outcome = h.defaultLabel
	}

	return &protocol.HandlerResult{
		Outcome: outcome,
		Output:  map[string]any{"branch_value": rendered},
	}, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, id string, params map[string]any) (protocol.Handler, error) {
	value, _ := params["value"].(string)

	cases := make(map[string]string)
	if raw, ok := params["cases"].(map[string]any); ok {
		for key, label := range raw {
			if s, ok := label.(string); ok {
				cases[key] = s
			}
		}
	}

	defaultLabel, _ := params["default"].(string)
	if defaultLabel == "" {
		defaultLabel = "default"
	}

	return &Handler{
		id:           id,
		value:        value,
		cases:        cases,
		defaultLabel: defaultLabel,
	}, nil
}

func (f *Factory) ID() string   { return models.NodeTypeBranch }
func (f *Factory) Name() string { return "Branch" }

func (f *Factory) Description() string {
	return "Routes the execution along the edge matching a computed value"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"value"},
		"properties": map[string]any{
			"value": map[string]any{"type": "string"},
			"cases": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"default":  map[string]any{"type": "string"},
			"optional": map[string]any{"type": "boolean"},
		},
		"additionalProperties": true,
	}
}
