// Package delay implements the delay node: it pauses the branch for a
// configured duration, respecting cancellation.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type Handler struct {
	id       string
	duration time.Duration
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeDelay }

func (h *Handler) Execute(ctx context.Context, _ protocol.ExecutionState) (*protocol.HandlerResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(h.duration):
	}

	return &protocol.HandlerResult{Outcome: protocol.OutcomeNext}, nil
}

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(_ context.Context, id string, params map[string]any) (protocol.Handler, error) {
	duration, err := parseDuration(params["duration"])
	if err != nil {
		return nil, err
	}

	return &Handler{id: id, duration: duration}, nil
}

func parseDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid delay duration %q: %w", v, err)
		}

		return d, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("delay requires a duration")
	}
}

func (f *Factory) ID() string   { return models.NodeTypeDelay }
func (f *Factory) Name() string { return "Delay" }

func (f *Factory) Description() string {
	return "Pauses the branch for a fixed duration"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"duration"},
		"properties": map[string]any{
			"duration": map[string]any{
				"description": "Go duration string (\"5s\") or seconds as a number",
			},
			"optional": map[string]any{"type": "boolean"},
		},
		"additionalProperties": true,
	}
}
