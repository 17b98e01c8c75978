package createticket

import (
	"context"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type Factory struct {
	ticketer protocol.Ticketer
}

// NewFactory wires the ticketing collaborator. Pass
// protocol.UnavailableTicketer when no provider is configured.
func NewFactory(ticketer protocol.Ticketer) *Factory {
	return &Factory{ticketer: ticketer}
}

func (f *Factory) Create(_ context.Context, id string, params map[string]any) (protocol.Handler, error) {
	subject, _ := params["subject"].(string)
	body, _ := params["body"].(string)

	priority, _ := params["priority"].(string)
	if priority == "" {
		priority = "normal"
	}

	return &Handler{
		id:       id,
		ticketer: f.ticketer,
		subject:  subject,
		body:     body,
		priority: priority,
	}, nil
}

func (f *Factory) ID() string   { return models.NodeTypeCreateTicket }
func (f *Factory) Name() string { return "Create Ticket" }

func (f *Factory) Description() string {
	return "Files a support ticket with the configured ticketing provider"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"subject"},
		"properties": map[string]any{
			"subject": map[string]any{"type": "string"},
			"body": map[string]any{
				"type":        "string",
				"description": "Ticket body template; defaults to the inbound message body",
			},
			"priority": map[string]any{
				"type": "string",
				"enum": []string{"low", "normal", "high", "urgent"},
			},
			"optional":    map[string]any{"type": "boolean"},
			"max_retries": map[string]any{"type": "number", "minimum": 0},
		},
		"additionalProperties": true,
	}
}
