package sendmessage

import (
	"context"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type Factory struct {
	messenger protocol.Messenger
}

func NewFactory(messenger protocol.Messenger) *Factory {
	return &Factory{messenger: messenger}
}

func (f *Factory) Create(_ context.Context, id string, params map[string]any) (protocol.Handler, error) {
	body, _ := params["body"].(string)
	if body == "" {
		body = defaultBody
	}

	to, _ := params["to"].(string)

	return &Handler{
		id:        id,
		messenger: f.messenger,
		body:      body,
		to:        to,
	}, nil
}

func (f *Factory) ID() string   { return models.NodeTypeSendMessage }
func (f *Factory) Name() string { return "Send Message" }

func (f *Factory) Description() string {
	return "Delivers a reply to the customer through the messaging carrier"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"body": map[string]any{
				"type":        "string",
				"description": "Message body template; defaults to the reply variable",
			},
			"to": map[string]any{
				"type":        "string",
				"description": "Destination; defaults to the inbound message contact",
			},
			"optional":    map[string]any{"type": "boolean"},
			"max_retries": map[string]any{"type": "number", "minimum": 0},
		},
		"additionalProperties": true,
	}
}
