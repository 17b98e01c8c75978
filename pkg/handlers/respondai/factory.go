package respondai

import (
	"context"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type Factory struct {
	client protocol.AIClient
}

func NewFactory(client protocol.AIClient) *Factory {
	return &Factory{client: client}
}

func (f *Factory) Create(_ context.Context, id string, params map[string]any) (protocol.Handler, error) {
	prompt, _ := params["prompt"].(string)

	outputKey, _ := params["output_key"].(string)
	if outputKey == "" {
		outputKey = defaultOutputKey
	}

	return &Handler{
		id:        id,
		client:    f.client,
		prompt:    prompt,
		outputKey: outputKey,
	}, nil
}

func (f *Factory) ID() string   { return models.NodeTypeRespondAI }
func (f *Factory) Name() string { return "Respond with AI" }

func (f *Factory) Description() string {
	return "Generates a reply to the customer message using the configured AI model"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Prompt template; defaults to the inbound message body",
			},
			"output_key": map[string]any{
				"type":        "string",
				"description": "Variable the reply is stored under (default: reply)",
			},
			"optional":    map[string]any{"type": "boolean"},
			"max_retries": map[string]any{"type": "number", "minimum": 0},
		},
		"additionalProperties": true,
	}
}
