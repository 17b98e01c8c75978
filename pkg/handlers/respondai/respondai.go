// Package respondai implements the respond-ai node: it asks the AI-completion
// collaborator for a reply to the customer message.
package respondai

import (
	"context"
	"fmt"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/template"
)

const defaultOutputKey = "reply"

type Handler struct {
	id        string
	client    protocol.AIClient
	prompt    string
	outputKey string
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeRespondAI }

func (h *Handler) Execute(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	prompt := h.prompt
	if prompt == "" && state.Message != nil {
		prompt = state.Message.Body
	}

	rendered, err := template.RenderString(prompt, state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render prompt: %w", err))
	}

	reply, err := h.client.Complete(ctx, protocol.AICompletionRequest{
		BusinessID:      state.BusinessID,
		Model:           state.Config.AI.Model,
		Tone:            state.Config.AI.Tone,
		BusinessContext: state.Config.AI.BusinessContext,
		Prompt:          rendered,
		MaxTokens:       state.Config.AI.MaxTokens,
		Temperature:     state.Config.AI.Temperature,
	})
	if err != nil {
		// Completion errors get the retry budget unless already classified.
		return nil, fmt.Errorf("ai completion failed: %w", err)
	}

	return &protocol.HandlerResult{
		Outcome: protocol.OutcomeNext,
		Output:  map[string]any{h.outputKey: reply},
	}, nil
}
