// Package sendmessage implements the send-message node: it delivers a reply
// to the customer through the messaging collaborator, or inline when the
// workflow is configured for inline replies.
package sendmessage

import (
	"context"
	"fmt"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/template"
)

const defaultBody = "{{.variables.reply}}"

type Handler struct {
	id        string
	messenger protocol.Messenger
	body      string
	to        string
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeSendMessage }

func (h *Handler) Execute(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	body, err := template.RenderString(h.body, state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render message body: %w", err))
	}

	if body == "" {
		return nil, protocol.NewPermanentError(fmt.Errorf("message body rendered empty"))
	}

	if state.Config.Messaging.InlineReply {
		// The reply travels back in the webhook response document; nothing
		// goes through the carrier.
		return &protocol.HandlerResult{
			Outcome: protocol.OutcomeNext,
			Output: map[string]any{
				"reply_body": body,
				"inline":     true,
			},
		}, nil
	}

	to := h.to
	if to == "" && state.Message != nil {
		to = state.Message.Contact()
	}

	if to == "" {
		return nil, protocol.NewPermanentError(fmt.Errorf("no destination for outbound message"))
	}

	deliveryID, err := h.messenger.Send(ctx, protocol.OutboundMessage{
		BusinessID: state.BusinessID,
		From:       state.Config.Messaging.FromNumber,
		To:         to,
		Body:       body,
		DedupKey:   state.ExecutionID + ":" + h.id,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	return &protocol.HandlerResult{
		Outcome: protocol.OutcomeNext,
		Output: map[string]any{
			"reply_body":  body,
			"delivery_id": deliveryID,
		},
	}, nil
}
