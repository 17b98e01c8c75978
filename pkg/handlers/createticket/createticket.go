// Package createticket implements the create-ticket node: it files a support
// ticket with the ticketing collaborator.
package createticket

import (
	"context"
	"errors"
	"fmt"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/template"
)

type Handler struct {
	id       string
	ticketer protocol.Ticketer
	subject  string
	body     string
	priority string
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeCreateTicket }

func (h *Handler) Execute(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	subject, err := template.RenderString(h.subject, state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render subject: %w", err))
	}

	body := h.body
	if body == "" && state.Message != nil {
		body = state.Message.Body
	}

	renderedBody, err := template.RenderString(body, state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render body: %w", err))
	}

	conversationID := ""
	if state.Message != nil {
		conversationID = state.Message.ConversationID
	}

	ticketID, err := h.ticketer.CreateTicket(ctx, protocol.TicketRequest{
		BusinessID:     state.BusinessID,
		ConversationID: conversationID,
		Subject:        subject,
		Body:           renderedBody,
		Priority:       h.priority,
		// Carrier-side dedup so a retried attempt never files twice.
		DedupKey: state.ExecutionID + ":" + h.id,
	})
	if err != nil {
		if errors.Is(err, protocol.ErrTicketingUnavailable) {
			// No ticketing configured: retrying will not conjure one up.
			return nil, protocol.NewPermanentError(err)
		}

		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	return &protocol.HandlerResult{
		Outcome: protocol.OutcomeNext,
		Output:  map[string]any{"ticket_id": ticketID},
	}, nil
}
