package protocol

import (
	"context"
	"errors"
	"time"
)

// AICompletionRequest asks the AI-completion collaborator for a reply to a
// customer message, shaped by the business tone and context configuration.
type AICompletionRequest struct {
	BusinessID      string
	Model           string
	Tone            string
	BusinessContext string
	Prompt          string
	MaxTokens       int
	Temperature     float64
}

// AIClient is the AI-completion collaborator.
type AIClient interface {
	Complete(ctx context.Context, req AICompletionRequest) (string, error)
}

// OutboundMessage is a reply to be delivered through the messaging collaborator.
type OutboundMessage struct {
	BusinessID string
	From       string
	To         string
	Body       string
	// DedupKey lets carriers that support deduplication make delivery
	// idempotent under retry. Carriers without it give at-least-once delivery.
	DedupKey string
}

// Messenger is the messaging-carrier collaborator. Send returns the
// carrier-assigned delivery id.
type Messenger interface {
	Send(ctx context.Context, message OutboundMessage) (string, error)
}

// TicketRequest files a support ticket with the ticketing collaborator.
type TicketRequest struct {
	BusinessID     string
	ConversationID string
	Subject        string
	Body           string
	Priority       string
	DedupKey       string
}

// ErrTicketingUnavailable indicates the ticketing collaborator is not
// configured or not reachable. Callers must be able to distinguish "ticket
// created" from "ticketing unavailable"; fabricating success is not allowed.
var ErrTicketingUnavailable = errors.New("ticketing unavailable")

// Ticketer is the ticketing collaborator. CreateTicket returns the ticket id.
type Ticketer interface {
	CreateTicket(ctx context.Context, req TicketRequest) (string, error)
}

// UnavailableTicketer is the explicit "no ticketing configured" variant.
type UnavailableTicketer struct{}

func (UnavailableTicketer) CreateTicket(_ context.Context, _ TicketRequest) (string, error) {
	return "", ErrTicketingUnavailable
}

// Alert is a threshold breach raised by the monitoring component.
type Alert struct {
	BusinessID string         `json:"business_id"`
	WorkflowID string         `json:"workflow_id"`
	Metric     string         `json:"metric"`
	Value      float64        `json:"value"`
	Threshold  float64        `json:"threshold"`
	RaisedAt   time.Time      `json:"raised_at"`
	Details    map[string]any `json:"details,omitempty"`
}

// NotificationSink receives alert events. Sink failures must never affect the
// workflow execution result already computed.
type NotificationSink interface {
	Notify(ctx context.Context, alert Alert) error
}

// Locker serializes work per key. Acquire blocks until the lock for the key
// is held and returns the release function.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}
