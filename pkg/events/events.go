// Package events defines event types for message intake, execution lifecycle
// and alerting notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

type EventType string

// Topic is the event stream all threadline events are published to.
const Topic = "threadline.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	MessageReceivedEvent EventType = "message.received"

	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	NodeCompletedEvent EventType = "node.completed"
	NodeFailedEvent    EventType = "node.failed"

	AlertRaisedEvent EventType = "alert.raised"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	BusinessID string         `json:"business_id"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, businessID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		BusinessID: businessID,
		Metadata:   make(map[string]any),
	}
}

// MessageReceived is published by the API when the carrier webhook delivers
// an inbound message; the worker consumes it and runs the pipeline.
type MessageReceived struct {
	BaseEvent

	From              string    `json:"from"`
	Email             string    `json:"email,omitempty"`
	To                string    `json:"to"`
	Body              string    `json:"body"`
	ReceivedAt        time.Time `json:"received_at"`
	ProviderMessageID string    `json:"provider_message_id"`
	ThreadHint        string    `json:"thread_hint,omitempty"`
}

func (e MessageReceived) GetType() EventType { return MessageReceivedEvent }

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	MessageID   string `json:"message_id"`
}

func (e ExecutionStarted) GetType() EventType { return ExecutionStartedEvent }

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID   string         `json:"execution_id"`
	DurationMs    int64          `json:"duration_ms"`
	NodesExecuted int            `json:"nodes_executed"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (e ExecutionCompleted) GetType() EventType { return ExecutionCompletedEvent }

type ExecutionFailed struct {
	BaseEvent

	ExecutionID   string `json:"execution_id"`
	DurationMs    int64  `json:"duration_ms"`
	NodesExecuted int    `json:"nodes_executed"`
	Error         string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType { return ExecutionFailedEvent }

type ExecutionCancelled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason"`
}

func (e ExecutionCancelled) GetType() EventType { return ExecutionCancelledEvent }

type NodeCompleted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Outcome     string         `json:"outcome"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"duration_ms"`
	RetryCount  int            `json:"retry_count"`
}

func (e NodeCompleted) GetType() EventType { return NodeCompletedEvent }

type NodeFailed struct {
	BaseEvent

	ExecutionID string                 `json:"execution_id"`
	NodeID      string                 `json:"node_id"`
	Status      models.ExecutionStatus `json:"status"`
	Error       string                 `json:"error"`
	RetryCount  int                    `json:"retry_count"`
}

func (e NodeFailed) GetType() EventType { return NodeFailedEvent }

type AlertRaised struct {
	BaseEvent

	Alert protocol.Alert `json:"alert"`
}

func (e AlertRaised) GetType() EventType { return AlertRaisedEvent }
