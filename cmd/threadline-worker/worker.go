// Package main provides the event-driven Threadline worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/threadlinehq/threadline/pkg/eventbus"
	"github.com/threadlinehq/threadline/pkg/events"
	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/processor"
)

// Worker consumes message.received events from the bus and runs each message
// through the processing pipeline.
type Worker struct {
	id       string
	eventBus eventbus.EventBus
	proc     *processor.Processor
	logger   *slog.Logger
}

func NewWorker(id string, eventBus eventbus.EventBus, proc *processor.Processor, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		eventBus: eventBus,
		proc:     proc,
		logger:   logger,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	err := w.eventBus.Handle(events.MessageReceivedEvent, w.handleMessageReceived)
	if err != nil {
		return fmt.Errorf("failed to register event handler: %w", err)
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started, waiting for messages")

	<-ctx.Done()

	w.logger.InfoContext(ctx, "Worker shutting down")

	return nil
}

func (w *Worker) handleMessageReceived(ctx context.Context, event any) error {
	received, ok := event.(*events.MessageReceived)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	receivedAt := received.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	message := &models.Message{
		ID:                "msg-" + uuid.New().String(),
		BusinessID:        received.BusinessID,
		PhoneNumber:       received.From,
		Email:             received.Email,
		Body:              received.Body,
		ProviderMessageID: received.ProviderMessageID,
		ReceivedAt:        receivedAt,
		Metadata:          received.Metadata,
	}

	result, err := w.proc.Process(ctx, message, received.ThreadHint)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to process message",
			"message_id", message.ID,
			"business_id", message.BusinessID,
			"error", err,
		)

		// Returning the error nacks the event so the bus redelivers it.
		return err
	}

	w.logger.InfoContext(ctx, "Processed message",
		"message_id", message.ID,
		"business_id", message.BusinessID,
		"outcome", result.Outcome,
		"execution_id", result.ExecutionID,
	)

	return nil
}
