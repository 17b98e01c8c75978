package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/threadlinehq/threadline/pkg/eventbus"
	"github.com/threadlinehq/threadline/pkg/events"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

const notifyTimeout = 10 * time.Second

// LogSink writes alerts to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("module", "alerts")}
}

func (s *LogSink) Notify(ctx context.Context, alert protocol.Alert) error {
	s.logger.WarnContext(ctx, "Alert raised",
		"business_id", alert.BusinessID,
		"workflow_id", alert.WorkflowID,
		"metric", alert.Metric,
		"value", alert.Value,
		"threshold", alert.Threshold,
	)

	return nil
}

// EventBusSink publishes alerts onto the event stream so external consumers
// can react to them.
type EventBusSink struct {
	publisher eventbus.EventPublisher
}

func NewEventBusSink(publisher eventbus.EventPublisher) *EventBusSink {
	return &EventBusSink{publisher: publisher}
}

func (s *EventBusSink) Notify(ctx context.Context, alert protocol.Alert) error {
	event := &events.AlertRaised{
		BaseEvent: events.NewBaseEvent(events.AlertRaisedEvent, alert.BusinessID),
		Alert:     alert,
	}
	event.WorkflowID = alert.WorkflowID

	return s.publisher.Publish(ctx, alert.BusinessID, event)
}

// WebhookSink POSTs alerts to a business-configured notification endpoint.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{Timeout: notifyTimeout}
	}

	return &WebhookSink{url: url, client: client}
}

func (s *WebhookSink) Notify(ctx context.Context, alert protocol.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}

	return nil
}
