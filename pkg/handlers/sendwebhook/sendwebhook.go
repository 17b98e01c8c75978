// Package sendwebhook implements the send-webhook node: it POSTs execution
// data to a business-owned HTTP endpoint.
package sendwebhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
	"github.com/threadlinehq/threadline/pkg/template"
)

const requestTimeout = 10 * time.Second

// RetryConfig is the handler's own delivery retry budget, separate from the
// node retry budget the executor applies. Network failures and 5xx responses
// are retried in place; only an exhausted budget surfaces to the executor.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

type Handler struct {
	id      string
	client  *http.Client
	url     string
	method  string
	payload string
	retry   RetryConfig
}

func (h *Handler) ID() string   { return h.id }
func (h *Handler) Type() string { return models.NodeTypeSendWebhook }

func (h *Handler) Execute(ctx context.Context, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	url, err := template.RenderString(h.url, state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render url: %w", err))
	}

	body, err := h.renderPayload(state)
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to render payload: %w", err))
	}

	var lastErr error

	for attempt := 1; attempt <= h.retry.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, protocol.NewTransientError(fmt.Errorf("webhook delivery interrupted: %w", lastErr))
			case <-time.After(h.retry.Delay):
			}
		}

		result, err := h.deliver(ctx, url, body, state)
		if err == nil {
			return result, nil
		}

		if protocol.IsPermanent(err) {
			return nil, err
		}

		lastErr = err
	}

	return nil, protocol.NewTransientError(fmt.Errorf("webhook delivery failed after %d attempts: %w", h.retry.Attempts, lastErr))
}

// deliver performs a single request. Network failures and 5xx responses come
// back transient, other non-2xx responses permanent.
func (h *Handler) deliver(ctx context.Context, url string, body []byte, state protocol.ExecutionState) (*protocol.HandlerResult, error) {
	req, err := http.NewRequestWithContext(ctx, h.method, url, bytes.NewReader(body))
	if err != nil {
		return nil, protocol.NewPermanentError(fmt.Errorf("failed to build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	for key, value := range state.Config.Webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, protocol.NewTransientError(fmt.Errorf("webhook request failed: %w", err))
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return &protocol.HandlerResult{
			Outcome: protocol.OutcomeNext,
			Output:  map[string]any{"webhook_status": resp.StatusCode},
		}, nil
	case resp.StatusCode >= 500:
		return nil, protocol.NewTransientError(fmt.Errorf("webhook returned %d", resp.StatusCode))
	default:
		return nil, protocol.NewPermanentError(fmt.Errorf("webhook returned %d", resp.StatusCode))
	}
}

// renderPayload renders the configured payload template, falling back to a
// default document describing the execution and message.
func (h *Handler) renderPayload(state protocol.ExecutionState) ([]byte, error) {
	if h.payload != "" {
		rendered, err := template.RenderState(h.payload, state)
		if err != nil {
			return nil, err
		}

		return json.Marshal(rendered)
	}

	payload := map[string]any{
		"execution_id": state.ExecutionID,
		"workflow_id":  state.WorkflowID,
		"business_id":  state.BusinessID,
		"variables":    state.Variables,
	}

	if state.Message != nil {
		payload["message"] = map[string]any{
			"id":              state.Message.ID,
			"body":            state.Message.Body,
			"contact":         state.Message.Contact(),
			"conversation_id": state.Message.ConversationID,
		}
	}

	return json.Marshal(payload)
}
