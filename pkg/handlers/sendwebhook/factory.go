package sendwebhook

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/threadlinehq/threadline/pkg/models"
	"github.com/threadlinehq/threadline/pkg/protocol"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = time.Second
)

type Factory struct {
	client *http.Client
}

func NewFactory() *Factory {
	return &Factory{client: &http.Client{Timeout: requestTimeout}}
}

func (f *Factory) Create(_ context.Context, id string, params map[string]any) (protocol.Handler, error) {
	url, _ := params["url"].(string)

	method, _ := params["method"].(string)
	if method == "" {
		method = http.MethodPost
	}

	payload, _ := params["payload"].(string)

	return &Handler{
		id:      id,
		client:  f.client,
		url:     url,
		method:  strings.ToUpper(method),
		payload: payload,
		retry:   parseRetry(params),
	}, nil
}

func parseRetry(params map[string]any) RetryConfig {
	retry := RetryConfig{Attempts: defaultRetryAttempts, Delay: defaultRetryDelay}

	retryParams, ok := params["retry"].(map[string]any)
	if !ok {
		return retry
	}

	if attempts, ok := asNumber(retryParams["attempts"]); ok && attempts >= 1 {
		retry.Attempts = int(attempts)
	}

	if delay, ok := asNumber(retryParams["delay"]); ok && delay >= 0 {
		retry.Delay = time.Duration(delay * float64(time.Second))
	}

	return retry
}

// asNumber accepts the float64 JSON decoding produces as well as plain ints
// from in-process callers.
func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (f *Factory) ID() string   { return models.NodeTypeSendWebhook }
func (f *Factory) Name() string { return "Send Webhook" }

func (f *Factory) Description() string {
	return "Sends execution data to an HTTP endpoint"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []string{"url"},
		"properties": map[string]any{
			"url": map[string]any{"type": "string"},
			"method": map[string]any{
				"type": "string",
				"enum": []string{"POST", "PUT", "PATCH"},
			},
			"payload": map[string]any{
				"type":        "string",
				"description": "Payload template; defaults to an execution summary document",
			},
			"retry": map[string]any{
				"type":        "object",
				"description": "Delivery retry budget, independent of the node retry budget",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "number", "minimum": 1},
					"delay":    map[string]any{"type": "number", "minimum": 0},
				},
			},
			"optional":    map[string]any{"type": "boolean"},
			"max_retries": map[string]any{"type": "number", "minimum": 0},
		},
		"additionalProperties": true,
	}
}
