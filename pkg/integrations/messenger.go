package integrations

import (
	"context"
	"net/http"
	"strings"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

// HTTPMessenger delivers outbound messages through a carrier HTTP API. The
// dedup key travels in an idempotency header so retried sends collapse into
// one delivery on carriers that support it.
type HTTPMessenger struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPMessenger(baseURL, apiKey string) *HTTPMessenger {
	return &HTTPMessenger{
		client:  newClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (m *HTTPMessenger) Send(ctx context.Context, message protocol.OutboundMessage) (string, error) {
	payload := map[string]any{
		"business_id": message.BusinessID,
		"from":        message.From,
		"to":          message.To,
		"body":        message.Body,
	}

	var response struct {
		ID string `json:"id"`
	}

	headers := map[string]string{}
	if message.DedupKey != "" {
		headers["Idempotency-Key"] = message.DedupKey
	}

	err := postJSON(ctx, m.client, m.baseURL+"/v1/messages", m.apiKey, payload, &response, headers)
	if err != nil {
		return "", err
	}

	return response.ID, nil
}
