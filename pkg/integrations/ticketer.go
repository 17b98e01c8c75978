package integrations

import (
	"context"
	"net/http"
	"strings"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

// HTTPTicketer files tickets with a ticketing HTTP API. Use
// protocol.UnavailableTicketer when no provider is configured.
type HTTPTicketer struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPTicketer(baseURL, apiKey string) *HTTPTicketer {
	return &HTTPTicketer{
		client:  newClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (t *HTTPTicketer) CreateTicket(ctx context.Context, req protocol.TicketRequest) (string, error) {
	payload := map[string]any{
		"business_id":     req.BusinessID,
		"conversation_id": req.ConversationID,
		"subject":         req.Subject,
		"body":            req.Body,
		"priority":        req.Priority,
	}

	var response struct {
		ID string `json:"id"`
	}

	headers := map[string]string{}
	if req.DedupKey != "" {
		headers["Idempotency-Key"] = req.DedupKey
	}

	err := postJSON(ctx, t.client, t.baseURL+"/v1/tickets", t.apiKey, payload, &response, headers)
	if err != nil {
		return "", err
	}

	return response.ID, nil
}
