package integrations

import (
	"context"
	"net/http"
	"strings"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

// HTTPAIClient talks to an AI completion service over HTTP.
type HTTPAIClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewHTTPAIClient(baseURL, apiKey string) *HTTPAIClient {
	return &HTTPAIClient{
		client:  newClient(),
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *HTTPAIClient) Complete(ctx context.Context, req protocol.AICompletionRequest) (string, error) {
	payload := map[string]any{
		"business_id":      req.BusinessID,
		"model":            req.Model,
		"tone":             req.Tone,
		"business_context": req.BusinessContext,
		"prompt":           req.Prompt,
		"max_tokens":       req.MaxTokens,
		"temperature":      req.Temperature,
	}

	var response struct {
		Reply string `json:"reply"`
	}

	err := postJSON(ctx, c.client, c.baseURL+"/v1/completions", c.apiKey, payload, &response, nil)
	if err != nil {
		return "", err
	}

	return response.Reply, nil
}
