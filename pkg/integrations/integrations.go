// Package integrations provides HTTP-backed implementations of the external
// collaborator interfaces: AI completion, messaging carrier and ticketing.
// Failures are classified for the executor's retry policy: network errors and
// 5xx responses are transient, 4xx responses are permanent.
package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/threadlinehq/threadline/pkg/protocol"
)

const defaultTimeout = 15 * time.Second

func newClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}

// postJSON sends a JSON document and decodes the JSON response, classifying
// errors along the way.
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload any, out any, extraHeaders map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return protocol.NewPermanentError(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return protocol.NewPermanentError(fmt.Errorf("failed to build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	for key, value := range extraHeaders {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return protocol.NewTransientError(fmt.Errorf("request to %s failed: %w", url, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return protocol.NewTransientError(fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode >= 500:
		return protocol.NewTransientError(fmt.Errorf("%s returned %d", url, resp.StatusCode))
	case resp.StatusCode >= 400:
		return protocol.NewPermanentError(fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, raw))
	}

	if out != nil {
		err = json.Unmarshal(raw, out)
		if err != nil {
			return protocol.NewTransientError(fmt.Errorf("failed to decode response from %s: %w", url, err))
		}
	}

	return nil
}
