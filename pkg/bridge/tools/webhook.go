package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voxbridge/voxbridge/pkg/bridge"
	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// WebhookClient posts tool invocations to the configured automation backend.
type WebhookClient struct {
	url        string
	token      string
	httpClient *http.Client
}

func NewWebhookClient(url, token string, httpClient *http.Client) *WebhookClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebhookClient{
		url:        strings.TrimSpace(url),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

func (c *WebhookClient) Configured() bool {
	return c != nil && c.url != ""
}

// WebhookResult is the normalized backend reply. Response carries the
// payload the tool's response schema applies to.
type WebhookResult struct {
	Action   string `json:"action"`
	Status   int    `json:"status"`
	Message  string `json:"message"`
	Response any    `json:"response,omitempty"`
}

// Call posts {action, session, parameters} with the bearer token and
// normalizes the reply. The backend may wrap its payload in
// {status, message, response} or return it bare.
func (c *WebhookClient) Call(ctx context.Context, action string, sess session.Snapshot, parameters map[string]any) (WebhookResult, error) {
	if !c.Configured() {
		return WebhookResult{}, bridge.NewWebhookTransportError(action, "webhook backend is not configured")
	}

	body, err := json.Marshal(map[string]any{
		"action":     action,
		"session":    sess,
		"parameters": parameters,
	})
	if err != nil {
		return WebhookResult{}, fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return WebhookResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return WebhookResult{}, bridge.NewWebhookTransportError(action, fmt.Sprintf("webhook request failed: %v", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return WebhookResult{}, bridge.NewWebhookTransportError(action, fmt.Sprintf("read webhook response: %v", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return WebhookResult{}, bridge.NewWebhookTransportError(action,
			fmt.Sprintf("webhook rejected %s (status %d): %s", action, resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	result := WebhookResult{
		Action:  action,
		Status:  resp.StatusCode,
		Message: resp.Status,
	}

	var decoded map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return WebhookResult{}, bridge.NewWebhookTransportError(action, fmt.Sprintf("invalid webhook response body: %v", err))
		}
	}

	if status, ok := decoded["status"].(float64); ok {
		result.Status = int(status)
	}
	if message, ok := decoded["message"].(string); ok {
		result.Message = message
	}
	if payload, ok := decoded["response"]; ok && decoded["status"] != nil {
		result.Response = payload
	} else if decoded != nil {
		result.Response = decoded
	}

	return result, nil
}
