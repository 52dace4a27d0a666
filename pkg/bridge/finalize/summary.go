package finalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxbridge/voxbridge/pkg/bridge/session"
)

// CallSummary is the structured customer-detail extract produced after the
// call ends.
type CallSummary struct {
	CustomerName         string `json:"customerName"`
	CustomerLanguage     string `json:"customerLanguage"`
	CustomerAvailability string `json:"customerAvailability"`
	SpecialNotes         string `json:"specialNotes"`
}

// Summarizer turns a finished session into a CallSummary.
type Summarizer interface {
	Summarize(ctx context.Context, sess session.Snapshot) (*CallSummary, error)
}

const summarySystemPrompt = "Create a call summary. Extract customer details: name, " +
	"communication language, availability, and any special notes from the transcript. " +
	"Reply in German."

// ChatSummarizer extracts the summary through a chat-completions endpoint
// with a structured-output response format.
type ChatSummarizer struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewChatSummarizer(url, apiKey, model string, timeout time.Duration) *ChatSummarizer {
	return &ChatSummarizer{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (s *ChatSummarizer) Summarize(ctx context.Context, sess session.Snapshot) (*CallSummary, error) {
	user, err := json.Marshal(map[string]any{
		"createdAt":    sess.CreatedAt,
		"incomingCall": sess.IncomingCall,
		"transcript":   sess.Transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal session extract: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]any{
			{"role": "system", "content": summarySystemPrompt},
			{"role": "user", "content": string(user)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "call_summary",
				"strict": true,
				"schema": summaryJSONSchema(),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("summary request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("summary endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
				Refusal string `json:"refusal"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&completion); err != nil {
		return nil, fmt.Errorf("decode summary response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("summary response has no choices")
	}
	if refusal := completion.Choices[0].Message.Refusal; refusal != "" {
		return nil, fmt.Errorf("summary refused: %s", refusal)
	}

	var summary CallSummary
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &summary); err != nil {
		return nil, fmt.Errorf("parse structured summary: %w", err)
	}
	return &summary, nil
}

func summaryJSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"customerName": map[string]any{"type": "string"},
			"customerLanguage": map[string]any{
				"type":        "string",
				"description": "The language the customer spoke in",
			},
			"customerAvailability": map[string]any{"type": "string"},
			"specialNotes":         map[string]any{"type": "string"},
		},
		"required":             []string{"customerName", "customerLanguage", "customerAvailability", "specialNotes"},
		"additionalProperties": false,
	}
}
