// internal/app/system/summarize/summarize.go

// Package summarize wraps the OpenAI chat completions API behind the
// small Summarizer interface the digest pipeline and webhook ingestion
// consume. Failures are returned to the caller; retry policy lives here,
// failure isolation lives in the pipeline.
package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/dalemusser/digesthub/internal/app/system/metrics"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	defaultModel   = "gpt-3.5-turbo-16k"

	maxRetries   = 3
	initialDelay = 1 * time.Second
)

// Summarizer produces a completion for a system/user prompt pair.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Client is the OpenAI-backed Summarizer.
type Client struct {
	apiKey  string
	orgID   string
	baseURL string
	model   string
	client  *http.Client
}

// Option adjusts a Client. Used by tests to point at a fake server.
type Option func(*Client)

// WithBaseURL overrides the completions endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithModel overrides the completion model.
func WithModel(m string) Option {
	return func(c *Client) { c.model = m }
}

// New creates an OpenAI summarizer client. orgID may be empty.
func New(apiKey, orgID string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		orgID:   orgID,
		baseURL: defaultBaseURL,
		model:   defaultModel,
		client:  &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Summarize sends one completion request and returns the first choice's
// content. Rate limits and server errors are retried with exponential
// backoff; other client errors fail immediately.
func (c *Client) Summarize(ctx context.Context, systemPrompt, userContent string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("summarizer API key not set")
	}

	start := time.Now()
	defer func() {
		metrics.SummarizeDuration.Observe(time.Since(start).Seconds())
	}()

	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt-1))) * initialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("create completion request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")
		if c.orgID != "" {
			httpReq.Header.Set("OpenAI-Organization", c.orgID)
		}

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("completion request failed: %w", err)
			continue
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read completion response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr apiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("completion API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("completion API error (%d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var chatResp chatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			return "", fmt.Errorf("decode completion response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return "", fmt.Errorf("completion returned no choices")
		}
		return chatResp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}
