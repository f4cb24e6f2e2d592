// Package llm is a minimal client for OpenAI-compatible chat-completion
// endpoints. Gemini, OpenAI and most hosted gateways expose this shape.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/focal-ai/focal/internal/domain"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Config configures the client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration // per HTTP call; 0 means no client-side limit
}

// DefaultConfig returns defaults matching the hosted Gemini models.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		Model:       "gemini-2.0-flash",
		Temperature: 0.7,
		MaxTokens:   1024,
		Timeout:     60 * time.Second,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

// Client implements domain.TextGenerator.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client.
func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// Complete sends one system + user exchange and returns the reply text.
// HTTP 429 and quota exhaustion wrap domain.ErrRateLimited; every other
// failure is a *domain.UpstreamError.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return "", &domain.UpstreamError{Op: "encode request", Err: err}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &domain.UpstreamError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &domain.UpstreamError{Op: "chat completion", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &domain.UpstreamError{Op: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		snippet := strings.TrimSpace(string(raw))
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		if isRateLimited(resp.StatusCode, snippet) {
			return "", fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
		}
		return "", &domain.UpstreamError{
			Op:  "chat completion",
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, snippet),
		}
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &domain.UpstreamError{Op: "decode response", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &domain.UpstreamError{Op: "chat completion", Err: fmt.Errorf("no choices in response")}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

func isRateLimited(status int, body string) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	upper := strings.ToUpper(body)
	return strings.Contains(upper, "RESOURCE_EXHAUSTED") || strings.Contains(upper, "QUOTA")
}
