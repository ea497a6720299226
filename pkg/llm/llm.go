// Package llm is the chat-completion client used for issue quality checks.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the completion model used when none is configured.
const DefaultModel = "o3-mini"

// Config configures the completion client.
type Config struct {
	HTTPClient *http.Client
	APIKey     string
	BaseURL    string // OpenAI-compatible endpoint, including the /v1 suffix
	Model      string
	Timeout    time.Duration
}

// Client requests JSON-formatted chat completions.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New creates a completion client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   model,
		timeout: cfg.Timeout,
	}, nil
}

// Complete sends prompt as a single user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	slog.Debug("Chat completion", "component", "llm", "model", c.model,
		"duration", time.Since(start).Round(time.Millisecond), "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
