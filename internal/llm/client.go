// Package llm evaluates and summarizes articles through a chat-completions
// API. The client targets DeepSeek's OpenAI-compatible endpoint but works
// against any compatible base URL.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrEmptyResponse is returned when the API answers with no choices.
var ErrEmptyResponse = errors.New("llm: empty completion response")

// ChatClient is the completion surface the evaluator and summarizer need.
// The production implementation is Client; tests substitute fakes.
type ChatClient interface {
	ChatJSON(ctx context.Context, system, user string, temperature float64, out any) error
	Model() string
}

// Client calls a chat-completions endpoint and decodes JSON answers.
type Client struct {
	api   *openai.Client
	model string
}

// Config holds the connection settings for the completions API.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a Client. Model defaults to deepseek-chat and BaseURL to
// the DeepSeek API when unset.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.deepseek.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}

	api := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &Client{api: &api, model: cfg.Model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// ChatJSON sends a system+user exchange and unmarshals the JSON reply into
// out, tolerating fenced code blocks around the payload.
func (c *Client) ChatJSON(ctx context.Context, system, user string, temperature float64, out any) error {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(temperature),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return fmt.Errorf("llm request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrEmptyResponse
	}

	content := ExtractJSONPayload(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("llm output is not valid JSON: %w", err)
	}
	return nil
}

var (
	fenceOpenRe  = regexp.MustCompile("^```(?:json)?")
	fenceCloseRe = regexp.MustCompile("```$")
)

// ExtractJSONPayload strips surrounding markdown code fences from a model
// reply so the remainder can be unmarshaled.
func ExtractJSONPayload(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(fenceOpenRe.ReplaceAllString(text, ""))
		text = strings.TrimSpace(fenceCloseRe.ReplaceAllString(text, ""))
	}
	return text
}
