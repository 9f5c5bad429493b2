// Package llm provides the text generation client used to phrase greetings
// and proactive messages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/rs/zerolog"
)

// ErrEmptyCompletion indicates the model returned no usable text.
var ErrEmptyCompletion = errors.New("empty completion")

const systemPrompt = "You are a friendly AI assistant named Hey Buddy. " +
	"Always answer in English, clearly and concisely. You help users with " +
	"their tasks and provide helpful information."

// Config configures the generation client.
type Config struct {
	BaseURL   string        `json:"base_url"` // OpenAI-compatible endpoint (Ollama, LM Studio, ...)
	APIKeyEnv string        `json:"api_key_env"`
	Model     string        `json:"model"`
	Timeout   time.Duration `json:"timeout"`
}

// Client wraps an OpenAI-compatible chat completion endpoint.
type Client struct {
	client openai.Client
	model  string
	logger zerolog.Logger
}

// NewClient creates a generation client against the configured endpoint.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = "thenhan"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}

	opts := []option.RequestOption{
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if key := os.Getenv(cfg.APIKeyEnv); key != "" {
		opts = append(opts, option.WithAPIKey(key))
	}

	return &Client{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

// Generate produces a single completion for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Model: c.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}

	c.logger.Debug().Dur("elapsed", time.Since(start)).Int("chars", len(text)).Msg("Completion received")
	return text, nil
}
