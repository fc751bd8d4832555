// Package llm wraps the language-model provider behind a small structured
// generation surface. Provider selection mirrors the configuration: openai
// for hosted, ollama for local.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type Client struct {
	model  llms.Model
	logger *zap.Logger
}

func New(opts Options, logger *zap.Logger) (*Client, error) {
	var model llms.Model
	var err error
	switch opts.Provider {
	case "openai":
		oopts := []openai.Option{
			openai.WithModel(opts.Model),
			openai.WithToken(opts.APIKey),
		}
		if opts.BaseURL != "" {
			oopts = append(oopts, openai.WithBaseURL(opts.BaseURL))
		}
		model, err = openai.New(oopts...)
	case "ollama":
		oopts := []ollama.Option{ollama.WithModel(opts.Model)}
		if opts.BaseURL != "" {
			oopts = append(oopts, ollama.WithServerURL(opts.BaseURL))
		}
		model, err = ollama.New(oopts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", opts.Provider, err)
	}
	return &Client{model: model, logger: logger.Named("llm")}, nil
}

// StructuredJSON sends a system+user prompt in JSON mode and unmarshals the
// single choice into out.
func (c *Client) StructuredJSON(ctx context.Context, system, user string, out any) error {
	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, user),
		},
		llms.WithJSONMode(),
	)
	if err != nil {
		return fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return errors.New("model returned no choices")
	}

	raw := stripFences(resp.Choices[0].Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.logger.Debug("unparseable model output", zap.String("raw", truncate(raw, 500)))
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

// stripFences removes a markdown code fence some models wrap JSON in even in
// JSON mode.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
