// Package anthropic adapts the Anthropic Messages API to the vision backend port.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kirillkom/blueprint-assistant/internal/core/domain"
	"github.com/kirillkom/blueprint-assistant/internal/infrastructure/resilience"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
}

type Client struct {
	messages  anthropic.MessageService
	model     string
	maxTokens int64
	executor  *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	// Retries are owned by the resilience executor.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	client := anthropic.NewClient(opts...)

	return &Client{
		messages:  client.Messages,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		executor:  executor,
	}, nil
}

func (c *Client) Name() string { return "anthropic" }

func (c *Client) Generate(ctx context.Context, req domain.VisionRequest) (string, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MimeType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			{Role: anthropic.MessageParamRoleUser, Content: blocks},
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	text, err := resilience.Call(ctx, c.executor, "anthropic.messages", func(ctx context.Context) (string, error) {
		message, err := c.messages.New(ctx, params)
		if err != nil {
			return "", err
		}
		var parts []string
		for _, block := range message.Content {
			if b, ok := block.AsAny().(anthropic.TextBlock); ok {
				parts = append(parts, b.Text)
			}
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	}, classifyAnthropicError)
	if err != nil {
		return "", resilience.WrapTemporary("anthropic messages", err, classifyAnthropicError)
	}
	return text, nil
}

func classifyAnthropicError(err error) resilience.ErrorClassification {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTP(&resilience.HTTPStatusError{
			Service:    "anthropic",
			Operation:  "messages",
			StatusCode: apiErr.StatusCode,
		})
	}
	return resilience.ClassifyHTTP(err)
}
