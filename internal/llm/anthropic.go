package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicModel implements Model over the Anthropic Messages API.
// The schema travels in the system prompt since the API has no JSON mode.
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int
	timeout   time.Duration
	retry     retryPolicy
}

// NewAnthropicModel creates an Anthropic-backed Model. cfg.BaseURL, when set,
// replaces the API host (the SDK appends /v1/messages).
func NewAnthropicModel(cfg Config) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are handled by retryPolicy.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &AnthropicModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   cfg.Timeout,
		retry:     newRetryPolicy(cfg.MaxRetries),
	}, nil
}

// GenerateStructured implements Model.
func (a *AnthropicModel) GenerateStructured(ctx context.Context, req Request, out any) error {
	return generate(ctx, a, a.retry, a.timeout, req, out)
}

func (a *AnthropicModel) complete(ctx context.Context, req Request) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if system := schemaInstruction(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", err
	}

	var content strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("%w: no text content in response", ErrMalformedOutput)
	}
	return content.String(), nil
}
