package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIModel implements Model using the OpenAI chat completions API or any
// gateway that speaks it.
type OpenAIModel struct {
	client openai.Client
	config Config

	// structured selects the json_schema response format. Gateways that do
	// not support it receive the schema in the system prompt instead.
	structured bool
	retry      retryPolicy
}

// NewOpenAIModel creates an OpenAI-compatible Model.
func NewOpenAIModel(cfg Config, structured bool) (*OpenAIModel, error) {
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

	return &OpenAIModel{
		client:     openai.NewClient(opts...),
		config:     cfg,
		structured: structured,
		retry:      newRetryPolicy(cfg.MaxRetries),
	}, nil
}

// GenerateStructured implements Model.
func (o *OpenAIModel) GenerateStructured(ctx context.Context, req Request, out any) error {
	return generate(ctx, o, o.retry, o.config.Timeout, req, out)
}

func (o *OpenAIModel) complete(ctx context.Context, req Request) (string, error) {
	system := req.System
	if !o.structured {
		system = schemaInstruction(req)
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.config.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(req.Prompt),
		},
	}
	if o.config.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(o.config.MaxTokens))
	}
	if o.structured && req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Name,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", err
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no response generated", ErrMalformedOutput)
	}
	return completion.Choices[0].Message.Content, nil
}
