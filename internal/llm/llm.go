// Package llm provides the structured-output model capability used by every
// review pass. A Model receives a system prompt, a user prompt and a JSON
// schema, and decodes the model's answer into a Go value.
//
// Implementations exist for OpenAI-compatible gateways (openai, digitalocean,
// vercel) and for Anthropic, plus a deterministic mock for tests.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrLLMFailed       = errors.New("LLM request failed")
	ErrInvalidConfig   = errors.New("invalid LLM configuration")
	ErrMalformedOutput = errors.New("malformed model output")
)

// Gateway names accepted by New.
const (
	GatewayOpenAI       = "openai"
	GatewayDigitalOcean = "digitalocean"
	GatewayVercel       = "vercel"
	GatewayAnthropic    = "anthropic"
)

const (
	digitalOceanBaseURL = "https://inference.do-ai.run/v1"
	vercelBaseURL       = "https://ai.vercel.app/v1"
)

// Model is the structured generation capability.
// Implementations must be safe for concurrent use.
type Model interface {
	// GenerateStructured runs one model call and decodes the JSON answer into
	// out. Output that is not valid JSON or does not satisfy req.Schema
	// yields ErrMalformedOutput.
	GenerateStructured(ctx context.Context, req Request, out any) error
}

// Request is a single structured generation call.
type Request struct {
	// Name identifies the schema, e.g. "pr_summary". Mocks key responses on it.
	Name string

	// Schema is a JSON schema object describing the expected answer. Answers
	// are validated against it before decoding.
	Schema map[string]any

	// Lenient names properties whose enum is sent to the model but not
	// enforced on the answer; the caller normalizes those values itself.
	Lenient []string

	System string
	Prompt string
}

// Config holds options shared by all gateways.
type Config struct {
	Gateway string
	APIKey  string
	Model   string

	// BaseURL overrides the gateway endpoint.
	BaseURL string

	// MaxTokens limits the response length (0 = provider default)
	MaxTokens int

	// Timeout bounds one GenerateStructured call including retries
	// (0 = no timeout).
	Timeout time.Duration

	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries int
}

// DefaultConfig returns the defaults used by the review command.
func DefaultConfig() Config {
	return Config{
		Gateway:    GatewayOpenAI,
		Model:      "gpt-4o",
		MaxTokens:  8192,
		Timeout:    5 * time.Minute,
		MaxRetries: 2,
	}
}

// New creates the Model for cfg.Gateway.
func New(cfg Config) (Model, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: missing model name", ErrInvalidConfig)
	}

	switch strings.ToLower(cfg.Gateway) {
	case GatewayOpenAI, "":
		return NewOpenAIModel(cfg, true)
	case GatewayDigitalOcean:
		if cfg.BaseURL == "" {
			cfg.BaseURL = digitalOceanBaseURL
		}
		return NewOpenAIModel(cfg, false)
	case GatewayVercel:
		if cfg.BaseURL == "" {
			cfg.BaseURL = vercelBaseURL
		}
		return NewOpenAIModel(cfg, false)
	case GatewayAnthropic:
		return NewAnthropicModel(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown gateway %q", ErrInvalidConfig, cfg.Gateway)
	}
}

// completer returns the raw text answer for a request.
type completer interface {
	complete(ctx context.Context, req Request) (string, error)
}

// generate runs c under the configured timeout and retry policy, then decodes
// the answer. Decoding failures are never retried.
func generate(ctx context.Context, c completer, p retryPolicy, timeout time.Duration, req Request, out any) error {
	if req.Prompt == "" {
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidConfig)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var text string
	err := p.do(ctx, req.Name, func() error {
		var err error
		text, err = c.complete(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	return Decode(req, text, out)
}
