package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Yates-Labs/frc-reviewer/internal/log"
)

// StatusError is a non-2xx reply from a model endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, truncate(e.Body, 300))
}

// Transient reports whether a retry can succeed.
func (e *StatusError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type retryPolicy struct {
	maxRetries      int
	initialInterval time.Duration
}

func newRetryPolicy(maxRetries int) retryPolicy {
	return retryPolicy{maxRetries: maxRetries, initialInterval: 2 * time.Second}
}

// do runs op until it succeeds, fails permanently or the retries run out.
// Errors are wrapped with ErrLLMFailed.
func (p retryPolicy) do(ctx context.Context, name string, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	if p.initialInterval > 0 {
		eb.InitialInterval = p.initialInterval
	}
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = eb
	if p.maxRetries >= 0 {
		b = backoff.WithMaxRetries(eb, uint64(p.maxRetries))
	}

	attempt := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("model call failed, retrying", "call", name, "error", err, "backoff", wait)
	}

	if err := backoff.RetryNotify(attempt, backoff.WithContext(b, ctx), notify); err != nil {
		if errors.Is(err, ErrLLMFailed) || errors.Is(err, ErrInvalidConfig) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", ErrLLMFailed, name, err)
	}
	return nil
}

func isTransient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMalformedOutput) {
		return false
	}

	var transient interface{ Transient() bool }
	if errors.As(err, &transient) {
		return transient.Transient()
	}

	// Connection resets, EOFs and timeouts carry no status code.
	return true
}
