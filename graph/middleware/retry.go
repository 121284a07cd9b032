package middleware

import (
	"context"
	"math/rand"
	"time"
)

// ToolRetry retries failed tool calls with exponential backoff and jitter.
type ToolRetry struct {
	Base

	// MaxRetries is how many times a failed call is retried (the call
	// runs at most MaxRetries+1 times).
	MaxRetries int

	// BaseDelay seeds the exponential backoff. Zero disables waiting.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Zero means no cap.
	MaxDelay time.Duration

	// RetryIf decides whether an error is worth retrying. Nil retries
	// every error.
	RetryIf func(error) bool
}

// NewToolRetry builds a retry middleware with the given attempt budget.
func NewToolRetry(maxRetries int, baseDelay time.Duration) *ToolRetry {
	return &ToolRetry{
		Base:       Base{MiddlewareName: "tool_retry"},
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
	}
}

// WrapToolCall implements Middleware.
func (t *ToolRetry) WrapToolCall(ctx context.Context, req ToolCallRequest, next ToolNext) (map[string]interface{}, error) {
	var lastErr error
	for attempt := 0; attempt <= t.MaxRetries; attempt++ {
		if attempt > 0 && t.BaseDelay > 0 {
			delay := backoff(attempt-1, t.BaseDelay, t.MaxDelay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
		out, err := next(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if t.RetryIf != nil && !t.RetryIf(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoff computes min(base * 2^attempt, maxDelay) plus jitter in [0, base)
// so synchronized retries spread out.
func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	delay := base * (1 << attempt)
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(base))) // #nosec G404 -- jitter timing, not security
	return delay + jitter
}
