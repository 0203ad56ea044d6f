package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stockpro/observability"
)

// RetryConfig controls how often a failed upstream round trip is repeated.
// MaxRetries of zero means a single attempt.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig makes exactly one attempt; upstream failures are answered
// with generated data instead of being retried
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     0,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// backoff is the wait before retry number attempt+1, doubling from
// InitialBackoff up to MaxBackoff
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := c.InitialBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}

// retryable reports whether another attempt could turn err into a usable
// answer. Only transport failures and 5xx responses qualify.
func retryable(err error) bool {
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		return true
	}
	switch upstreamErr.Cause {
	case CauseTransport:
		return true
	case CauseStatus:
		return upstreamErr.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}

// fetchWithRetry calls fetch until it succeeds, fails in a way a retry cannot
// fix, runs out of attempts or ctx ends
func fetchWithRetry(ctx context.Context, cfg RetryConfig, fetch func() ([]byte, error)) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := fetch()
		if err == nil {
			return body, nil
		}
		if attempt >= cfg.MaxRetries || !retryable(err) || ctx.Err() != nil {
			if attempt == 0 {
				return nil, err
			}
			return nil, fmt.Errorf("after %d attempts: %w", attempt+1, err)
		}

		wait := cfg.backoff(attempt)
		observability.WithContext(ctx).Debug("retrying upstream call",
			"attempt", attempt+1,
			"max_retries", cfg.MaxRetries,
			"wait", wait,
			"error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("retry interrupted: %w", ctx.Err())
		case <-timer.C:
		}
	}
}
