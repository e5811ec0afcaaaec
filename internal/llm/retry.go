package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// RetryProvider resends failed requests with exponential backoff and
// jitter. A quiz generation call is long and expensive, so only failures
// that a second call can plausibly fix are retried.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}
	return &RetryProvider{inner: p, config: cfg}
}

// retryPolicy says how often a failure may be retried.
type retryPolicy int

const (
	retryNever retryPolicy = iota
	retryOnce
	retryUntilLimit
)

func policyFor(err error) retryPolicy {
	var (
		maxTok  *ErrMaxTokensExceeded
		invalid *ErrInvalidResponse
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return retryNever
	case errors.As(err, &maxTok):
		// The same prompt hits the same limit again.
		return retryNever
	case errors.As(err, &invalid):
		return retryOnce
	}
	return retryUntilLimit
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	retriedOnce := false

	for attempt := 1; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		switch policyFor(err) {
		case retryNever:
			return nil, err
		case retryOnce:
			if retriedOnce {
				return nil, &AttemptsError{Purpose: purpose, Attempts: attempt, Err: err}
			}
			retriedOnce = true
		}
		if attempt >= r.config.MaxAttempts {
			if attempt == 1 {
				return nil, err
			}
			return nil, &AttemptsError{Purpose: purpose, Attempts: attempt, Err: err}
		}

		wait := r.backoff(attempt-1, err)
		slog.Debug("retrying LLM request",
			"purpose", purpose,
			"attempt", attempt+1,
			"wait", wait,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if r.config.MaxWait > 0 && wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	wait += wait * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(max(wait, 0))
}
