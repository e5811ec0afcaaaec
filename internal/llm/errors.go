package llm

import (
	"encoding/json"
	"fmt"
	"time"
)

// Provider errors. RetryProvider classifies them to decide whether a quiz
// generation or judging request is sent again; quizgen turns them into the
// reason stored on a failed session.

// ErrRateLimit is returned when the provider answered 429.
type ErrRateLimit struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	msg := providerName(e.Provider) + " rate limit reached"
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return withCause(msg, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse is returned when the model output is not JSON matching
// the requested schema.
type ErrInvalidResponse struct {
	Schema  string
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	if e.Schema == "" {
		return withCause("malformed model output", e.Err)
	}
	return withCause(fmt.Sprintf("model output does not match the %q schema", e.Schema), e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable is returned when the provider is down, unreachable
// or answered with a server error.
type ErrProviderUnavailable struct {
	Provider string
	Err      error
}

func (e *ErrProviderUnavailable) Error() string {
	return withCause(providerName(e.Provider)+" unavailable", e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded is returned when the output was cut off at the
// request's MaxTokens. A full 25-question quiz needs a generous limit.
type ErrMaxTokensExceeded struct {
	MaxTokens int
	Content   json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	if e.MaxTokens > 0 {
		return fmt.Sprintf("model output truncated at %d tokens", e.MaxTokens)
	}
	return "model output truncated at the token limit"
}

// AttemptsError is returned by RetryProvider when every attempt failed. Err
// is the last failure.
type AttemptsError struct {
	Purpose  string
	Attempts int
	Err      error
}

func (e *AttemptsError) Error() string {
	return fmt.Sprintf("%s request failed after %d attempts: %v", e.Purpose, e.Attempts, e.Err)
}

func (e *AttemptsError) Unwrap() error { return e.Err }

func providerName(p string) string {
	if p == "" {
		return "LLM provider"
	}
	return p + " provider"
}

func withCause(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}
