// Package client talks to a QuizFlow server and drives a quiz attempt:
// status polling, the answer countdown and the attempt state reducer.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/model"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.StatusCode)
}

// Is lets callers test API errors against the model sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case model.ErrNotFound:
		return e.Code == api.CodeNotFound
	case model.ErrNotReady:
		return e.Code == api.CodeNotReady
	case model.ErrConflict:
		return e.Code == api.CodeConflict
	case model.ErrInvalidArgument:
		return e.Code == api.CodeInvalidArgument
	}
	return false
}

// Client is a QuizFlow REST client.
type Client struct {
	baseURL string
	http    *http.Client
	userID  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithUserID sends id as the caller identity on every request.
func WithUserID(id string) Option {
	return func(c *Client) { c.userID = id }
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Health calls the liveness endpoint.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var out api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Subjects lists the subjects a quiz can be generated for.
func (c *Client) Subjects(ctx context.Context) ([]string, error) {
	var out api.SubjectsResponse
	if err := c.do(ctx, http.MethodGet, "/subjects", nil, &out); err != nil {
		return nil, err
	}
	return out.Subjects, nil
}

// Generate starts quiz generation for subject.
func (c *Client) Generate(ctx context.Context, subject string) (*api.GenerateResponse, error) {
	var out api.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/generate-quiz", api.GenerateRequest{Subject: subject}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the status document of a session.
func (c *Client) Status(ctx context.Context, sessionID string) (*api.StatusResponse, error) {
	var out api.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/quiz-status/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quiz fetches the public quiz of a ready or completed session.
func (c *Client) Quiz(ctx context.Context, sessionID string) (*model.Quiz, error) {
	var out api.QuizResponse
	if err := c.do(ctx, http.MethodGet, "/quiz/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Quiz, nil
}

// Submit sends answers for grading.
func (c *Client) Submit(ctx context.Context, sub model.Submission) (*model.GradingResult, error) {
	var out model.GradingResult
	if err := c.do(ctx, http.MethodPost, "/submit-answers", sub, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Result fetches the grading result of a completed session.
func (c *Client) Result(ctx context.Context, sessionID string) (*model.GradingResult, error) {
	var out model.GradingResult
	if err := c.do(ctx, http.MethodGet, "/results/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History lists sessions, most recent first. A limit of 0 lists all.
func (c *Client) History(ctx context.Context, limit int) ([]model.SessionSummary, error) {
	path := "/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out api.HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Delete removes a session. Deleting an unknown session succeeds.
func (c *Client) Delete(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Code: api.CodeInternal}
		var er api.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&er); err == nil && er.Error != "" {
			apiErr.Code, apiErr.Detail = er.Error, er.Detail
		} else {
			apiErr.Detail = resp.Status
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// IsTransient reports whether a request may succeed if retried.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == http.StatusTooManyRequests
	}
	return err != nil && !errors.Is(err, context.Canceled)
}
