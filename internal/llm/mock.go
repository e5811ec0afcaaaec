package llm

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
)

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error
}

// MaxRecordedCalls bounds MockProvider.Calls; older requests are dropped.
const MaxRecordedCalls = 100

// MockProvider returns canned responses in FIFO order and records the most
// recent MaxRecordedCalls requests. When Fallback is set it answers once the
// queue is empty, which is how the server runs without a model.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     int
	Calls     []Request

	// Fallback builds a response for requests that find the queue empty.
	Fallback func(req Request) (json.RawMessage, error)
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	if len(m.Calls) >= MaxRecordedCalls {
		m.Calls = slices.Delete(m.Calls, 0, len(m.Calls)-MaxRecordedCalls+1)
	}
	m.Calls = append(m.Calls, req)
	var (
		resp   MockResponse
		queued bool
	)
	if len(m.responses) > 0 {
		resp, queued = m.responses[0], true
		m.responses = m.responses[1:]
	}
	fallback := m.Fallback
	m.mu.Unlock()

	if !queued {
		if fallback == nil {
			return nil, &ErrProviderUnavailable{Provider: "mock", Err: errors.New("no canned response left")}
		}
		content, err := fallback(req)
		if err != nil {
			return nil, err
		}
		resp = MockResponse{Content: content}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	if err := validateResponse(req.Schema, resp.Content); err != nil {
		return nil, err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
