package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func newTestOpenAIProvider(t *testing.T, mode string, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := openai.DefaultConfig("test-key")
	config.BaseURL = server.URL + "/v1"

	return &OpenAIProvider{
		client:   openai.NewClientWithConfig(config),
		model:    "llama3.2",
		jsonMode: mode,
	}
}

func chatCompletion(content, finish string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "llama3.2",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": finish,
		}},
		"usage": map[string]any{"prompt_tokens": 40, "completion_tokens": 25, "total_tokens": 65},
	}
}

func TestOpenAIProvider_SchemaMode(t *testing.T) {
	var got openai.ChatCompletionRequest
	p := newTestOpenAIProvider(t, JSONModeSchema, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"name":"x","count":1}`, "stop"))
	})

	req := UserPrompt("You write quizzes.", "Go.")
	req.Schema = testSchema()
	resp, err := p.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Usage.InputTokens != 40 || resp.Usage.OutputTokens != 25 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONSchema {
		t.Errorf("expected json_schema response format, got %+v", got.ResponseFormat)
	}
}

func TestOpenAIProvider_ObjectModeEmbedsSchema(t *testing.T) {
	var got openai.ChatCompletionRequest
	p := newTestOpenAIProvider(t, JSONModeObject, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"name":"x","count":1}`, "stop"))
	})

	req := UserPrompt("You write quizzes.", "Go.")
	req.Schema = testSchema()
	if _, err := p.Generate(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ResponseFormat == nil || got.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("expected json_object response format, got %+v", got.ResponseFormat)
	}
	if len(got.Messages) == 0 || !strings.Contains(got.Messages[0].Content, `"required"`) {
		t.Errorf("system prompt should embed the schema")
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		check   func(error) bool
		wantMsg string
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   map[string]any{"error": map[string]any{"message": "slow down", "type": "tokens"}},
			check:  func(err error) bool { var e *ErrRateLimit; return errors.As(err, &e) },
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   map[string]any{"error": map[string]any{"message": "boom", "type": "server_error"}},
			check:  func(err error) bool { var e *ErrProviderUnavailable; return errors.As(err, &e) },
		},
		{
			name:   "schema mismatch",
			status: http.StatusOK,
			body:   chatCompletion(`{"name":"x"}`, "stop"),
			check:  func(err error) bool { var e *ErrInvalidResponse; return errors.As(err, &e) },
		},
		{
			name:   "truncated",
			status: http.StatusOK,
			body:   chatCompletion(`{"name":`, "length"),
			check:  func(err error) bool { var e *ErrMaxTokensExceeded; return errors.As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIProvider(t, JSONModeSchema, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(tt.body)
			})
			req := UserPrompt("", "test")
			req.Schema = testSchema()
			_, err := p.Generate(context.Background(), req)
			if err == nil {
				t.Fatal("expected error")
			}
			if !tt.check(err) {
				t.Errorf("unexpected error type %T: %v", err, err)
			}
		})
	}
}

func TestNewOpenAIProvider(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Error("expected error without API key")
	}
	p, err := NewOpenAIProvider(OpenAIConfig{APIKey: "k", Model: "gpt-4o-mini", BaseURL: "http://localhost:11434/v1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != "gpt-4o-mini" || p.jsonMode != JSONModeSchema {
		t.Errorf("model = %q mode = %q", p.ModelID(), p.jsonMode)
	}
}
