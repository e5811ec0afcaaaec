package quizgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizflow/internal/llm"
	"github.com/pavelanni/quizflow/internal/model"
)

func demoResponse(t *testing.T, n int) llm.MockResponse {
	t.Helper()
	content, err := DemoQuizJSON(n)
	require.NoError(t, err)
	return llm.MockResponse{Content: content}
}

func newTestGenerator(t *testing.T, p llm.Provider, n int) *LLMGenerator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.NumQuestions = n
	g, err := NewLLMGenerator(p, cfg)
	require.NoError(t, err)
	return g
}

func TestGenerate(t *testing.T) {
	mock := llm.NewMockProvider(demoResponse(t, 5))
	g := newTestGenerator(t, mock, 5)

	quiz, err := g.Generate(context.Background(), "Python Programming")
	require.NoError(t, err)

	assert.Len(t, quiz.Questions, 5)
	assert.Equal(t, "Python Programming", quiz.Metadata.Subject)
	assert.True(t, quiz.Metadata.IncludesCoding)

	require.Equal(t, 1, mock.CallCount())
	req := mock.Calls[0]
	require.NotNil(t, req.Schema)
	assert.Equal(t, "quiz", req.Schema.Name)
	assert.InDelta(t, 0.7, req.Temperature, 1e-9)
	assert.Contains(t, req.Messages[0].Content, "Python Programming")
}

func TestGenerateRetriesInvalidQuiz(t *testing.T) {
	mock := llm.NewMockProvider(demoResponse(t, 4), demoResponse(t, 5))
	g := newTestGenerator(t, mock, 5)

	quiz, err := g.Generate(context.Background(), "History")
	require.NoError(t, err)
	assert.Len(t, quiz.Questions, 5)
	assert.Equal(t, 2, mock.CallCount())
}

func TestGenerateGivesUpAfterAttempts(t *testing.T) {
	mock := llm.NewMockProvider(demoResponse(t, 4), demoResponse(t, 4), demoResponse(t, 5))
	g := newTestGenerator(t, mock, 5)

	_, err := g.Generate(context.Background(), "History")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, mock.CallCount())
}

func TestGenerateProviderErrorNotRetried(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("connection refused")}})
	g := newTestGenerator(t, mock, 5)

	_, err := g.Generate(context.Background(), "History")
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount())
	assert.Equal(t, "the quiz generator is unavailable: connection refused", FailureReason(err))
}

func TestGeneratePurpose(t *testing.T) {
	var purpose string
	p := providerFunc(func(ctx context.Context, req llm.Request) (*llm.Response, error) {
		purpose = llm.PurposeFrom(ctx)
		content, err := DemoQuizJSON(5)
		return &llm.Response{Content: content}, err
	})
	g := newTestGenerator(t, p, 5)

	_, err := g.Generate(context.Background(), "History")
	require.NoError(t, err)
	assert.Equal(t, llm.PurposeGenerate, purpose)
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, "quiz generation timed out"},
		{context.Canceled, "quiz generation was cancelled"},
		{&llm.ErrRateLimit{Err: errors.New("429")}, "the quiz generator is rate limited, please try again later"},
		{&llm.ErrMaxTokensExceeded{}, "the generated quiz was too long and got truncated"},
		{&llm.AttemptsError{Purpose: llm.PurposeGenerate, Attempts: 3, Err: &llm.ErrRateLimit{Provider: "anthropic"}}, "the quiz generator is rate limited, please try again later"},
		{&llm.ErrProviderUnavailable{Provider: "gemini"}, "the quiz generator is unavailable"},
		{&llm.ErrInvalidResponse{Err: errors.New("bad")}, "the quiz generator returned malformed output"},
		{&ValidationError{Problems: []string{"got 3 questions, want 25"}}, "generated quiz is invalid: got 3 questions, want 25"},
		{errors.New("boom"), "boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureReason(tt.err))
	}
}

type providerFunc func(ctx context.Context, req llm.Request) (*llm.Response, error)

func (f providerFunc) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return f(ctx, req)
}

func (providerFunc) ModelID() string { return "func" }

type generatorFunc func(ctx context.Context, subject string) (*model.Quiz, error)

func (f generatorFunc) Generate(ctx context.Context, subject string) (*model.Quiz, error) {
	return f(ctx, subject)
}
