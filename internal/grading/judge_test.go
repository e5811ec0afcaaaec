package grading

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizflow/internal/llm"
	"github.com/pavelanni/quizflow/internal/llm/prompts"
	"github.com/pavelanni/quizflow/internal/model"
)

func TestLLMJudgeDecodesPartialVerdict(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(
		`{"is_correct": false, "partially_correct": true, "feedback": "Almost.", "hint": "Read about the go statement."}`,
	)})
	judge, err := NewLLMJudge(mock, prompts.PromptStandard)
	require.NoError(t, err)

	q := model.Question{ID: "q3", Type: model.QuestionShortAnswer, Question: "What runs concurrently?", CorrectAnswer: "goroutine"}
	j, err := judge.Judge(context.Background(), "Go", q, "a thread")
	require.NoError(t, err)
	assert.Equal(t, Judgement{PartiallyCorrect: true, Feedback: "Almost.", Hint: "Read about the go statement."}, j)

	require.Len(t, mock.Calls, 1)
	assert.Equal(t, "judgement", mock.Calls[0].Schema.Name)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "a thread")
}

func TestLLMJudgeRejectsUnknownVariant(t *testing.T) {
	_, err := NewLLMJudge(llm.NewMockProvider(), "harsh")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}
