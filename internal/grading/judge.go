package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pavelanni/quizflow/internal/llm"
	"github.com/pavelanni/quizflow/internal/llm/prompts"
	"github.com/pavelanni/quizflow/internal/model"
)

// Judgement is a judge's verdict on one short answer. PartiallyCorrect
// earns half credit and only counts when IsCorrect is false. Hint is a
// study pointer shown with the feedback of answers that were not correct.
type Judgement struct {
	IsCorrect        bool   `json:"is_correct"`
	PartiallyCorrect bool   `json:"partially_correct"`
	Feedback         string `json:"feedback"`
	Hint             string `json:"hint"`
}

// Judge decides whether a free-text answer matches the reference answer.
type Judge interface {
	Judge(ctx context.Context, subject string, q model.Question, answer string) (Judgement, error)
}

var judgementSchema = &llm.Schema{
	Name:        "judgement",
	Description: "Verdict on a student's short answer",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"is_correct", "partially_correct", "feedback", "hint"},
		"properties": map[string]any{
			"is_correct":        map[string]any{"type": "boolean"},
			"partially_correct": map[string]any{"type": "boolean"},
			"feedback":          map[string]any{"type": "string"},
			"hint":              map[string]any{"type": "string"},
		},
	},
}

const judgeSystemPrompt = "You are an expert quiz evaluator. Provide fair assessments with constructive feedback that helps learners improve."

// LLMJudge asks an LLM to evaluate short answers.
type LLMJudge struct {
	provider    llm.Provider
	variant     prompts.PromptVariant
	temperature float64
	maxTokens   int
}

// NewLLMJudge creates a judge using the given prompt strictness.
func NewLLMJudge(p llm.Provider, variant prompts.PromptVariant) (*LLMJudge, error) {
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("unknown judge prompt variant %q: %w", variant, model.ErrInvalidArgument)
	}
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	return &LLMJudge{provider: p, variant: variant, temperature: 0.3, maxTokens: 1024}, nil
}

func (j *LLMJudge) Judge(ctx context.Context, subject string, q model.Question, answer string) (Judgement, error) {
	user, err := prompts.BuildJudgePrompt(j.variant, subject, q, answer)
	if err != nil {
		return Judgement{}, fmt.Errorf("build judge prompt: %w", err)
	}
	req := llm.UserPrompt(judgeSystemPrompt, user)
	req.Schema = judgementSchema
	req.Temperature = j.temperature
	req.MaxTokens = j.maxTokens

	resp, err := j.provider.Generate(llm.WithPurpose(ctx, llm.PurposeJudge), req)
	if err != nil {
		return Judgement{}, fmt.Errorf("judge %s: %w", q.ID, err)
	}
	var out Judgement
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return Judgement{}, fmt.Errorf("decode judgement for %s: %w", q.ID, err)
	}
	return out, nil
}

// KeywordJudge accepts an answer when it contains the reference answer,
// ignoring case and surrounding space. It grades offline runs without an LLM.
type KeywordJudge struct{}

func (KeywordJudge) Judge(_ context.Context, _ string, q model.Question, answer string) (Judgement, error) {
	ref := strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	got := strings.ToLower(strings.TrimSpace(answer))
	if ref != "" && strings.Contains(got, ref) {
		return Judgement{IsCorrect: true}, nil
	}
	return Judgement{}, nil
}
