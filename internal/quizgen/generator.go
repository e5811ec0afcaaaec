// Package quizgen produces quizzes with an LLM and runs generation jobs in
// the background.
package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/quizflow/internal/llm"
	"github.com/pavelanni/quizflow/internal/llm/prompts"
	"github.com/pavelanni/quizflow/internal/model"
)

// DefaultNumQuestions is the size of every generated quiz.
const DefaultNumQuestions = 25

// Generator produces a complete, validated quiz for a subject.
type Generator interface {
	Generate(ctx context.Context, subject string) (*model.Quiz, error)
}

// Config controls LLM quiz generation.
type Config struct {
	NumQuestions int
	// Attempts is how many complete generations are tried when the model
	// returns a quiz that fails domain validation.
	Attempts    int
	Temperature float64
	MaxTokens   int
}

// DefaultConfig returns the generation settings used by the server.
func DefaultConfig() Config {
	return Config{
		NumQuestions: DefaultNumQuestions,
		Attempts:     2,
		Temperature:  0.7,
		MaxTokens:    16000,
	}
}

// LLMGenerator generates quizzes through an llm.Provider.
type LLMGenerator struct {
	provider llm.Provider
	cfg      Config
}

// NewLLMGenerator creates a generator. Prompt templates must be loadable.
func NewLLMGenerator(p llm.Provider, cfg Config) (*LLMGenerator, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if cfg.NumQuestions <= 0 {
		cfg.NumQuestions = DefaultNumQuestions
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &LLMGenerator{provider: p, cfg: cfg}, nil
}

const systemPrompt = "You are an expert educator and assessment designer. You write accurate, unambiguous quiz questions and return them as JSON."

func (g *LLMGenerator) Generate(ctx context.Context, subject string) (*model.Quiz, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeGenerate)
	mc, tf, sa := prompts.QuestionMix(g.cfg.NumQuestions)
	data := prompts.GenerateData{
		Subject:        subject,
		NumQuestions:   g.cfg.NumQuestions,
		MultipleChoice: mc,
		TrueFalse:      tf,
		ShortAnswer:    sa,
		IncludeCoding:  prompts.IncludesCoding(subject),
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.Attempts; attempt++ {
		quiz, err := g.generateOnce(ctx, subject, data)
		if err == nil {
			return quiz, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}

		var verr *ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		slog.Warn("generated quiz rejected",
			"subject", subject,
			"attempt", attempt,
			"problems", len(verr.Problems),
			"error", err,
		)
	}
	return nil, lastErr
}

func (g *LLMGenerator) generateOnce(ctx context.Context, subject string, data prompts.GenerateData) (*model.Quiz, error) {
	user, err := prompts.BuildGeneratePrompt(data)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	req := llm.UserPrompt(systemPrompt, user)
	req.Schema = QuizSchema()
	req.Temperature = g.cfg.Temperature
	req.MaxTokens = g.cfg.MaxTokens

	resp, err := g.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate quiz: %w", err)
	}

	var quiz model.Quiz
	if err := json.Unmarshal(resp.Content, &quiz); err != nil {
		return nil, fmt.Errorf("decode quiz: %w", err)
	}
	if err := Normalize(&quiz, subject, g.cfg.NumQuestions); err != nil {
		return nil, err
	}
	if data.IncludeCoding {
		quiz.Metadata.IncludesCoding = true
	}
	return &quiz, nil
}

// FailureReason turns a generation error into the message stored on the session.
func FailureReason(err error) string {
	var (
		verr    *ValidationError
		rl      *llm.ErrRateLimit
		unavail *llm.ErrProviderUnavailable
		invalid *llm.ErrInvalidResponse
		maxTok  *llm.ErrMaxTokensExceeded
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "quiz generation timed out"
	case errors.Is(err, context.Canceled):
		return "quiz generation was cancelled"
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &rl):
		return "the quiz generator is rate limited, please try again later"
	case errors.As(err, &maxTok):
		return "the generated quiz was too long and got truncated"
	case errors.As(err, &invalid):
		return "the quiz generator returned malformed output"
	case errors.As(err, &unavail):
		if unavail.Err == nil {
			return "the quiz generator is unavailable"
		}
		return "the quiz generator is unavailable: " + unavail.Err.Error()
	}
	return err.Error()
}
