// Package grading scores a submission against a quiz's answer key and
// builds the stored grading result.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/quizflow/internal/i18n"
	"github.com/pavelanni/quizflow/internal/model"
)

// AnonymousUser is recorded when a submission carries no user id.
const AnonymousUser = "anonymous"

// PartialCredit is the share of a question's points awarded for a
// partially correct short answer.
const PartialCredit = 0.5

// Outcome is the graded result of a single question.
type Outcome struct {
	Correct  bool
	Partial  bool
	Feedback string
}

// Strategy grades one answered question of a given type.
type Strategy interface {
	Grade(ctx context.Context, subject string, q model.Question, answer string) Outcome
}

// Engine routes each question to the strategy for its type and aggregates
// the outcomes.
type Engine struct {
	strategies map[model.QuestionType]Strategy
	// judgeConcurrency bounds parallel short-answer judgements.
	judgeConcurrency int
	now              func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithJudgeConcurrency sets how many short answers are judged in parallel.
func WithJudgeConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.judgeConcurrency = n
		}
	}
}

// WithClock overrides the time source for GradedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine installs the exact-match strategies and a short-answer strategy
// backed by judge.
func NewEngine(judge Judge, opts ...Option) *Engine {
	e := &Engine{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionMultipleChoice: exactStrategy{},
			model.QuestionTrueFalse:      exactStrategy{},
			model.QuestionShortAnswer:    judgeStrategy{judge: judge},
		},
		judgeConcurrency: 4,
		now:              time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Grade scores sub against quiz. Answers for unknown question ids are
// rejected with model.ErrInvalidArgument. Judge failures never fail the
// whole grading; the affected question is marked incorrect.
func (e *Engine) Grade(ctx context.Context, subject string, quiz model.Quiz, sub model.Submission) (model.GradingResult, error) {
	idx := quiz.QuestionIndex()
	for id := range sub.Answers {
		if _, ok := idx[id]; !ok {
			return model.GradingResult{}, fmt.Errorf("unknown question id %q: %w", id, model.ErrInvalidArgument)
		}
	}

	results := make([]model.QuestionResult, len(quiz.Questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.judgeConcurrency)
	for i, q := range quiz.Questions {
		answer := sub.Answers[q.ID]
		results[i] = model.QuestionResult{
			QuestionID:    q.ID,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
		}
		if strings.TrimSpace(answer) == "" {
			results[i].Feedback = i18n.Td(ctx, "FeedbackUnanswered", map[string]any{"Answer": q.CorrectAnswer})
			continue
		}
		strategy, ok := e.strategies[q.Type]
		if !ok {
			slog.Warn("no grading strategy", "question_id", q.ID, "type", q.Type)
			results[i].Feedback = i18n.Td(ctx, "FeedbackJudgeUnavailable", map[string]any{"Answer": q.CorrectAnswer})
			continue
		}
		g.Go(func() error {
			out := strategy.Grade(gctx, subject, q, answer)
			results[i].IsCorrect = out.Correct
			results[i].Feedback = out.Feedback
			switch {
			case out.Correct:
				results[i].PointsAwarded = float64(q.Weight())
			case out.Partial:
				results[i].PointsAwarded = PartialCredit * float64(q.Weight())
			}
			return nil
		})
	}
	// Strategies report failures through Outcome, so Wait never errors.
	_ = g.Wait()

	userID := sub.UserID
	if userID == "" {
		userID = AnonymousUser
	}
	res := model.GradingResult{
		QuizID:                  sub.QuizID,
		UserID:                  userID,
		GradedAt:                e.now().UTC(),
		QuestionResults:         results,
		OverallScore:            overallScore(quiz.Questions, results),
		PerformanceByTopic:      topicPerformance(quiz.Questions, results),
		PerformanceByDifficulty: difficultyPerformance(quiz.Questions, results),
	}
	res.Recommendations = Recommend(ctx, subject, res)
	return res, nil
}

type exactStrategy struct{}

// Grade compares case-sensitively and without trimming.
func (exactStrategy) Grade(ctx context.Context, _ string, q model.Question, answer string) Outcome {
	if answer == q.CorrectAnswer {
		return Outcome{Correct: true, Feedback: withExplanation(i18n.T(ctx, "FeedbackCorrect"), q)}
	}
	msg := i18n.Td(ctx, "FeedbackIncorrect", map[string]any{"Answer": q.CorrectAnswer})
	return Outcome{Feedback: withExplanation(msg, q)}
}

type judgeStrategy struct {
	judge Judge
}

func (s judgeStrategy) Grade(ctx context.Context, subject string, q model.Question, answer string) Outcome {
	unavailable := Outcome{Feedback: i18n.Td(ctx, "FeedbackJudgeUnavailable", map[string]any{"Answer": q.CorrectAnswer})}
	if s.judge == nil {
		return unavailable
	}
	j, err := s.judge.Judge(ctx, subject, q, answer)
	if err != nil {
		slog.Warn("short answer judge failed", "question_id", q.ID, "error", err)
		return unavailable
	}
	partial := j.PartiallyCorrect && !j.IsCorrect
	fb := strings.TrimSpace(j.Feedback)
	if fb == "" {
		switch {
		case j.IsCorrect:
			fb = i18n.T(ctx, "FeedbackCorrect")
		case partial:
			fb = i18n.Td(ctx, "FeedbackPartial", map[string]any{"Answer": q.CorrectAnswer})
		default:
			fb = i18n.Td(ctx, "FeedbackIncorrect", map[string]any{"Answer": q.CorrectAnswer})
		}
	}
	if hint := strings.TrimSpace(j.Hint); hint != "" && !j.IsCorrect {
		fb += " " + i18n.Td(ctx, "FeedbackHint", map[string]any{"Hint": hint})
	}
	return Outcome{Correct: j.IsCorrect, Partial: partial, Feedback: fb}
}

func withExplanation(msg string, q model.Question) string {
	if q.Explanation == "" {
		return msg
	}
	return msg + " " + q.Explanation
}
