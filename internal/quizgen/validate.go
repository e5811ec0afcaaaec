package quizgen

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/pavelanni/quizflow/internal/model"
)

// ValidationError lists every problem found in a generated quiz.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "generated quiz is invalid: " + e.Problems[0]
	}
	return fmt.Sprintf("generated quiz is invalid (%d problems): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// EstimatedMinutes is the completion time assumed when the model omits one.
func EstimatedMinutes(numQuestions int) int {
	return max(15, int(math.Ceil(float64(numQuestions)*1.5)))
}

// Normalize canonicalizes a generated quiz in place and checks the domain
// rules: exact question count, unique ids, every type present, four options
// for multiple choice with the key among them, and True/False keys.
// It returns a *ValidationError when the quiz cannot be used.
func Normalize(q *model.Quiz, subject string, want int) error {
	verr := &ValidationError{}

	if len(q.Questions) != want {
		verr.add("got %d questions, want %d", len(q.Questions), want)
	}

	seen := make(map[string]bool, len(q.Questions))
	types := make(map[model.QuestionType]int)
	coding := false

	for i := range q.Questions {
		qq := &q.Questions[i]
		qq.ID = strings.TrimSpace(qq.ID)
		if qq.ID == "" {
			qq.ID = fmt.Sprintf("q%d", i+1)
		}
		if seen[qq.ID] {
			verr.add("duplicate question id %q", qq.ID)
		}
		seen[qq.ID] = true

		qq.Question = strings.TrimSpace(qq.Question)
		if qq.Question == "" {
			verr.add("%s: empty question text", qq.ID)
		}
		if strings.TrimSpace(qq.Topic) == "" {
			qq.Topic = subject
		}
		if d, ok := canonicalDifficulty(qq.Difficulty); ok {
			qq.Difficulty = d
		} else {
			verr.add("%s: unknown difficulty %q", qq.ID, qq.Difficulty)
		}
		if qq.CodeSnippet != "" {
			coding = true
		}
		qq.Points = 0

		types[qq.Type]++
		switch qq.Type {
		case model.QuestionMultipleChoice:
			normalizeMultipleChoice(qq, verr)
		case model.QuestionTrueFalse:
			qq.Options = nil
			switch strings.ToLower(strings.TrimSpace(qq.CorrectAnswer)) {
			case "true":
				qq.CorrectAnswer = model.AnswerTrue
			case "false":
				qq.CorrectAnswer = model.AnswerFalse
			default:
				verr.add("%s: true/false answer %q", qq.ID, qq.CorrectAnswer)
			}
		case model.QuestionShortAnswer:
			qq.Options = nil
			qq.CorrectAnswer = strings.TrimSpace(qq.CorrectAnswer)
			if qq.CorrectAnswer == "" {
				verr.add("%s: short answer without reference answer", qq.ID)
			}
		default:
			verr.add("%s: unknown question type %q", qq.ID, qq.Type)
		}
	}

	if want >= len(model.QuestionTypes) {
		for _, t := range model.QuestionTypes {
			if types[t] == 0 {
				verr.add("no %s questions", t)
			}
		}
	}

	if len(verr.Problems) > 0 {
		return verr
	}

	dist := make(map[model.Difficulty]int, len(model.Difficulties))
	for _, qq := range q.Questions {
		dist[qq.Difficulty]++
	}
	q.Metadata.Subject = subject
	q.Metadata.TotalQuestions = len(q.Questions)
	q.Metadata.DifficultyDistribution = dist
	q.Metadata.IncludesCoding = q.Metadata.IncludesCoding || coding
	if q.Metadata.EstimatedTimeMinutes <= 0 {
		q.Metadata.EstimatedTimeMinutes = EstimatedMinutes(len(q.Questions))
	}
	return nil
}

func normalizeMultipleChoice(qq *model.Question, verr *ValidationError) {
	opts := make([]string, 0, len(qq.Options))
	for _, o := range qq.Options {
		opts = append(opts, strings.TrimSpace(o))
	}
	qq.Options = opts

	if len(opts) != 4 {
		verr.add("%s: multiple choice has %d options, want 4", qq.ID, len(opts))
		return
	}
	for i, o := range opts {
		if o == "" {
			verr.add("%s: empty option", qq.ID)
			return
		}
		if slices.Contains(opts[:i], o) {
			verr.add("%s: duplicate option %q", qq.ID, o)
			return
		}
	}

	key := strings.TrimSpace(qq.CorrectAnswer)
	if slices.Contains(opts, key) {
		qq.CorrectAnswer = key
		return
	}
	// Models often answer with the option letter or a case variant.
	if len(key) == 1 {
		if idx := strings.IndexByte("ABCD", key[0]&^0x20); idx >= 0 {
			qq.CorrectAnswer = opts[idx]
			return
		}
	}
	for _, o := range opts {
		if strings.EqualFold(o, key) {
			qq.CorrectAnswer = o
			return
		}
	}
	verr.add("%s: correct answer %q is not one of the options", qq.ID, qq.CorrectAnswer)
}

func canonicalDifficulty(d model.Difficulty) (model.Difficulty, bool) {
	for _, c := range model.Difficulties {
		if strings.EqualFold(strings.TrimSpace(string(d)), string(c)) {
			return c, true
		}
	}
	return d, false
}
