// Package prompts renders the quiz-generation and short-answer judging prompts.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/quizflow/internal/model"
)

//go:embed templates/*.txt
var Templates embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// maxAnswerRunes bounds the user answer passed to the judge.
const maxAnswerRunes = 10000

// PromptVariant selects how strictly short answers are judged.
type PromptVariant string

const (
	PromptStrict   PromptVariant = "strict"
	PromptStandard PromptVariant = "standard"
	PromptLenient  PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce       sync.Once
	loadErr        error
	generateTmpl   *template.Template
	judgeTemplates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// GenerateData holds template data for the quiz-generation prompt.
type GenerateData struct {
	Subject        string
	NumQuestions   int
	MultipleChoice int
	TrueFalse      int
	ShortAnswer    int
	IncludeCoding  bool
	AvoidTopics    string
}

// JudgeData holds template data for the short-answer judging prompt.
type JudgeData struct {
	Subject   string
	Question  string
	Reference string
	Answer    string
}

// Load parses the templates under templates/ in fsys. Only the first call
// has any effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		gen, err := parse(fsys, "templates/generate.txt")
		if err != nil {
			loadErr = err
			return
		}
		judge := make(map[PromptVariant]*template.Template, len(validVariants))
		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			tmpl, err := parse(fsys, "templates/judge_"+string(v)+".txt")
			if err != nil {
				loadErr = err
				return
			}
			judge[v] = tmpl
		}
		generateTmpl, judgeTemplates = gen, judge
	})
	return loadErr
}

func parse(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

// BuildGeneratePrompt renders the quiz-generation prompt.
func BuildGeneratePrompt(data GenerateData) (string, error) {
	if generateTmpl == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	var buf bytes.Buffer
	if err := generateTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildJudgePrompt renders the judging prompt for one short-answer question.
func BuildJudgePrompt(variant PromptVariant, subject string, q model.Question, answer string) (string, error) {
	if judgeTemplates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := judgeTemplates[variant]
	if !ok {
		return "", errors.New("invalid prompt variant: " + string(variant))
	}

	data := JudgeData{
		Subject:   subject,
		Question:  q.Question,
		Reference: q.CorrectAnswer,
		Answer:    sanitizeAnswer(answer),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// QuestionMix splits n questions into multiple-choice, true/false and
// short-answer counts (roughly 60/25/15) with at least one of each when n >= 3.
func QuestionMix(n int) (mc, tf, sa int) {
	if n < 3 {
		return n, 0, 0
	}
	tf = max(1, n*25/100)
	sa = max(1, n*15/100)
	mc = n - tf - sa
	return mc, tf, sa
}

var codingSubjects = []string{"python", "javascript", "computer science", "programming"}

// IncludesCoding reports whether quizzes for subject should contain code snippets.
func IncludesCoding(subject string) bool {
	s := strings.ToLower(subject)
	for _, c := range codingSubjects {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
