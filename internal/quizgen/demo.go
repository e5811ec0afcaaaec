package quizgen

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/quizflow/internal/llm/prompts"
	"github.com/pavelanni/quizflow/internal/model"
)

var demoTopics = []string{"Fundamentals", "Core Concepts", "Best Practices", "Tooling", "Problem Solving"}

// DemoQuiz builds a deterministic placeholder quiz with n questions that
// passes Normalize. It backs the "mock" LLM provider for offline runs.
func DemoQuiz(n int) model.Quiz {
	mc, tf, _ := prompts.QuestionMix(n)
	quiz := model.Quiz{
		Metadata: model.QuizMetadata{TotalQuestions: n, EstimatedTimeMinutes: EstimatedMinutes(n)},
	}
	for i := range n {
		q := model.Question{
			ID:          fmt.Sprintf("q%d", i+1),
			Difficulty:  model.Difficulties[i%len(model.Difficulties)],
			Topic:       demoTopics[i%len(demoTopics)],
			Subtopic:    "Sample",
			Explanation: "This is a demo question.",
		}
		switch {
		case i < mc:
			q.Type = model.QuestionMultipleChoice
			q.Question = fmt.Sprintf("Demo question %d: which option is marked correct?", i+1)
			q.Options = []string{"Option A", "Option B", "Option C", "Option D"}
			q.CorrectAnswer = q.Options[i%4]
		case i < mc+tf:
			q.Type = model.QuestionTrueFalse
			q.Question = fmt.Sprintf("Demo statement %d is true.", i+1)
			q.CorrectAnswer = model.AnswerTrue
			if i%2 == 1 {
				q.Question = fmt.Sprintf("Demo statement %d is false.", i+1)
				q.CorrectAnswer = model.AnswerFalse
			}
		default:
			q.Type = model.QuestionShortAnswer
			q.Question = fmt.Sprintf("Demo question %d: type the word 'demo'.", i+1)
			q.CorrectAnswer = "demo"
		}
		quiz.Questions = append(quiz.Questions, q)
	}
	return quiz
}

// DemoQuizJSON returns DemoQuiz(n) in the wire format the LLM would produce.
func DemoQuizJSON(n int) (json.RawMessage, error) {
	q := DemoQuiz(n)
	// Options and code_snippet are required by the schema even when empty.
	type wireQuestion struct {
		model.Question
		Options     []string `json:"options"`
		CodeSnippet string   `json:"code_snippet"`
	}
	wire := struct {
		Metadata  model.QuizMetadata `json:"quiz_metadata"`
		Questions []wireQuestion     `json:"questions"`
	}{Metadata: q.Metadata}
	for _, qq := range q.Questions {
		opts := qq.Options
		if opts == nil {
			opts = []string{}
		}
		wire.Questions = append(wire.Questions, wireQuestion{Question: qq, Options: opts, CodeSnippet: qq.CodeSnippet})
	}
	return json.Marshal(wire)
}
