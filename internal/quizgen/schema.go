package quizgen

import "github.com/pavelanni/quizflow/internal/llm"

// quizSchema is the structured-output contract for a generated quiz. Every
// property is required and closed so that strict OpenAI mode accepts it;
// optional fields are sent as empty strings or arrays.
var quizSchema = &llm.Schema{
	Name:        "quiz",
	Description: "A quiz with metadata and an ordered list of questions",
	Definition: map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"quiz_metadata", "questions"},
		"properties": map[string]any{
			"quiz_metadata": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"subject", "total_questions", "estimated_time_minutes", "includes_coding"},
				"properties": map[string]any{
					"subject":                map[string]any{"type": "string"},
					"total_questions":        map[string]any{"type": "integer"},
					"estimated_time_minutes": map[string]any{"type": "integer"},
					"includes_coding":        map[string]any{"type": "boolean"},
				},
			},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required": []string{
						"id", "type", "difficulty", "topic", "subtopic", "question",
						"options", "correct_answer", "explanation", "code_snippet",
					},
					"properties": map[string]any{
						"id":             map[string]any{"type": "string"},
						"type":           map[string]any{"type": "string", "enum": []string{"multiple_choice", "true_false", "short_answer"}},
						"difficulty":     map[string]any{"type": "string", "enum": []string{"Easy", "Medium", "Hard"}},
						"topic":          map[string]any{"type": "string"},
						"subtopic":       map[string]any{"type": "string"},
						"question":       map[string]any{"type": "string"},
						"options":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"correct_answer": map[string]any{"type": "string"},
						"explanation":    map[string]any{"type": "string"},
						"code_snippet":   map[string]any{"type": "string"},
					},
				},
			},
		},
	},
}

// QuizSchema returns the structured-output schema used for generation.
func QuizSchema() *llm.Schema {
	return quizSchema
}
