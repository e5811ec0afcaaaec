package model

import (
	"fmt"
	"time"
)

// SessionStatus represents where a quiz session is in its lifecycle.
type SessionStatus string

const (
	// StatusGenerating means the quiz generation job has not finished yet.
	StatusGenerating SessionStatus = "generating"
	// StatusReady means the quiz is available to be taken.
	StatusReady SessionStatus = "ready"
	// StatusCompleted means answers were submitted and graded.
	StatusCompleted SessionStatus = "completed"
	// StatusFailed means quiz generation failed.
	StatusFailed SessionStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s SessionStatus) Valid() bool {
	switch s {
	case StatusGenerating, StatusReady, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition can leave s.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// HasQuiz reports whether a session in status s carries a quiz payload.
func (s SessionStatus) HasQuiz() bool {
	return s == StatusReady || s == StatusCompleted
}

// CanTransition reports whether a session may move from one status to another.
func CanTransition(from, to SessionStatus) bool {
	switch from {
	case StatusGenerating:
		return to == StatusReady || to == StatusFailed
	case StatusReady:
		return to == StatusCompleted
	}
	return false
}

// QuestionType is the kind of a quiz question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []QuestionType{QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer}

// Difficulty represents a question difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Difficulties lists the difficulty levels in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// True/false answer keys.
const (
	AnswerTrue  = "True"
	AnswerFalse = "False"
)

// DefaultQuestionPoints is the weight of a question that does not set one.
const DefaultQuestionPoints = 1

// Question is a single quiz item. CorrectAnswer and Explanation form the
// answer key and are stripped by Quiz.Public.
type Question struct {
	ID            string       `json:"id"`
	Type          QuestionType `json:"type"`
	Difficulty    Difficulty   `json:"difficulty"`
	Topic         string       `json:"topic"`
	Subtopic      string       `json:"subtopic,omitempty"`
	Question      string       `json:"question"`
	Options       []string     `json:"options,omitempty"`
	CodeSnippet   string       `json:"code_snippet,omitempty"`
	Points        int          `json:"points,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
}

// Weight returns the number of points the question is worth.
func (q Question) Weight() int {
	if q.Points > 0 {
		return q.Points
	}
	return DefaultQuestionPoints
}

// QuizMetadata describes a generated quiz.
type QuizMetadata struct {
	Subject                string             `json:"subject"`
	TotalQuestions         int                `json:"total_questions"`
	EstimatedTimeMinutes   int                `json:"estimated_time_minutes,omitempty"`
	DifficultyDistribution map[Difficulty]int `json:"difficulty_distribution,omitempty"`
	IncludesCoding         bool               `json:"includes_coding"`
}

// Quiz is an ordered set of questions. The order of Questions is canonical.
type Quiz struct {
	Metadata  QuizMetadata `json:"quiz_metadata"`
	Questions []Question   `json:"questions"`
}

// Public returns a copy of the quiz with the answer key removed.
func (q Quiz) Public() Quiz {
	out := Quiz{Metadata: q.Metadata, Questions: make([]Question, len(q.Questions))}
	for i, qq := range q.Questions {
		qq.CorrectAnswer = ""
		qq.Explanation = ""
		if qq.Options != nil {
			qq.Options = append([]string(nil), qq.Options...)
		}
		out.Questions[i] = qq
	}
	return out
}

// QuestionIndex maps question ids to their position in Questions.
func (q Quiz) QuestionIndex() map[string]int {
	idx := make(map[string]int, len(q.Questions))
	for i, qq := range q.Questions {
		idx[qq.ID] = i
	}
	return idx
}

// Session is a single quiz attempt tracked from generation to grading.
type Session struct {
	ID           string         `json:"session_id"`
	Subject      string         `json:"subject"`
	Status       SessionStatus  `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	UserID       string         `json:"user_id,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Quiz         *Quiz          `json:"quiz,omitempty"`
	Result       *GradingResult `json:"result,omitempty"`
}

// CheckInvariants verifies that the optional fields match the status.
func (s Session) CheckInvariants() error {
	if !s.Status.Valid() {
		return fmt.Errorf("session %s: unknown status %q", s.ID, s.Status)
	}
	if (s.Quiz != nil) != s.Status.HasQuiz() {
		return fmt.Errorf("session %s: quiz presence does not match status %s", s.ID, s.Status)
	}
	if (s.Result != nil) != (s.Status == StatusCompleted) {
		return fmt.Errorf("session %s: result presence does not match status %s", s.ID, s.Status)
	}
	if (s.ErrorMessage != "") != (s.Status == StatusFailed) {
		return fmt.Errorf("session %s: error message presence does not match status %s", s.ID, s.Status)
	}
	return nil
}

// SessionSummary is a history entry.
type SessionSummary struct {
	ID        string        `json:"session_id"`
	Subject   string        `json:"subject"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

// Submission carries a user's answers keyed by question id.
// Unanswered questions are absent from Answers.
type Submission struct {
	QuizID  string            `json:"quiz_id"`
	UserID  string            `json:"user_id,omitempty"`
	Answers map[string]string `json:"answers"`
}

// OverallScore summarizes a graded quiz.
type OverallScore struct {
	PointsEarned float64 `json:"points_earned" yaml:"points_earned"`
	TotalPoints  int     `json:"total_points" yaml:"total_points"`
	Percentage   float64 `json:"percentage" yaml:"percentage"`
	Grade        string  `json:"grade" yaml:"grade"`
}

// QuestionResult is the graded outcome of one question.
type QuestionResult struct {
	QuestionID    string  `json:"question_id"`
	UserAnswer    string  `json:"user_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	IsCorrect     bool    `json:"is_correct"`
	PointsAwarded float64 `json:"points_awarded"`
	Feedback      string  `json:"feedback"`
}

// TopicPerformance aggregates results for one topic.
type TopicPerformance struct {
	Topic             string  `json:"topic" yaml:"topic"`
	QuestionsAnswered int     `json:"questions_answered" yaml:"questions_answered"`
	CorrectAnswers    int     `json:"correct_answers" yaml:"correct_answers"`
	Percentage        float64 `json:"percentage" yaml:"percentage"`
}

// DifficultyPerformance aggregates results for one difficulty level.
type DifficultyPerformance struct {
	Correct int `json:"correct" yaml:"correct"`
	Total   int `json:"total" yaml:"total"`
}

// GradingResult is the stored outcome of grading a submission.
type GradingResult struct {
	QuizID                  string                               `json:"quiz_id"`
	UserID                  string                               `json:"user_id"`
	GradedAt                time.Time                            `json:"graded_at"`
	OverallScore            OverallScore                         `json:"overall_score"`
	QuestionResults         []QuestionResult                     `json:"question_results"`
	PerformanceByTopic      []TopicPerformance                   `json:"performance_by_topic"`
	PerformanceByDifficulty map[Difficulty]DifficultyPerformance `json:"performance_by_difficulty"`
	Recommendations         []string                             `json:"recommendations"`
}
