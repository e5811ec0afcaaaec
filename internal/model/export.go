package model

import "time"

// HistoryExport is the top-level structure written by the export command.
type HistoryExport struct {
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Total      int             `json:"total" yaml:"total"`
	Completed  int             `json:"completed" yaml:"completed"`
	Sessions   []SessionExport `json:"sessions" yaml:"sessions"`
}

// SessionExport holds one session's data for export.
type SessionExport struct {
	SessionID       string             `json:"session_id" yaml:"session_id"`
	Subject         string             `json:"subject" yaml:"subject"`
	Status          SessionStatus      `json:"status" yaml:"status"`
	CreatedAt       time.Time          `json:"created_at" yaml:"created_at"`
	UserID          string             `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	ErrorMessage    string             `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	NumQuestions    int                `json:"num_questions" yaml:"num_questions"`
	Score           *OverallScore      `json:"score,omitempty" yaml:"score,omitempty"`
	Topics          []TopicPerformance `json:"topics,omitempty" yaml:"topics,omitempty"`
	Recommendations []string           `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
}
