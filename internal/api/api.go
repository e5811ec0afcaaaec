// Package api holds the JSON request and response bodies of the QuizFlow
// REST API, shared by the server handlers and the client.
package api

import (
	"time"

	"github.com/pavelanni/quizflow/internal/model"
)

// Error codes returned in the "error" field of error responses.
const (
	CodeNotFound        = "not_found"
	CodeNotReady        = "not_ready"
	CodeConflict        = "conflict"
	CodeInvalidArgument = "invalid_argument"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

type HealthResponse struct {
	Message           string `json:"message"`
	Version           string `json:"version"`
	Status            string `json:"status"`
	SubjectsAvailable int    `json:"subjects_available"`
}

type SubjectsResponse struct {
	Subjects []string `json:"subjects"`
}

type GenerateRequest struct {
	Subject string `json:"subject"`
}

type GenerateResponse struct {
	SessionID            string              `json:"session_id"`
	Status               model.SessionStatus `json:"status"`
	Message              string              `json:"message"`
	EstimatedTimeMinutes int                 `json:"estimated_time_minutes"`
}

// StatusResponse is the status document of a session.
type StatusResponse struct {
	SessionID    string              `json:"session_id"`
	Status       model.SessionStatus `json:"status"`
	Subject      string              `json:"subject"`
	CreatedAt    time.Time           `json:"created_at"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

type QuizResponse struct {
	Quiz model.Quiz `json:"quiz"`
}

type HistoryResponse struct {
	Sessions []model.SessionSummary `json:"sessions"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
