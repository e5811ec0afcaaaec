package tui

import (
	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/client"
	"github.com/pavelanni/quizflow/internal/model"
)

// subjectsMsg carries the subject list.
type subjectsMsg struct {
	Subjects []string
	Err      error
}

// generatedMsg is sent when generate-quiz answered.
type generatedMsg struct {
	Resp *api.GenerateResponse
	Err  error
}

// pollMsg wraps a poller event. Done is set when the poller stopped.
type pollMsg struct {
	Event client.PollEvent
	Done  bool
	Err   error
}

// countdownTickMsg is sent every second while the quiz is being taken.
type countdownTickMsg struct{}

// retrySubmitMsg retries the automatic submission after time ran out.
type retrySubmitMsg struct{}

// submittedMsg is sent when grading answered.
type submittedMsg struct {
	Result *model.GradingResult
	Err    error
}
