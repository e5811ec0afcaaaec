package client

import (
	"maps"

	"github.com/pavelanni/quizflow/internal/model"
)

// Phase is the stage of a quiz attempt as seen by the user.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseGenerating Phase = "generating"
	PhaseTaking     Phase = "taking"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// AttemptState is an immutable snapshot of a quiz attempt. Reduce returns a
// new value and never modifies the one it was given.
type AttemptState struct {
	Phase     Phase
	SessionID string
	Subject   string
	Quiz      *model.Quiz
	// Answers maps question ids to the recorded answer.
	Answers map[string]string
	// Current is the index of the question on screen.
	Current   int
	Remaining int
	Result    *model.GradingResult
	// Err is the last error worth showing. It does not change the phase
	// except for a failed generation.
	Err string
	// LastSeq is the sequence number of the newest applied poll response.
	LastSeq uint64
}

// Event is an input to Reduce.
type Event interface{ attemptEvent() }

type (
	// SessionStarted records the id returned by generate-quiz.
	SessionStarted struct {
		SessionID string
		Subject   string
	}
	// StatusObserved is an applied status poll response.
	StatusObserved struct {
		Seq          uint64
		Status       model.SessionStatus
		ErrorMessage string
	}
	// QuizLoaded carries the public quiz of a ready session.
	QuizLoaded struct {
		Seq  uint64
		Quiz *model.Quiz
	}
	// RequestFailed reports a failed poll or fetch that will be retried.
	RequestFailed struct{ Err error }
	// AnswerRecorded stores or replaces the answer to a question.
	AnswerRecorded struct {
		QuestionID string
		Answer     string
	}
	// Navigated moves the current question by Delta.
	Navigated struct{ Delta int }
	// Ticked carries the countdown's remaining seconds.
	Ticked struct{ Remaining int }
	// SubmitStarted marks the submission as in flight.
	SubmitStarted struct{}
	// SubmitFailed returns to taking with answers kept.
	SubmitFailed struct{ Err error }
	// SubmitSucceeded carries the grading result.
	SubmitSucceeded struct{ Result *model.GradingResult }
)

func (SessionStarted) attemptEvent()  {}
func (StatusObserved) attemptEvent()  {}
func (QuizLoaded) attemptEvent()      {}
func (RequestFailed) attemptEvent()   {}
func (AnswerRecorded) attemptEvent()  {}
func (Navigated) attemptEvent()       {}
func (Ticked) attemptEvent()          {}
func (SubmitStarted) attemptEvent()   {}
func (SubmitFailed) attemptEvent()    {}
func (SubmitSucceeded) attemptEvent() {}

// NewAttempt returns the initial state.
func NewAttempt() AttemptState {
	return AttemptState{Phase: PhaseLoading, Answers: map[string]string{}}
}

// Reduce applies ev to s. Events that do not fit the current phase leave
// the state unchanged.
func Reduce(s AttemptState, ev Event) AttemptState {
	switch e := ev.(type) {
	case SessionStarted:
		if s.Phase != PhaseLoading {
			return s
		}
		s.Phase = PhaseGenerating
		s.SessionID, s.Subject = e.SessionID, e.Subject
		s.Err = ""

	case StatusObserved:
		if e.Seq <= s.LastSeq || s.Phase != PhaseGenerating {
			return s
		}
		s.LastSeq = e.Seq
		s.Err = ""
		if e.Status == model.StatusFailed {
			s.Phase = PhaseFailed
			s.Err = e.ErrorMessage
		}

	case QuizLoaded:
		if e.Seq <= s.LastSeq || s.Phase != PhaseGenerating || e.Quiz == nil {
			return s
		}
		s.LastSeq = e.Seq
		s.Phase = PhaseTaking
		s.Quiz = e.Quiz
		s.Current = 0
		s.Remaining = quizSeconds(e.Quiz)
		s.Err = ""

	case RequestFailed:
		if s.Phase == PhaseCompleted || s.Phase == PhaseFailed || e.Err == nil {
			return s
		}
		s.Err = e.Err.Error()

	case AnswerRecorded:
		if s.Phase != PhaseTaking {
			return s
		}
		answers := maps.Clone(s.Answers)
		if answers == nil {
			answers = map[string]string{}
		}
		if e.Answer == "" {
			delete(answers, e.QuestionID)
		} else {
			answers[e.QuestionID] = e.Answer
		}
		s.Answers = answers

	case Navigated:
		if s.Phase != PhaseTaking || s.Quiz == nil || len(s.Quiz.Questions) == 0 {
			return s
		}
		s.Current = min(max(s.Current+e.Delta, 0), len(s.Quiz.Questions)-1)

	case Ticked:
		if s.Phase != PhaseTaking && s.Phase != PhaseSubmitting {
			return s
		}
		s.Remaining = max(e.Remaining, 0)

	case SubmitStarted:
		if s.Phase != PhaseTaking {
			return s
		}
		s.Phase = PhaseSubmitting
		s.Err = ""

	case SubmitFailed:
		if s.Phase != PhaseSubmitting {
			return s
		}
		s.Phase = PhaseTaking
		if e.Err != nil {
			s.Err = e.Err.Error()
		}

	case SubmitSucceeded:
		if s.Phase != PhaseSubmitting {
			return s
		}
		s.Phase = PhaseCompleted
		s.Result = e.Result
		s.Err = ""
	}
	return s
}

// Submission builds the request for the recorded answers.
func (s AttemptState) Submission(userID string) model.Submission {
	return model.Submission{QuizID: s.SessionID, UserID: userID, Answers: maps.Clone(s.Answers)}
}

// Answered returns how many questions have an answer.
func (s AttemptState) Answered() int {
	return len(s.Answers)
}

func quizSeconds(q *model.Quiz) int {
	minutes := q.Metadata.EstimatedTimeMinutes
	if minutes <= 0 {
		minutes = DefaultQuizMinutes
	}
	return minutes * 60
}

// QuizMinutes returns the countdown length in minutes for q.
func QuizMinutes(q *model.Quiz) int {
	return quizSeconds(q) / 60
}
