package grading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pavelanni/quizflow/internal/events"
	"github.com/pavelanni/quizflow/internal/metrics"
	"github.com/pavelanni/quizflow/internal/model"
)

// SessionStore is the part of the session store used by submissions.
type SessionStore interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	CompleteSession(ctx context.Context, id string, result model.GradingResult) error
}

// Service grades submissions and records the result. Each session is graded
// at most once: concurrent submissions are rejected while one is in flight
// and the store only completes a session that is still ready.
type Service struct {
	store  SessionStore
	engine *Engine
	pub    events.Publisher

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewService creates a submission service.
func NewService(store SessionStore, engine *Engine, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:    store,
		engine:   engine,
		pub:      pub,
		inflight: make(map[string]struct{}),
	}
}

// Submit grades sub and moves its session from ready to completed.
func (s *Service) Submit(ctx context.Context, sub model.Submission) (*model.GradingResult, error) {
	res, err := s.submit(ctx, sub)
	metrics.Submission(submissionOutcome(err))
	return res, err
}

func (s *Service) submit(ctx context.Context, sub model.Submission) (*model.GradingResult, error) {
	if sub.QuizID == "" {
		return nil, fmt.Errorf("quiz_id is required: %w", model.ErrInvalidArgument)
	}
	if !s.claim(sub.QuizID) {
		return nil, fmt.Errorf("session %s is already being graded: %w", sub.QuizID, model.ErrConflict)
	}
	defer s.release(sub.QuizID)

	sess, err := s.store.GetSession(ctx, sub.QuizID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case model.StatusReady:
	case model.StatusCompleted:
		return nil, fmt.Errorf("session %s is already graded: %w", sess.ID, model.ErrConflict)
	default:
		return nil, fmt.Errorf("session %s is %s: %w", sess.ID, sess.Status, model.ErrNotReady)
	}

	res, err := s.engine.Grade(ctx, sess.Subject, *sess.Quiz, sub)
	if err != nil {
		return nil, err
	}
	if err := s.store.CompleteSession(ctx, sess.ID, res); err != nil {
		return nil, err
	}

	metrics.QuizScore(res.OverallScore.Percentage)
	slog.Info("quiz graded",
		"session_id", sess.ID,
		"user_id", res.UserID,
		"percentage", res.OverallScore.Percentage,
		"grade", res.OverallScore.Grade,
	)

	ev := events.New(events.TypeQuizCompleted, sess.ID)
	ev.Subject, ev.Status, ev.UserID = sess.Subject, model.StatusCompleted, res.UserID
	pct := res.OverallScore.Percentage
	ev.Percentage, ev.Grade = &pct, res.OverallScore.Grade
	if err := s.pub.Publish(ctx, ev); err != nil {
		slog.Warn("publish event", "type", ev.Type, "session_id", sess.ID, "error", err)
	}
	return &res, nil
}

func (s *Service) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func submissionOutcome(err error) string {
	switch {
	case err == nil:
		return "graded"
	case errors.Is(err, model.ErrConflict):
		return "conflict"
	case errors.Is(err, model.ErrNotReady):
		return "not_ready"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrInvalidArgument):
		return "invalid"
	}
	return "error"
}
