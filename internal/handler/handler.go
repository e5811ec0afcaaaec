package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/events"
	"github.com/pavelanni/quizflow/internal/i18n"
	"github.com/pavelanni/quizflow/internal/metrics"
	"github.com/pavelanni/quizflow/internal/model"
)

// DefaultSubjects is the published subject list.
var DefaultSubjects = []string{
	"Computer Science", "Python Programming", "JavaScript Programming",
	"Artificial Intelligence & Machine Learning", "Data Science",
	"Cybersecurity", "Cloud Computing", "Database Management",
	"Operating Systems", "Computer Networks", "Software Engineering",
}

// SessionStore is the session persistence used by the API.
type SessionStore interface {
	CreateSession(ctx context.Context, sess *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context, limit int) ([]model.SessionSummary, error)
	DeleteSession(ctx context.Context, id string) (bool, error)
	CountByStatus(ctx context.Context) (map[model.SessionStatus]int, error)
}

// JobQueue starts background quiz generation for a stored session.
type JobQueue interface {
	Submit(sessionID, subject string) error
}

// Grader grades a submission and completes its session.
type Grader interface {
	Submit(ctx context.Context, sub model.Submission) (*model.GradingResult, error)
}

// Config holds the API settings.
type Config struct {
	Subjects []string
	Version  string
	// EstimatedMinutes is reported to clients when generation starts.
	EstimatedMinutes int
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  SessionStore
	jobs   JobQueue
	grader Grader
	pub    events.Publisher
	config Config
}

// New creates a new Handler.
func New(s SessionStore, jobs JobQueue, g Grader, pub events.Publisher, cfg Config) *Handler {
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = DefaultSubjects
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &Handler{store: s, jobs: jobs, grader: g, pub: pub, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(i18n.Middleware)
	r.Use(userIdentity)

	r.Get("/", h.handleHealth)
	r.Get("/subjects", h.handleSubjects)
	r.Post("/generate-quiz", h.handleGenerate)
	r.Get("/quiz-status/{sessionID}", h.handleStatus)
	r.Get("/quiz/{sessionID}", h.handleQuiz)
	r.Post("/submit-answers", h.handleSubmit)
	r.Get("/history", h.handleHistory)
	r.Get("/results/{sessionID}", h.handleResults)
	r.Delete("/sessions/{sessionID}", h.handleDelete)
	r.Get("/metrics", h.handleMetrics)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Message:           i18n.T(r.Context(), "HealthMessage"),
		Version:           h.config.Version,
		Status:            "healthy",
		SubjectsAvailable: len(h.config.Subjects),
	})
}

func (h *Handler) handleSubjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.SubjectsResponse{Subjects: h.config.Subjects})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !slices.Contains(h.config.Subjects, req.Subject) {
		writeError(w, fmt.Errorf("invalid subject %q: %w", req.Subject, model.ErrInvalidArgument))
		return
	}

	ctx := r.Context()
	sess := &model.Session{
		ID:        uuid.NewString(),
		Subject:   req.Subject,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateSession(ctx, sess); err != nil {
		writeError(w, err)
		return
	}
	// Published before queueing so a fast worker's quiz.ready or quiz.failed
	// cannot overtake it.
	slog.Info("quiz generation requested", "session_id", sess.ID, "subject", sess.Subject)
	ev := events.New(events.TypeQuizRequested, sess.ID)
	ev.Subject, ev.Status = sess.Subject, model.StatusGenerating
	h.publish(ctx, ev)

	if err := h.jobs.Submit(sess.ID, sess.Subject); err != nil {
		// The session never reaches a worker, so it must not linger in generating.
		if _, derr := h.store.DeleteSession(context.WithoutCancel(ctx), sess.ID); derr != nil {
			slog.Error("remove unqueued session", "session_id", sess.ID, "error", derr)
		}
		h.publish(context.WithoutCancel(ctx), events.New(events.TypeSessionDeleted, sess.ID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, api.GenerateResponse{
		SessionID:            sess.ID,
		Status:               model.StatusGenerating,
		Message:              i18n.Td(ctx, "GenerationStarted", map[string]any{"Subject": sess.Subject}),
		EstimatedTimeMinutes: h.config.EstimatedMinutes,
	})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.StatusResponse{
		SessionID:    sess.ID,
		Status:       sess.Status,
		Subject:      sess.Subject,
		CreatedAt:    sess.CreatedAt,
		ErrorMessage: sess.ErrorMessage,
	})
}

func (h *Handler) handleQuiz(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !sess.Status.HasQuiz() || sess.Quiz == nil {
		writeError(w, fmt.Errorf("session %s is %s: %w", sess.ID, sess.Status, model.ErrNotReady))
		return
	}
	writeJSON(w, http.StatusOK, api.QuizResponse{Quiz: sess.Quiz.Public()})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, err)
		return
	}
	if sub.UserID == "" {
		sub.UserID = userIDFrom(r.Context())
	}

	res, err := h.grader.Submit(r.Context(), sub)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, fmt.Errorf("invalid limit %q: %w", v, model.ErrInvalidArgument))
			return
		}
		limit = n
	}

	sessions, err := h.store.ListSessions(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, api.HistoryResponse{Sessions: sessions})
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	sess, err := h.store.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Status != model.StatusCompleted || sess.Result == nil {
		writeError(w, fmt.Errorf("session %s is %s: %w", sess.ID, sess.Status, model.ErrNotReady))
		return
	}
	writeJSON(w, http.StatusOK, sess.Result)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	existed, err := h.store.DeleteSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existed {
		slog.Info("session deleted", "session_id", id)
		h.publish(r.Context(), events.New(events.TypeSessionDeleted, id))
	}
	writeJSON(w, http.StatusOK, api.MessageResponse{
		Message: i18n.Td(r.Context(), "SessionDeleted", map[string]any{"ID": id}),
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.CountByStatus(r.Context())
	if err != nil {
		slog.Warn("count sessions for metrics", "error", err)
	} else {
		byName := make(map[string]int, len(counts))
		for st, n := range counts {
			byName[string(st)] = n
		}
		metrics.SetSessionCounts(byName, statusNames())
	}
	metrics.Handler().ServeHTTP(w, r)
}

func (h *Handler) publish(ctx context.Context, ev events.Event) {
	if err := h.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		slog.Warn("publish event", "type", ev.Type, "session_id", ev.SessionID, "error", err)
	}
}

func statusNames() []string {
	return []string{
		string(model.StatusGenerating),
		string(model.StatusReady),
		string(model.StatusCompleted),
		string(model.StatusFailed),
	}
}

// errorCode maps domain errors to an HTTP status and a stable code.
func errorCode(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, api.CodeNotFound
	case errors.Is(err, model.ErrNotReady):
		return http.StatusConflict, api.CodeNotReady
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict, api.CodeConflict
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest, api.CodeInvalidArgument
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, api.CodeInvalidArgument
	case isUnavailable(err):
		return http.StatusServiceUnavailable, api.CodeUnavailable
	}
	return http.StatusInternalServerError, api.CodeInternal
}

func trimDetail(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{model.ErrNotFound, model.ErrNotReady, model.ErrConflict, model.ErrInvalidArgument} {
		msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	}
	return msg
}
