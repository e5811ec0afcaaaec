package quizgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/quizflow/internal/events"
	"github.com/pavelanni/quizflow/internal/metrics"
	"github.com/pavelanni/quizflow/internal/model"
)

var (
	// ErrQueueFull is returned by Submit when no worker slot is free.
	ErrQueueFull = errors.New("generation queue is full")
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("generation runner is shut down")
)

// SessionWriter is the part of the session store the runner writes to.
type SessionWriter interface {
	MarkReady(ctx context.Context, id string, quiz model.Quiz) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// RunnerConfig sizes the worker pool.
type RunnerConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single generation job.
	Timeout time.Duration
}

// DefaultRunnerConfig returns the pool settings used by the server.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Workers: 4, QueueSize: 64, Timeout: 8 * time.Minute}
}

type job struct {
	sessionID string
	subject   string
}

// Runner executes generation jobs on a bounded worker pool. Each session id
// is accepted at most once per process, and each job ends with exactly one
// MarkReady or MarkFailed call.
type Runner struct {
	gen    Generator
	store  SessionWriter
	pub    events.Publisher
	cfg    RunnerConfig
	logger *slog.Logger

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	seen   map[string]struct{}
	closed bool
}

// NewRunner starts the worker pool.
func NewRunner(gen Generator, store SessionWriter, pub events.Publisher, cfg RunnerConfig) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if pub == nil {
		pub = events.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		gen:    gen,
		store:  store,
		pub:    pub,
		cfg:    cfg,
		logger: slog.Default().With("component", "quizgen"),
		jobs:   make(chan job, cfg.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		seen:   make(map[string]struct{}),
	}
	for range cfg.Workers {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit queues generation for a session already stored as generating.
func (r *Runner) Submit(sessionID, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, dup := r.seen[sessionID]; dup {
		return fmt.Errorf("generation for session %s already started: %w", sessionID, model.ErrConflict)
	}

	select {
	case r.jobs <- job{sessionID: sessionID, subject: subject}:
		r.seen[sessionID] = struct{}{}
		return nil
	default:
		metrics.GenerationDropped()
		return ErrQueueFull
	}
}

// Shutdown stops accepting jobs, cancels running ones and waits for the
// workers to record their outcome or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for j := range r.jobs {
		r.run(j)
	}
}

func (r *Runner) run(j job) {
	log := r.logger.With("session_id", j.sessionID, "subject", j.subject)
	finish := metrics.GenerationStarted()

	var (
		quiz *model.Quiz
		err  error
	)
	if r.ctx.Err() != nil {
		err = fmt.Errorf("server shutting down: %w", r.ctx.Err())
	} else {
		ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
		start := time.Now()
		quiz, err = r.gen.Generate(ctx, j.subject)
		cancel()
		log = log.With("elapsed", time.Since(start).Round(time.Millisecond))
	}

	// The job context may be cancelled or expired; the outcome is still recorded.
	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err != nil {
		reason := FailureReason(err)
		werr := r.store.MarkFailed(writeCtx, j.sessionID, reason)
		if r.recordWriteError(log, werr) {
			finish("dropped")
			return
		}
		log.Warn("quiz generation failed", "error", err)
		finish("failed")
		ev := events.New(events.TypeQuizFailed, j.sessionID)
		ev.Subject, ev.Status, ev.Error = j.subject, model.StatusFailed, reason
		r.publish(writeCtx, log, ev)
		return
	}

	werr := r.store.MarkReady(writeCtx, j.sessionID, *quiz)
	if r.recordWriteError(log, werr) {
		finish("dropped")
		return
	}
	log.Info("quiz ready", "questions", len(quiz.Questions))
	finish("ready")
	ev := events.New(events.TypeQuizReady, j.sessionID)
	ev.Subject, ev.Status = j.subject, model.StatusReady
	r.publish(writeCtx, log, ev)
}

// recordWriteError logs a failed store write and reports whether the job
// outcome was discarded.
func (r *Runner) recordWriteError(log *slog.Logger, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, model.ErrNotFound):
		log.Info("session deleted during generation, discarding result")
	case errors.Is(err, model.ErrConflict):
		log.Warn("session already left generating, discarding result", "error", err)
	default:
		log.Error("store generation outcome", "error", err)
	}
	return true
}

func (r *Runner) publish(ctx context.Context, log *slog.Logger, ev events.Event) {
	if err := r.pub.Publish(ctx, ev); err != nil {
		log.Warn("publish event", "type", ev.Type, "error", err)
	}
}
