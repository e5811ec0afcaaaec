package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/model"
)

// DefaultPollInterval is the period between status requests.
const DefaultPollInterval = 3 * time.Second

// StatusSource is the part of the API the poller uses.
type StatusSource interface {
	Status(ctx context.Context, sessionID string) (*api.StatusResponse, error)
	Quiz(ctx context.Context, sessionID string) (*model.Quiz, error)
}

// PollEvent is delivered for every applied poll response. Exactly one of
// Status, Quiz or Err is set.
type PollEvent struct {
	Seq    uint64
	Status *api.StatusResponse
	Quiz   *model.Quiz
	Err    error
}

// Sequencer hands out request numbers and accepts a response only if no
// newer response was applied before it.
type Sequencer struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
}

// Next returns the number for a new request.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Accept reports whether the response to request seq is still current and,
// if so, records it as the newest applied response.
func (s *Sequencer) Accept(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.applied {
		return false
	}
	s.applied = seq
	return true
}

// Poller watches one session until it leaves generating. It keeps at most
// one request in flight and skips ticks that fire while one is outstanding.
// When the session becomes ready it fetches the quiz until one fetch succeeds.
type Poller struct {
	src       StatusSource
	sessionID string
	interval  time.Duration
	// RequestTimeout bounds each request; zero means twice the interval.
	RequestTimeout time.Duration

	seq Sequencer
}

// NewPoller creates a poller. A zero interval uses DefaultPollInterval.
func NewPoller(src StatusSource, sessionID string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{src: src, sessionID: sessionID, interval: interval}
}

type pollResult struct {
	seq  uint64
	st   *api.StatusResponse
	quiz *model.Quiz
	err  error
}

// Run polls until a terminal outcome, NotFound or ctx is cancelled. emit is
// called from Run's goroutine only. The first request is sent immediately.
// Failed requests, including the quiz fetch after ready, are reported and
// retried on the next tick. Run returns nil after delivering the quiz or a
// terminal status, ctx.Err() on cancellation, and the error on NotFound.
func (p *Poller) Run(ctx context.Context, emit func(PollEvent)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	return p.run(ctx, ticker.C, emit)
}

func (p *Poller) run(ctx context.Context, ticks <-chan time.Time, emit func(PollEvent)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan pollResult, 1)
	inFlight := false
	// ready switches the poller from status requests to quiz fetches.
	ready := false
	issue := func() {
		inFlight = true
		seq := p.seq.Next()
		fetch := ready
		go func() {
			rctx, rcancel := context.WithTimeout(ctx, p.requestTimeout())
			defer rcancel()
			res := pollResult{seq: seq}
			if fetch {
				res.quiz, res.err = p.src.Quiz(rctx, p.sessionID)
				if res.err != nil {
					res.err = fmt.Errorf("fetch quiz: %w", res.err)
				}
			} else {
				res.st, res.err = p.src.Status(rctx, p.sessionID)
			}
			select {
			case results <- res:
			case <-ctx.Done():
			}
		}()
	}

	issue()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			if !inFlight {
				issue()
			}
		case res := <-results:
			inFlight = false
			if !p.seq.Accept(res.seq) {
				continue
			}
			if res.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				emit(PollEvent{Seq: res.seq, Err: res.err})
				if errors.Is(res.err, model.ErrNotFound) {
					return res.err
				}
				continue
			}
			if res.quiz != nil {
				emit(PollEvent{Seq: res.seq, Quiz: res.quiz})
				return nil
			}
			emit(PollEvent{Seq: res.seq, Status: res.st})

			switch res.st.Status {
			case model.StatusGenerating:
				continue
			case model.StatusReady:
				ready = true
				issue()
			default:
				return nil
			}
		}
	}
}

func (p *Poller) requestTimeout() time.Duration {
	if p.RequestTimeout > 0 {
		return p.RequestTimeout
	}
	return 2 * p.interval
}
