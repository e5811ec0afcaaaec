package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/model"
)

// scriptedSource answers status requests from a script; the last entry
// repeats. A nil block channel means requests return immediately.
type scriptedSource struct {
	mu          sync.Mutex
	script      []statusStep
	statusCalls int
	quizCalls   int
	// quizErrs fail the first quiz fetches in order.
	quizErrs []error
	block    chan struct{}
}

type statusStep struct {
	status model.SessionStatus
	err    error
}

func (s *scriptedSource) Status(ctx context.Context, id string) (*api.StatusResponse, error) {
	s.mu.Lock()
	i := min(s.statusCalls, len(s.script)-1)
	s.statusCalls++
	step := s.script[i]
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if step.err != nil {
		return nil, step.err
	}
	resp := &api.StatusResponse{SessionID: id, Status: step.status}
	if step.status == model.StatusFailed {
		resp.ErrorMessage = "upstream failed"
	}
	return resp, nil
}

func (s *scriptedSource) Quiz(context.Context, string) (*model.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizCalls++
	if len(s.quizErrs) > 0 {
		err := s.quizErrs[0]
		s.quizErrs = s.quizErrs[1:]
		return nil, err
	}
	return &model.Quiz{Metadata: model.QuizMetadata{TotalQuestions: 1}}, nil
}

func (s *scriptedSource) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusCalls, s.quizCalls
}

type recorder struct {
	mu     sync.Mutex
	events []PollEvent
}

func (r *recorder) emit(ev PollEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func runWithTicks(t *testing.T, p *Poller, src *scriptedSource, n int) (*recorder, error) {
	t.Helper()
	ticks := make(chan time.Time)
	rec := &recorder{}
	done := make(chan error, 1)
	go func() { done <- p.run(context.Background(), ticks, rec.emit) }()

	for range n {
		select {
		case ticks <- time.Now():
			// Let the request triggered by this tick complete.
			time.Sleep(5 * time.Millisecond)
		case err := <-done:
			return rec, err
		}
	}
	select {
	case err := <-done:
		return rec, err
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
		return nil, nil
	}
}

func TestPollerReadyFetchesQuizOnce(t *testing.T) {
	src := &scriptedSource{script: []statusStep{
		{status: model.StatusGenerating},
		{status: model.StatusGenerating},
		{status: model.StatusReady},
	}}
	p := NewPoller(src, "s1", time.Hour)

	rec, err := runWithTicks(t, p, src, 10)
	require.NoError(t, err)

	statusCalls, quizCalls := src.calls()
	assert.Equal(t, 3, statusCalls)
	assert.Equal(t, 1, quizCalls)

	require.Len(t, rec.events, 4)
	assert.Equal(t, model.StatusGenerating, rec.events[0].Status.Status)
	assert.Equal(t, model.StatusReady, rec.events[2].Status.Status)
	assert.NotNil(t, rec.events[3].Quiz)
	for i := 1; i < len(rec.events); i++ {
		assert.Greater(t, rec.events[i].Seq, rec.events[i-1].Seq)
	}
}

func TestPollerRetriesFailedQuizFetch(t *testing.T) {
	src := &scriptedSource{
		script:   []statusStep{{status: model.StatusReady}},
		quizErrs: []error{errors.New("connection reset by peer")},
	}
	rec, err := runWithTicks(t, NewPoller(src, "s1", time.Hour), src, 5)
	require.NoError(t, err)

	statusCalls, quizCalls := src.calls()
	assert.Equal(t, 1, statusCalls, "status is not polled again after ready")
	assert.Equal(t, 2, quizCalls)

	require.Len(t, rec.events, 3)
	assert.Equal(t, model.StatusReady, rec.events[0].Status.Status)
	assert.ErrorContains(t, rec.events[1].Err, "connection reset by peer")
	assert.NotNil(t, rec.events[2].Quiz)
}

func TestPollerStopsWhenQuizIsGone(t *testing.T) {
	src := &scriptedSource{
		script:   []statusStep{{status: model.StatusReady}},
		quizErrs: []error{&APIError{StatusCode: 404, Code: api.CodeNotFound}},
	}
	_, err := runWithTicks(t, NewPoller(src, "s1", time.Hour), src, 3)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPollerStopsOnFailed(t *testing.T) {
	src := &scriptedSource{script: []statusStep{{status: model.StatusFailed}}}
	rec, err := runWithTicks(t, NewPoller(src, "s1", time.Hour), src, 3)
	require.NoError(t, err)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "upstream failed", rec.events[0].Status.ErrorMessage)
	_, quizCalls := src.calls()
	assert.Zero(t, quizCalls)
}

func TestPollerRetriesTransientErrors(t *testing.T) {
	src := &scriptedSource{script: []statusStep{
		{err: errors.New("connection reset")},
		{err: &APIError{StatusCode: 503, Code: api.CodeUnavailable}},
		{status: model.StatusCompleted},
	}}
	rec, err := runWithTicks(t, NewPoller(src, "s1", time.Hour), src, 5)
	require.NoError(t, err)

	require.Len(t, rec.events, 3)
	assert.Error(t, rec.events[0].Err)
	assert.Error(t, rec.events[1].Err)
	assert.Equal(t, model.StatusCompleted, rec.events[2].Status.Status)
}

func TestPollerStopsOnNotFound(t *testing.T) {
	src := &scriptedSource{script: []statusStep{{err: &APIError{StatusCode: 404, Code: api.CodeNotFound}}}}
	_, err := runWithTicks(t, NewPoller(src, "gone", time.Hour), src, 3)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestPollerSkipsTicksWhileInFlight(t *testing.T) {
	src := &scriptedSource{
		script: []statusStep{{status: model.StatusCompleted}},
		block:  make(chan struct{}),
	}
	p := NewPoller(src, "s1", time.Hour)
	ticks := make(chan time.Time, 10)
	for range 10 {
		ticks <- time.Now()
	}

	done := make(chan error, 1)
	go func() { done <- p.run(context.Background(), ticks, func(PollEvent) {}) }()

	require.Eventually(t, func() bool {
		n, _ := src.calls()
		return len(ticks) == 0 && n == 1
	}, 5*time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	statusCalls, _ := src.calls()
	assert.Equal(t, 1, statusCalls)

	close(src.block)
	require.NoError(t, <-done)
}

func TestPollerCancel(t *testing.T) {
	src := &scriptedSource{script: []statusStep{{status: model.StatusGenerating}}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewPoller(src, "s1", 10*time.Millisecond).Run(ctx, func(PollEvent) {}) }()

	require.Eventually(t, func() bool { n, _ := src.calls(); return n >= 2 }, 5*time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poller ignored cancellation")
	}
}

func TestSequencerDiscardsStale(t *testing.T) {
	var s Sequencer
	first, second, third := s.Next(), s.Next(), s.Next()

	assert.True(t, s.Accept(second))
	assert.False(t, s.Accept(first), "older response after newer one")
	assert.False(t, s.Accept(second), "duplicate response")
	assert.True(t, s.Accept(third))
}
