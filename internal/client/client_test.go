package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/quizflow/internal/events"
	"github.com/pavelanni/quizflow/internal/grading"
	"github.com/pavelanni/quizflow/internal/handler"
	"github.com/pavelanni/quizflow/internal/llm"
	"github.com/pavelanni/quizflow/internal/model"
	"github.com/pavelanni/quizflow/internal/quizgen"
	"github.com/pavelanni/quizflow/internal/store"
)

type server struct {
	url    string
	mock   *llm.MockProvider
	runner *quizgen.Runner
}

func newServer(t *testing.T) *server {
	t.Helper()
	st, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	mock := llm.NewMockProvider()
	mock.Fallback = func(llm.Request) (json.RawMessage, error) {
		return quizgen.DemoQuizJSON(quizgen.DefaultNumQuestions)
	}
	gen, err := quizgen.NewLLMGenerator(mock, quizgen.DefaultConfig())
	require.NoError(t, err)

	pub := &events.Recorder{}
	runner := quizgen.NewRunner(gen, st, pub, quizgen.RunnerConfig{Workers: 1, QueueSize: 4, Timeout: 5 * time.Second})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		runner.Shutdown(ctx)
	})

	svc := grading.NewService(st, grading.NewEngine(grading.KeywordJudge{}), pub)
	h := handler.New(st, runner, svc, pub, handler.Config{
		Subjects:         []string{"Mathematics", "Data Science"},
		Version:          "test",
		EstimatedMinutes: quizgen.EstimatedMinutes(quizgen.DefaultNumQuestions),
	})
	r := chi.NewRouter()
	h.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &server{url: srv.URL, mock: mock, runner: runner}
}

func TestEndToEnd(t *testing.T) {
	srv := newServer(t)
	c := New(srv.url, WithUserID("erin"))
	ctx := context.Background()

	subjects, err := c.Subjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mathematics", "Data Science"}, subjects)

	gen, err := c.Generate(ctx, "Mathematics")
	require.NoError(t, err)
	assert.Equal(t, model.StatusGenerating, gen.Status)

	state := Reduce(NewAttempt(), SessionStarted{SessionID: gen.SessionID, Subject: "Mathematics"})
	err = NewPoller(c, gen.SessionID, 10*time.Millisecond).Run(ctx, func(ev PollEvent) {
		switch {
		case ev.Err != nil:
			state = Reduce(state, RequestFailed{Err: ev.Err})
		case ev.Quiz != nil:
			state = Reduce(state, QuizLoaded{Seq: ev.Seq, Quiz: ev.Quiz})
		default:
			state = Reduce(state, StatusObserved{Seq: ev.Seq, Status: ev.Status.Status, ErrorMessage: ev.Status.ErrorMessage})
		}
	})
	require.NoError(t, err)
	require.Equal(t, PhaseTaking, state.Phase)
	require.Len(t, state.Quiz.Questions, 25)
	assert.Equal(t, quizgen.EstimatedMinutes(25)*60, state.Remaining)

	for _, q := range state.Quiz.Questions {
		require.Empty(t, q.CorrectAnswer, "answer key leaked")
	}
	answers := quizgen.DemoQuiz(25)
	for _, q := range answers.Questions {
		state = Reduce(state, AnswerRecorded{QuestionID: q.ID, Answer: q.CorrectAnswer})
	}
	state = Reduce(state, SubmitStarted{})
	res, err := c.Submit(ctx, state.Submission(""))
	require.NoError(t, err)
	state = Reduce(state, SubmitSucceeded{Result: res})

	assert.Equal(t, PhaseCompleted, state.Phase)
	assert.Equal(t, "erin", res.UserID)
	assert.Equal(t, 25, res.OverallScore.TotalPoints)
	assert.LessOrEqual(t, res.OverallScore.PointsEarned, float64(res.OverallScore.TotalPoints))
	require.Len(t, res.QuestionResults, 25)
	for i, qr := range res.QuestionResults {
		assert.Equal(t, answers.Questions[i].ID, qr.QuestionID)
	}

	st, err := c.Status(ctx, gen.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, st.Status)

	stored, err := c.Result(ctx, gen.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.OverallScore, stored.OverallScore)

	_, err = c.Submit(ctx, state.Submission(""))
	assert.ErrorIs(t, err, model.ErrConflict)

	hist, err := c.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, gen.SessionID, hist[0].ID)

	require.NoError(t, c.Delete(ctx, gen.SessionID))
	require.NoError(t, c.Delete(ctx, gen.SessionID))
	_, err = c.Status(ctx, gen.SessionID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEndToEndGenerationFailure(t *testing.T) {
	srv := newServer(t)
	srv.mock.AddResponse(llm.MockResponse{Err: &llm.ErrProviderUnavailable{}})
	c := New(srv.url)
	ctx := context.Background()

	gen, err := c.Generate(ctx, "Data Science")
	require.NoError(t, err)

	var last *PollEvent
	err = NewPoller(c, gen.SessionID, 10*time.Millisecond).Run(ctx, func(ev PollEvent) { last = &ev })
	require.NoError(t, err)
	require.NotNil(t, last)
	require.NotNil(t, last.Status)
	assert.Equal(t, model.StatusFailed, last.Status.Status)
	assert.NotEmpty(t, last.Status.ErrorMessage)

	_, err = c.Quiz(ctx, gen.SessionID)
	assert.ErrorIs(t, err, model.ErrNotReady)
}

func TestClientErrors(t *testing.T) {
	srv := newServer(t)
	c := New(srv.url)
	ctx := context.Background()

	_, err := c.Generate(ctx, "Astrology")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.False(t, IsTransient(err))

	_, err = c.Result(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClientNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Subjects(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.True(t, IsTransient(err))
}
