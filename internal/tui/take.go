// Package tui is the terminal client for taking a quiz.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"

	"github.com/pavelanni/quizflow/internal/api"
	"github.com/pavelanni/quizflow/internal/client"
	"github.com/pavelanni/quizflow/internal/model"
)

// API is the part of the REST client the UI uses.
type API interface {
	client.StatusSource
	Subjects(ctx context.Context) ([]string, error)
	Generate(ctx context.Context, subject string) (*api.GenerateResponse, error)
	Submit(ctx context.Context, sub model.Submission) (*model.GradingResult, error)
}

// Options configure a take session.
type Options struct {
	// Subject skips the subject menu when set.
	Subject      string
	UserID       string
	PollInterval time.Duration
}

// Model is the Bubble Tea model of one quiz attempt.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	api    API
	opts   Options

	subjects  []string
	cursor    int
	requested bool

	state     client.AttemptState
	polls     chan pollMsg
	latch     *client.SubmitLatch
	countdown *client.Countdown
	autoDue   bool
	input     textinput.Model

	width int
}

// New creates the model. Cancelling ctx stops background polling.
func New(ctx context.Context, a API, opts Options) *Model {
	ctx, cancel := context.WithCancel(ctx)
	in := textinput.New()
	in.Placeholder = "Type your answer..."
	in.CharLimit = 2000
	return &Model{
		ctx:    ctx,
		cancel: cancel,
		api:    a,
		opts:   opts,
		state:  client.NewAttempt(),
		latch:  &client.SubmitLatch{},
		input:  in,
	}
}

// State returns the current attempt snapshot.
func (m *Model) State() client.AttemptState {
	return m.state
}

func (m *Model) Init() tea.Cmd {
	if m.opts.Subject != "" {
		m.requested = true
		return m.generateCmd(m.opts.Subject)
	}
	return m.subjectsCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	case subjectsMsg:
		if msg.Err != nil {
			m.state = client.Reduce(m.state, client.RequestFailed{Err: msg.Err})
			return m, nil
		}
		m.subjects = msg.Subjects
		return m, nil

	case generatedMsg:
		if msg.Err != nil {
			m.requested = false
			m.state = client.Reduce(m.state, client.RequestFailed{Err: msg.Err})
			return m, nil
		}
		m.state = client.Reduce(m.state, client.SessionStarted{SessionID: msg.Resp.SessionID, Subject: m.opts.Subject})
		return m, m.startPolling()

	case pollMsg:
		return m.handlePoll(msg)

	case countdownTickMsg:
		return m.handleTick()

	case submittedMsg:
		return m.handleSubmitted(msg)

	case retrySubmitMsg:
		return m, m.submit()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m.quit()
	}

	switch m.state.Phase {
	case client.PhaseLoading:
		return m.handleMenuKey(key)

	case client.PhaseTaking:
		return m.handleTakingKey(msg)

	case client.PhaseCompleted, client.PhaseFailed:
		if key == "q" || key == "esc" || key == "enter" {
			return m.quit()
		}

	case client.PhaseGenerating:
		if key == "esc" {
			return m.quit()
		}
	}
	return m, nil
}

func (m *Model) handleMenuKey(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.subjects)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.subjects) == 0 || m.requested {
			return m, nil
		}
		m.requested = true
		m.opts.Subject = m.subjects[m.cursor]
		return m, m.generateCmd(m.opts.Subject)
	case "esc", "q":
		return m.quit()
	}
	return m, nil
}

func (m *Model) handleTakingKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.timeUp() {
		// Answers are frozen; only a retry or quitting is left.
		switch msg.String() {
		case "esc":
			return m.quit()
		case "ctrl+s":
			return m, m.submit()
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		return m.quit()
	case "ctrl+s":
		m.saveInput()
		return m, m.submit()
	case "enter":
		m.saveInput()
		return m, m.move(1)
	case "left", "shift+tab":
		m.saveInput()
		return m, m.move(-1)
	case "right", "tab":
		m.saveInput()
		return m, m.move(1)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handlePoll(msg pollMsg) (tea.Model, tea.Cmd) {
	if msg.Done {
		if msg.Err != nil && m.state.Phase == client.PhaseGenerating {
			m.state = client.Reduce(m.state, client.RequestFailed{Err: msg.Err})
		}
		return m, nil
	}

	ev := msg.Event
	switch {
	case ev.Err != nil:
		m.state = client.Reduce(m.state, client.RequestFailed{Err: ev.Err})
	case ev.Quiz != nil:
		m.state = client.Reduce(m.state, client.QuizLoaded{Seq: ev.Seq, Quiz: ev.Quiz})
		if m.state.Phase == client.PhaseTaking && m.countdown == nil {
			m.countdown = client.NewCountdown(client.QuizMinutes(ev.Quiz), m.latch, func() { m.autoDue = true })
			m.input.SetValue("")
			return m, tea.Batch(m.waitPoll(), m.input.Focus(), tickCmd())
		}
	case ev.Status != nil:
		m.state = client.Reduce(m.state, client.StatusObserved{
			Seq:          ev.Seq,
			Status:       ev.Status.Status,
			ErrorMessage: ev.Status.ErrorMessage,
		})
	}
	return m, m.waitPoll()
}

func (m *Model) handleTick() (tea.Model, tea.Cmd) {
	if m.countdown == nil || m.state.Phase == client.PhaseCompleted {
		return m, nil
	}
	left := m.countdown.Tick()
	m.state = client.Reduce(m.state, client.Ticked{Remaining: left})

	if m.autoDue {
		m.autoDue = false
		m.saveInput()
		m.state = client.Reduce(m.state, client.SubmitStarted{})
		return m, m.submitCmd()
	}
	if left == 0 {
		return m, nil
	}
	return m, tickCmd()
}

func (m *Model) handleSubmitted(msg submittedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.latch.Release()
		m.state = client.Reduce(m.state, client.SubmitFailed{Err: msg.Err})
		if m.timeUp() {
			return m, retrySubmitCmd()
		}
		return m, nil
	}
	m.latch.Complete()
	m.state = client.Reduce(m.state, client.SubmitSucceeded{Result: msg.Result})
	m.input.Blur()
	return m, nil
}

// submit starts a manual submission unless one is already running.
func (m *Model) submit() tea.Cmd {
	if m.state.Phase != client.PhaseTaking || !m.latch.TryAcquire() {
		return nil
	}
	m.state = client.Reduce(m.state, client.SubmitStarted{})
	return m.submitCmd()
}

// timeUp reports whether the countdown reached zero. Past that point the
// recorded answers are submitted until one submission succeeds.
func (m *Model) timeUp() bool {
	return m.countdown != nil && m.countdown.Expired()
}

func (m *Model) saveInput() {
	q, ok := m.currentQuestion()
	if !ok {
		return
	}
	m.state = client.Reduce(m.state, client.AnswerRecorded{
		QuestionID: q.ID,
		Answer:     ResolveAnswer(q, m.input.Value()),
	})
}

func (m *Model) move(delta int) tea.Cmd {
	m.state = client.Reduce(m.state, client.Navigated{Delta: delta})
	if q, ok := m.currentQuestion(); ok {
		m.input.SetValue(m.state.Answers[q.ID])
		m.input.CursorEnd()
	}
	return nil
}

func (m *Model) currentQuestion() (model.Question, bool) {
	if m.state.Quiz == nil || m.state.Current >= len(m.state.Quiz.Questions) {
		return model.Question{}, false
	}
	return m.state.Quiz.Questions[m.state.Current], true
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancel()
	return m, tea.Quit
}

func (m *Model) subjectsCmd() tea.Cmd {
	return func() tea.Msg {
		subjects, err := m.api.Subjects(m.ctx)
		return subjectsMsg{Subjects: subjects, Err: err}
	}
}

func (m *Model) generateCmd(subject string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.api.Generate(m.ctx, subject)
		return generatedMsg{Resp: resp, Err: err}
	}
}

// startPolling runs the poller in the background; its events are read back
// one at a time by waitPoll so they are applied on the update loop.
func (m *Model) startPolling() tea.Cmd {
	m.polls = make(chan pollMsg, 1)
	p := client.NewPoller(m.api, m.state.SessionID, m.opts.PollInterval)
	polls, ctx := m.polls, m.ctx
	go func() {
		err := p.Run(ctx, func(ev client.PollEvent) {
			select {
			case polls <- pollMsg{Event: ev}:
			case <-ctx.Done():
			}
		})
		select {
		case polls <- pollMsg{Done: true, Err: err}:
		case <-ctx.Done():
		}
	}()
	return m.waitPoll()
}

func (m *Model) waitPoll() tea.Cmd {
	polls, ctx := m.polls, m.ctx
	if polls == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case msg := <-polls:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Model) submitCmd() tea.Cmd {
	sub := m.state.Submission(m.opts.UserID)
	return func() tea.Msg {
		res, err := m.api.Submit(m.ctx, sub)
		return submittedMsg{Result: res, Err: err}
	}
}

const submitRetryDelay = 3 * time.Second

func retrySubmitCmd() tea.Cmd {
	return tea.Tick(submitRetryDelay, func(time.Time) tea.Msg {
		return retrySubmitMsg{}
	})
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return countdownTickMsg{}
	})
}

// ResolveAnswer maps keyboard shortcuts to the answer text: option numbers
// or letters for multiple choice and t/f for true/false. Anything else is
// returned trimmed.
func ResolveAnswer(q model.Question, raw string) string {
	s := strings.TrimSpace(raw)
	switch q.Type {
	case model.QuestionMultipleChoice:
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= len(q.Options) {
			return q.Options[n-1]
		}
		if len(s) == 1 {
			if idx := strings.IndexByte("ABCD", s[0]&^0x20); idx >= 0 && idx < len(q.Options) {
				return q.Options[idx]
			}
		}
	case model.QuestionTrueFalse:
		switch strings.ToLower(s) {
		case "t", "true":
			return model.AnswerTrue
		case "f", "false":
			return model.AnswerFalse
		}
	}
	return s
}

// Run starts the terminal UI and blocks until the user quits.
func Run(ctx context.Context, a API, opts Options) (client.AttemptState, error) {
	m := New(ctx, a, opts)
	defer m.cancel()
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return m.state, fmt.Errorf("run quiz ui: %w", err)
	}
	if fm, ok := final.(*Model); ok {
		return fm.state, nil
	}
	return m.state, nil
}
