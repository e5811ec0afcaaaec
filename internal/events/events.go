// Package events publishes session lifecycle events to RabbitMQ.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/pavelanni/quizflow/internal/model"
)

// Type is the routing key of an event.
type Type string

const (
	TypeQuizRequested  Type = "quiz.requested"
	TypeQuizReady      Type = "quiz.ready"
	TypeQuizFailed     Type = "quiz.failed"
	TypeQuizCompleted  Type = "quiz.completed"
	TypeSessionDeleted Type = "session.deleted"
)

// Event is the JSON body published for every lifecycle change.
type Event struct {
	Type       Type                `json:"type"`
	SessionID  string              `json:"session_id"`
	Subject    string              `json:"subject,omitempty"`
	Status     model.SessionStatus `json:"status,omitempty"`
	UserID     string              `json:"user_id,omitempty"`
	Error      string              `json:"error,omitempty"`
	Percentage *float64            `json:"percentage,omitempty"`
	Grade      string              `json:"grade,omitempty"`
	OccurredAt time.Time           `json:"occurred_at"`
}

// New creates an event stamped with the current time.
func New(t Type, sessionID string) Event {
	return Event{Type: t, SessionID: sessionID, OccurredAt: time.Now().UTC()}
}

// Publisher sends lifecycle events. Publish failures never affect the
// session state; callers log them.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the types of everything published so far, in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
