package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pavelanni/quizflow/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestSession(t *testing.T, s *Store, id, subject string, at time.Time) {
	t.Helper()
	sess := &model.Session{ID: id, Subject: subject, CreatedAt: at}
	if err := s.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession(%s): %v", id, err)
	}
}

func testQuiz() model.Quiz {
	return model.Quiz{
		Metadata: model.QuizMetadata{Subject: "Data Science", TotalQuestions: 1, EstimatedTimeMinutes: 15},
		Questions: []model.Question{{
			ID: "q1", Type: model.QuestionTrueFalse, Difficulty: model.DifficultyEasy,
			Topic: "stats", Question: "Mean is robust to outliers.", CorrectAnswer: model.AnswerFalse,
		}},
	}
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	createTestSession(t, s, "s1", "Data Science", at)

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != model.StatusGenerating {
		t.Errorf("status = %q, want generating", got.Status)
	}
	if got.Subject != "Data Science" {
		t.Errorf("subject = %q", got.Subject)
	}
	if !got.CreatedAt.Equal(at) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, at)
	}
	if err := got.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}

	_, err = s.GetSession(ctx, "missing")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateSessionRequiresSubject(t *testing.T) {
	s := newTestStore(t)
	err := s.CreateSession(context.Background(), &model.Session{ID: "s1"})
	if !errors.Is(err, model.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLifecycleReadyCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", "Data Science", time.Now())

	if err := s.MarkReady(ctx, "s1", testQuiz()); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}
	sess, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.StatusReady || sess.Quiz == nil {
		t.Fatalf("expected ready with quiz, got %q quiz=%v", sess.Status, sess.Quiz != nil)
	}
	if sess.Quiz.Questions[0].CorrectAnswer != model.AnswerFalse {
		t.Errorf("answer key not persisted")
	}

	result := model.GradingResult{
		QuizID:       "s1",
		UserID:       "alice",
		OverallScore: model.OverallScore{PointsEarned: 1, TotalPoints: 1, Percentage: 100, Grade: "A"},
	}
	if err := s.CompleteSession(ctx, "s1", result); err != nil {
		t.Fatalf("CompleteSession: %v", err)
	}
	sess, err = s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed", sess.Status)
	}
	if sess.Result == nil || sess.Result.OverallScore.Grade != "A" {
		t.Errorf("result not persisted: %+v", sess.Result)
	}
	if sess.UserID != "alice" {
		t.Errorf("user_id = %q, want alice", sess.UserID)
	}
	if err := sess.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestLifecycleFailed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", "Data Science", time.Now())

	if err := s.MarkFailed(ctx, "s1", "model unavailable"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	sess, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Status != model.StatusFailed || sess.ErrorMessage != "model unavailable" {
		t.Errorf("got status %q message %q", sess.Status, sess.ErrorMessage)
	}
	if err := sess.CheckInvariants(); err != nil {
		t.Errorf("invariants: %v", err)
	}
}

func TestIllegalTransitions(t *testing.T) {
	ctx := context.Background()
	result := model.GradingResult{QuizID: "s1"}

	tests := []struct {
		name    string
		setup   func(s *Store)
		op      func(s *Store) error
		wantErr error
	}{
		{
			name:    "complete while generating",
			op:      func(s *Store) error { return s.CompleteSession(ctx, "s1", result) },
			wantErr: model.ErrNotReady,
		},
		{
			name:    "complete after failure",
			setup:   func(s *Store) { _ = s.MarkFailed(ctx, "s1", "x") },
			op:      func(s *Store) error { return s.CompleteSession(ctx, "s1", result) },
			wantErr: model.ErrNotReady,
		},
		{
			name: "complete twice",
			setup: func(s *Store) {
				_ = s.MarkReady(ctx, "s1", testQuiz())
				_ = s.CompleteSession(ctx, "s1", result)
			},
			op:      func(s *Store) error { return s.CompleteSession(ctx, "s1", result) },
			wantErr: model.ErrConflict,
		},
		{
			name:    "ready twice",
			setup:   func(s *Store) { _ = s.MarkReady(ctx, "s1", testQuiz()) },
			op:      func(s *Store) error { return s.MarkReady(ctx, "s1", testQuiz()) },
			wantErr: model.ErrConflict,
		},
		{
			name:    "fail after ready",
			setup:   func(s *Store) { _ = s.MarkReady(ctx, "s1", testQuiz()) },
			op:      func(s *Store) error { return s.MarkFailed(ctx, "s1", "late") },
			wantErr: model.ErrConflict,
		},
		{
			name:    "ready after failure",
			setup:   func(s *Store) { _ = s.MarkFailed(ctx, "s1", "x") },
			op:      func(s *Store) error { return s.MarkReady(ctx, "s1", testQuiz()) },
			wantErr: model.ErrConflict,
		},
		{
			name:    "unknown session",
			op:      func(s *Store) error { return s.MarkReady(ctx, "nope", testQuiz()) },
			wantErr: model.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			createTestSession(t, s, "s1", "Data Science", time.Now())
			if tt.setup != nil {
				tt.setup(s)
			}
			err := tt.op(s)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestConcurrentCompleteOnlyOneWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", "Data Science", time.Now())
	if err := s.MarkReady(ctx, "s1", testQuiz()); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CompleteSession(ctx, "s1", model.GradingResult{QuizID: "s1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, model.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins = %d conflicts = %d, want 1 and %d", wins, conflicts, n-1)
	}
}

func TestListSessionsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	createTestSession(t, s, "a", "Data Science", base)
	createTestSession(t, s, "c", "Cloud Computing", base.Add(time.Minute))
	createTestSession(t, s, "b", "Cybersecurity", base.Add(time.Minute))
	createTestSession(t, s, "d", "Operating Systems", base.Add(2*time.Minute))

	list, err := s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	want := []string{"d", "c", "b", "a"}
	if len(list) != len(want) {
		t.Fatalf("got %d sessions, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, list[i].ID, id)
		}
	}

	limited, err := s.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("ListSessions(2): %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "d" {
		t.Errorf("limited list = %+v", limited)
	}
}

func TestListSessionsEmpty(t *testing.T) {
	s := newTestStore(t)
	list, err := s.ListSessions(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %v", list)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "s1", "Data Science", time.Now())

	removed, err := s.DeleteSession(ctx, "s1")
	if err != nil || !removed {
		t.Fatalf("first delete: removed=%v err=%v", removed, err)
	}
	removed, err = s.DeleteSession(ctx, "s1")
	if err != nil || removed {
		t.Fatalf("second delete: removed=%v err=%v", removed, err)
	}
	if _, err := s.GetSession(ctx, "s1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.MarkReady(ctx, "s1", testQuiz()); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("late MarkReady after delete: got %v, want ErrNotFound", err)
	}
}

func TestFailInterrupted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createTestSession(t, s, "g1", "Data Science", time.Now())
	createTestSession(t, s, "g2", "Data Science", time.Now())
	createTestSession(t, s, "r1", "Data Science", time.Now())
	if err := s.MarkReady(ctx, "r1", testQuiz()); err != nil {
		t.Fatalf("MarkReady: %v", err)
	}

	n, err := s.FailInterrupted(ctx, "server restarted")
	if err != nil {
		t.Fatalf("FailInterrupted: %v", err)
	}
	if n != 2 {
		t.Errorf("failed %d sessions, want 2", n)
	}

	counts, err := s.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[model.StatusFailed] != 2 || counts[model.StatusReady] != 1 || counts[model.StatusGenerating] != 0 {
		t.Errorf("counts = %v", counts)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.GetMetadata(ctx, MetaSchemaVersion)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("schema version = %q, want %q", v, SchemaVersion)
	}

	missing, err := s.GetMetadata(ctx, "nope")
	if err != nil || missing != "" {
		t.Errorf("missing key: %q %v", missing, err)
	}

	if err := s.RecordStartup(ctx, time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), 3); err != nil {
		t.Fatalf("RecordStartup: %v", err)
	}
	if v, _ := s.GetMetadata(ctx, MetaLastRecoveries); v != "3" {
		t.Errorf("recoveries = %q, want 3", v)
	}
	if err := s.RecordStartup(ctx, time.Now(), 0); err != nil {
		t.Fatalf("RecordStartup overwrite: %v", err)
	}
	if v, _ := s.GetMetadata(ctx, MetaLastRecoveries); v != "0" {
		t.Errorf("recoveries after overwrite = %q, want 0", v)
	}
}

func TestExportAllSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	createTestSession(t, s, "done", "Data Science", base)
	createTestSession(t, s, "broken", "Cybersecurity", base.Add(time.Second))

	_ = s.MarkReady(ctx, "done", testQuiz())
	_ = s.CompleteSession(ctx, "done", model.GradingResult{
		QuizID:             "done",
		OverallScore:       model.OverallScore{PointsEarned: 1, TotalPoints: 1, Percentage: 100, Grade: "A"},
		PerformanceByTopic: []model.TopicPerformance{{Topic: "stats", QuestionsAnswered: 1, CorrectAnswers: 1, Percentage: 100}},
	})
	_ = s.MarkFailed(ctx, "broken", "timeout")

	out, err := s.ExportAllSessions(ctx)
	if err != nil {
		t.Fatalf("ExportAllSessions: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].SessionID != "broken" || out[0].ErrorMessage != "timeout" || out[0].Score != nil {
		t.Errorf("unexpected failed record: %+v", out[0])
	}
	if out[1].Score == nil || out[1].Score.Grade != "A" || out[1].NumQuestions != 1 || len(out[1].Topics) != 1 {
		t.Errorf("unexpected completed record: %+v", out[1])
	}
}
