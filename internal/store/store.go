package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pavelanni/quizflow/internal/model"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// SchemaVersion is recorded in the metadata table after migration.
const SchemaVersion = "1"

// Store persists quiz sessions. Every status transition is a single
// conditional UPDATE so concurrent writers cannot both win.
type Store struct {
	db     *sql.DB
	driver Driver
	now    func() time.Time
}

// New opens a SQLite store at dbPath. ":memory:" gives a private in-memory database.
func New(dbPath string) (*Store, error) {
	return Open(context.Background(), DriverSQLite, dbPath)
}

// Open connects to the database for the given driver and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName = "sqlite"
		if dsn == "" {
			dsn = "quizflow.db"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/quizflow?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if driver == DriverSQLite {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragmas: %w", err)
		}
	}

	s := &Store{db: db, driver: driver, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend the store is connected to.
func (s *Store) Driver() Driver {
	return s.driver
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quiz_sessions (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		status TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		quiz_json TEXT,
		result_json TEXT,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_sessions_created ON quiz_sessions (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_quiz_sessions_status ON quiz_sessions (status)`,
	`CREATE TABLE IF NOT EXISTS server_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return s.SetMetadata(ctx, MetaSchemaVersion, SchemaVersion)
}

const sessionColumns = `id, subject, status, user_id, error_message, quiz_json, result_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		sess               model.Session
		quizJSON, resJSON  sql.NullString
		createdAt, updated int64
	)
	err := row.Scan(&sess.ID, &sess.Subject, &sess.Status, &sess.UserID, &sess.ErrorMessage,
		&quizJSON, &resJSON, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(0, createdAt).UTC()
	sess.UpdatedAt = time.Unix(0, updated).UTC()
	if quizJSON.Valid && quizJSON.String != "" {
		var q model.Quiz
		if err := json.Unmarshal([]byte(quizJSON.String), &q); err != nil {
			return nil, fmt.Errorf("decode quiz for session %s: %w", sess.ID, err)
		}
		sess.Quiz = &q
	}
	if resJSON.Valid && resJSON.String != "" {
		var r model.GradingResult
		if err := json.Unmarshal([]byte(resJSON.String), &r); err != nil {
			return nil, fmt.Errorf("decode result for session %s: %w", sess.ID, err)
		}
		sess.Result = &r
	}
	return &sess, nil
}

// CreateSession inserts a new session in the generating state.
// CreatedAt is filled from the store clock when zero.
func (s *Store) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.ID == "" || strings.TrimSpace(sess.Subject) == "" {
		return fmt.Errorf("create session: id and subject are required: %w", model.ErrInvalidArgument)
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	sess.UpdatedAt = sess.CreatedAt
	sess.Status = model.StatusGenerating
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO quiz_sessions (id, subject, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		sess.ID, sess.Subject, sess.Status, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", sess.ID, err)
	}
	return nil
}

// GetSession returns a session by id, or an error wrapping model.ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM quiz_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// GetStatus returns only the status of a session.
func (s *Store) GetStatus(ctx context.Context, id string) (model.SessionStatus, error) {
	var status model.SessionStatus
	err := s.db.QueryRowContext(ctx, `SELECT status FROM quiz_sessions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("session %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get status %s: %w", id, err)
	}
	return status, nil
}

// MarkReady stores the generated quiz and moves the session from generating to ready.
func (s *Store) MarkReady(ctx context.Context, id string, quiz model.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("encode quiz: %w", err)
	}
	return s.transition(ctx, id, model.StatusGenerating, model.StatusReady,
		`UPDATE quiz_sessions SET status = $1, quiz_json = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		model.StatusReady, string(data), s.now().UnixNano(), id, model.StatusGenerating)
}

// MarkFailed records the failure reason and moves the session from generating to failed.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "quiz generation failed"
	}
	return s.transition(ctx, id, model.StatusGenerating, model.StatusFailed,
		`UPDATE quiz_sessions SET status = $1, error_message = $2, updated_at = $3 WHERE id = $4 AND status = $5`,
		model.StatusFailed, reason, s.now().UnixNano(), id, model.StatusGenerating)
}

// CompleteSession stores the grading result and moves the session from ready to completed.
func (s *Store) CompleteSession(ctx context.Context, id string, result model.GradingResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return s.transition(ctx, id, model.StatusReady, model.StatusCompleted,
		`UPDATE quiz_sessions SET status = $1, result_json = $2, user_id = $3, updated_at = $4 WHERE id = $5 AND status = $6`,
		model.StatusCompleted, string(data), result.UserID, s.now().UnixNano(), id, model.StatusReady)
}

// transition runs a compare-and-set UPDATE. When no row matched it reports
// why: the session is missing, already past the target, or not yet there.
func (s *Store) transition(ctx context.Context, id string, from, to model.SessionStatus, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update session %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session %s to %s: %w", id, to, err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.GetStatus(ctx, id)
	if err != nil {
		return err
	}
	return transitionError(id, current, from, to)
}

func transitionError(id string, current, from, to model.SessionStatus) error {
	if current == to || from == model.StatusGenerating {
		return fmt.Errorf("session %s is already %s: %w", id, current, model.ErrConflict)
	}
	return fmt.Errorf("session %s is %s, want %s: %w", id, current, from, model.ErrNotReady)
}

// ListSessions returns session summaries, most recent first. A limit of 0 returns all.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]model.SessionSummary, error) {
	query := `SELECT id, subject, status, created_at FROM quiz_sessions ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []model.SessionSummary{}
	for rows.Next() {
		var (
			sum       model.SessionSummary
			createdAt int64
		)
		if err := rows.Scan(&sum.ID, &sum.Subject, &sum.Status, &createdAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.CreatedAt = time.Unix(0, createdAt).UTC()
		sessions = append(sessions, sum)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session. Deleting a missing session is not an error.
// The returned bool reports whether a row was removed.
func (s *Store) DeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM quiz_sessions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	return n > 0, nil
}

// FailInterrupted marks every session still generating as failed. It is
// called at startup, when no generation job from a previous process can
// still be running.
func (s *Store) FailInterrupted(ctx context.Context, reason string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE quiz_sessions SET status = $1, error_message = $2, updated_at = $3 WHERE status = $4`,
		model.StatusFailed, reason, s.now().UnixNano(), model.StatusGenerating)
	if err != nil {
		return 0, fmt.Errorf("fail interrupted sessions: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of sessions in each status.
func (s *Store) CountByStatus(ctx context.Context) (map[model.SessionStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM quiz_sessions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count sessions: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.SessionStatus]int)
	for rows.Next() {
		var (
			status model.SessionStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
