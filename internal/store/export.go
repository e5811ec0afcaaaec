package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/quizflow/internal/model"
)

// ExportAllSessions builds export-ready records for every session, most recent first.
func (s *Store) ExportAllSessions(ctx context.Context) ([]model.SessionExport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM quiz_sessions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	results := []model.SessionExport{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}

		rec := model.SessionExport{
			SessionID:    sess.ID,
			Subject:      sess.Subject,
			Status:       sess.Status,
			CreatedAt:    sess.CreatedAt,
			UserID:       sess.UserID,
			ErrorMessage: sess.ErrorMessage,
		}
		if sess.Quiz != nil {
			rec.NumQuestions = len(sess.Quiz.Questions)
		}
		if sess.Result != nil {
			score := sess.Result.OverallScore
			rec.Score = &score
			rec.Topics = sess.Result.PerformanceByTopic
			rec.Recommendations = sess.Result.Recommendations
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}
