package postgres

import (
	"context"
	"fmt"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

// CreateSession inserts a session with its results in one transaction.
// The unique index on correlation_id plus ON CONFLICT DO NOTHING makes
// duplicate finalize calls no-ops: the first write wins and inserted is
// false for every later call.
func (s *Store) CreateSession(ctx context.Context, sess *feedback.Session) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin session tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const q = `
		INSERT INTO sessions (id, feedback_id, correlation_id, submission, status, nps_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (correlation_id) DO NOTHING`

	tag, err := tx.Exec(ctx, q,
		sess.ID, sess.FeedbackID, sess.CorrelationID, sess.Submission,
		string(sess.Status), sess.NPSScore, sess.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	for i := range sess.Results {
		r := &sess.Results[i]
		const rq = `
			INSERT INTO criterion_results (id, session_id, criterion_id, rank, status, text,
				error_kind, model_external_name, tokens_system, tokens_user, tokens_completion, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		if _, err := tx.Exec(ctx, rq,
			r.ID, sess.ID, r.CriterionID, r.Rank, string(r.Status), r.Text,
			string(r.ErrorKind), r.ModelExternalName,
			r.Usage.SystemTokens, r.Usage.UserTokens, r.Usage.CompletionTokens,
			r.CreatedAt); err != nil {
			return false, fmt.Errorf("insert criterion result rank %d: %w", r.Rank, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit session: %w", err)
	}
	return true, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*feedback.Session, error) {
	return s.getSession(ctx, `WHERE id = $1`, id)
}

func (s *Store) GetSessionByCorrelation(ctx context.Context, correlationID string) (*feedback.Session, error) {
	return s.getSession(ctx, `WHERE correlation_id = $1`, correlationID)
}

func (s *Store) getSession(ctx context.Context, where string, arg any) (*feedback.Session, error) {
	var sess feedback.Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, feedback_id, correlation_id, submission, status, nps_score, created_at
		FROM sessions `+where, arg).
		Scan(&sess.ID, &sess.FeedbackID, &sess.CorrelationID, &sess.Submission,
			&sess.Status, &sess.NPSScore, &sess.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get session")
	}

	results, err := s.sessionResults(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.Results = results
	return &sess, nil
}

func (s *Store) sessionResults(ctx context.Context, sessionID string) ([]feedback.CriterionResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, criterion_id, rank, status, text, error_kind, model_external_name,
			tokens_system, tokens_user, tokens_completion, created_at
		FROM criterion_results
		WHERE session_id = $1
		ORDER BY rank ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list criterion results: %w", err)
	}
	defer rows.Close()

	var results []feedback.CriterionResult
	for rows.Next() {
		var r feedback.CriterionResult
		if err := rows.Scan(&r.ID, &r.CriterionID, &r.Rank, &r.Status, &r.Text,
			&r.ErrorKind, &r.ModelExternalName,
			&r.Usage.SystemTokens, &r.Usage.UserTokens, &r.Usage.CompletionTokens,
			&r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan criterion result: %w", err)
		}
		results = append(results, r)
	}
	return orEmpty(results), rows.Err()
}

func (s *Store) ListSessions(ctx context.Context, feedbackID string, limit int) ([]feedback.Session, error) {
	const q = `
		SELECT id, feedback_id, correlation_id, submission, status, nps_score, created_at
		FROM sessions
		WHERE ($1::text IS NULL OR feedback_id = $1)
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, nullIfEmpty(feedbackID), limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []feedback.Session
	for rows.Next() {
		var sess feedback.Session
		if err := rows.Scan(&sess.ID, &sess.FeedbackID, &sess.CorrelationID, &sess.Submission,
			&sess.Status, &sess.NPSScore, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *Store) SetSessionScore(ctx context.Context, id string, score int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET nps_score = $2 WHERE id = $1`, id, score)
	return execExpectOne(tag, err, "set score on session %s", id)
}
