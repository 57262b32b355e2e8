package postgres

import (
	"context"
	"fmt"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

func (s *Store) ListFeedbacks(ctx context.Context) ([]feedback.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, task_title, task_description, task_context, course_name, course_context, active
		FROM feedbacks ORDER BY task_title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	defer rows.Close()

	var feedbacks []feedback.Feedback
	for rows.Next() {
		var f feedback.Feedback
		if err := rows.Scan(&f.ID, &f.TaskTitle, &f.TaskDescription, &f.TaskContext,
			&f.CourseName, &f.CourseContext, &f.Active); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		feedbacks = append(feedbacks, f)
	}
	return feedbacks, rows.Err()
}

// GetFeedback returns the feedback with its active criteria in ascending
// rank order.
func (s *Store) GetFeedback(ctx context.Context, id string) (*feedback.Feedback, error) {
	var f feedback.Feedback
	err := s.pool.QueryRow(ctx, `
		SELECT id, task_title, task_description, task_context, course_name, course_context, active
		FROM feedbacks WHERE id = $1`, id).
		Scan(&f.ID, &f.TaskTitle, &f.TaskDescription, &f.TaskContext,
			&f.CourseName, &f.CourseContext, &f.Active)
	if err != nil {
		return nil, notFoundWrap(err, "get feedback %s", id)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.title, c.prompt, c.model_id, c.active, c.created_at, c.updated_at, fc.rank
		FROM feedback_criteria fc
		JOIN criteria c ON c.id = fc.criterion_id
		WHERE fc.feedback_id = $1 AND c.active
		ORDER BY fc.rank ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("get feedback criteria: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rc      feedback.RankedCriterion
			modelID *string
		)
		if err := rows.Scan(&rc.ID, &rc.Title, &rc.Prompt, &modelID, &rc.Active,
			&rc.CreatedAt, &rc.UpdatedAt, &rc.Rank); err != nil {
			return nil, fmt.Errorf("scan ranked criterion: %w", err)
		}
		if modelID != nil {
			rc.ModelID = *modelID
		}
		f.Criteria = append(f.Criteria, rc)
	}
	return &f, rows.Err()
}

func (s *Store) CreateFeedback(ctx context.Context, f *feedback.Feedback) error {
	const q = `
		INSERT INTO feedbacks (id, task_title, task_description, task_context, course_name, course_context, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := s.pool.Exec(ctx, q,
		f.ID, f.TaskTitle, f.TaskDescription, f.TaskContext,
		f.CourseName, f.CourseContext, f.Active); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *Store) UpdateFeedback(ctx context.Context, f *feedback.Feedback) error {
	const q = `
		UPDATE feedbacks
		SET task_title = $2, task_description = $3, task_context = $4,
			course_name = $5, course_context = $6, active = $7
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q,
		f.ID, f.TaskTitle, f.TaskDescription, f.TaskContext,
		f.CourseName, f.CourseContext, f.Active)
	return execExpectOne(tag, err, "update feedback %s", f.ID)
}

func (s *Store) DeleteFeedback(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM feedbacks WHERE id = $1`, id)
	return execExpectOne(tag, err, "delete feedback %s", id)
}

// AttachCriterion links a criterion to a feedback. The unique index on
// (feedback_id, rank) turns a rank collision into domain.ErrConflict.
func (s *Store) AttachCriterion(ctx context.Context, feedbackID, criterionID string, rank int) error {
	const q = `
		INSERT INTO feedback_criteria (feedback_id, criterion_id, rank)
		VALUES ($1, $2, $3)`

	if _, err := s.pool.Exec(ctx, q, feedbackID, criterionID, rank); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("attach criterion at rank %d: %w", rank, domain.ErrConflict)
		}
		return fmt.Errorf("attach criterion: %w", err)
	}
	return nil
}

func (s *Store) DetachCriterion(ctx context.Context, feedbackID, criterionID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM feedback_criteria WHERE feedback_id = $1 AND criterion_id = $2`,
		feedbackID, criterionID)
	return execExpectOne(tag, err, "detach criterion %s", criterionID)
}
