package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/feedback"
	"github.com/catalpa-cl/espresso/internal/port/database"
)

// FeedbackService manages feedback configurations and their criteria.
type FeedbackService struct {
	store database.Store
}

// NewFeedbackService creates a FeedbackService.
func NewFeedbackService(store database.Store) *FeedbackService {
	return &FeedbackService{store: store}
}

// ListFeedbacks returns all feedback configurations without criteria.
func (s *FeedbackService) ListFeedbacks(ctx context.Context) ([]feedback.Feedback, error) {
	return s.store.ListFeedbacks(ctx)
}

// GetFeedback returns a feedback with its active criteria in rank order.
func (s *FeedbackService) GetFeedback(ctx context.Context, id string) (*feedback.Feedback, error) {
	return s.store.GetFeedback(ctx, id)
}

// CreateFeedback stores a new feedback configuration.
func (s *FeedbackService) CreateFeedback(ctx context.Context, f *feedback.Feedback) error {
	if f.TaskTitle == "" {
		return fmt.Errorf("%w: feedback task title required", domain.ErrValidation)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if err := s.store.CreateFeedback(ctx, f); err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// UpdateFeedback stores feedback changes.
func (s *FeedbackService) UpdateFeedback(ctx context.Context, f *feedback.Feedback) error {
	if err := s.store.UpdateFeedback(ctx, f); err != nil {
		return fmt.Errorf("update feedback: %w", err)
	}
	return nil
}

// DeleteFeedback removes a feedback configuration.
func (s *FeedbackService) DeleteFeedback(ctx context.Context, id string) error {
	if err := s.store.DeleteFeedback(ctx, id); err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	return nil
}

// AttachCriterion links a criterion to a feedback at the given rank.
// Rank uniqueness within the feedback is enforced by the store.
func (s *FeedbackService) AttachCriterion(ctx context.Context, feedbackID, criterionID string, rank int) error {
	if rank < 1 {
		return fmt.Errorf("%w: rank must be positive, got %d", domain.ErrValidation, rank)
	}
	if err := s.store.AttachCriterion(ctx, feedbackID, criterionID, rank); err != nil {
		return fmt.Errorf("attach criterion: %w", err)
	}
	return nil
}

// DetachCriterion unlinks a criterion from a feedback.
func (s *FeedbackService) DetachCriterion(ctx context.Context, feedbackID, criterionID string) error {
	if err := s.store.DetachCriterion(ctx, feedbackID, criterionID); err != nil {
		return fmt.Errorf("detach criterion: %w", err)
	}
	return nil
}

// ListCriteria returns all criteria.
func (s *FeedbackService) ListCriteria(ctx context.Context) ([]feedback.Criterion, error) {
	return s.store.ListCriteria(ctx)
}

// GetCriterion returns one criterion by id.
func (s *FeedbackService) GetCriterion(ctx context.Context, id string) (*feedback.Criterion, error) {
	return s.store.GetCriterion(ctx, id)
}

// CreateCriterion stores a new criterion.
func (s *FeedbackService) CreateCriterion(ctx context.Context, c *feedback.Criterion) error {
	if c.Prompt == "" {
		return fmt.Errorf("%w: criterion prompt required", domain.ErrValidation)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := s.store.CreateCriterion(ctx, c); err != nil {
		return fmt.Errorf("create criterion: %w", err)
	}
	return nil
}

// UpdateCriterion stores criterion changes.
func (s *FeedbackService) UpdateCriterion(ctx context.Context, c *feedback.Criterion) error {
	if err := s.store.UpdateCriterion(ctx, c); err != nil {
		return fmt.Errorf("update criterion: %w", err)
	}
	return nil
}

// DeleteCriterion removes a criterion.
func (s *FeedbackService) DeleteCriterion(ctx context.Context, id string) error {
	if err := s.store.DeleteCriterion(ctx, id); err != nil {
		return fmt.Errorf("delete criterion: %w", err)
	}
	return nil
}

// GetSession returns a recorded session with its rank-ordered results.
func (s *FeedbackService) GetSession(ctx context.Context, id string) (*feedback.Session, error) {
	return s.store.GetSession(ctx, id)
}

// ListSessions returns recorded sessions, optionally filtered by
// feedback id, newest first.
func (s *FeedbackService) ListSessions(ctx context.Context, feedbackID string, limit int) ([]feedback.Session, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.ListSessions(ctx, feedbackID, limit)
}
