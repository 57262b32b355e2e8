// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

// Store is the port interface for database operations.
type Store interface {
	// Providers
	ListProviders(ctx context.Context) ([]provider.Provider, error)
	GetProvider(ctx context.Context, id string) (*provider.Provider, error)
	CreateProvider(ctx context.Context, p *provider.Provider) error
	UpdateProvider(ctx context.Context, p *provider.Provider) error
	DeleteProvider(ctx context.Context, id string) error
	// RollQuotaWindow advances last_reset_at to now when the current
	// quota window has elapsed. Returns true if the window was rolled.
	RollQuotaWindow(ctx context.Context, providerID string, now time.Time) (bool, error)
	// UsedTokens sums the tokens recorded for a provider's criterion
	// results in [from, to).
	UsedTokens(ctx context.Context, providerID string, from, to time.Time) (int64, error)

	// Models
	ListModels(ctx context.Context) ([]provider.Model, error)
	GetModel(ctx context.Context, id string) (*provider.Model, error)
	GetDefaultModel(ctx context.Context) (*provider.Model, error)
	CreateModel(ctx context.Context, m *provider.Model) error
	UpdateModel(ctx context.Context, m *provider.Model) error
	DeleteModel(ctx context.Context, id string) error

	// Criteria
	ListCriteria(ctx context.Context) ([]feedback.Criterion, error)
	GetCriterion(ctx context.Context, id string) (*feedback.Criterion, error)
	CreateCriterion(ctx context.Context, c *feedback.Criterion) error
	UpdateCriterion(ctx context.Context, c *feedback.Criterion) error
	DeleteCriterion(ctx context.Context, id string) error

	// Feedbacks
	ListFeedbacks(ctx context.Context) ([]feedback.Feedback, error)
	// GetFeedback returns the feedback with its active criteria in
	// ascending rank order.
	GetFeedback(ctx context.Context, id string) (*feedback.Feedback, error)
	CreateFeedback(ctx context.Context, f *feedback.Feedback) error
	UpdateFeedback(ctx context.Context, f *feedback.Feedback) error
	DeleteFeedback(ctx context.Context, id string) error
	AttachCriterion(ctx context.Context, feedbackID, criterionID string, rank int) error
	DetachCriterion(ctx context.Context, feedbackID, criterionID string) error

	// Sessions
	// CreateSession inserts a session with its results. When a session
	// with the same correlation id already exists the call is a no-op
	// and inserted is false.
	CreateSession(ctx context.Context, s *feedback.Session) (inserted bool, err error)
	GetSession(ctx context.Context, id string) (*feedback.Session, error)
	GetSessionByCorrelation(ctx context.Context, correlationID string) (*feedback.Session, error)
	ListSessions(ctx context.Context, feedbackID string, limit int) ([]feedback.Session, error)
	SetSessionScore(ctx context.Context, id string, score int) error
}
