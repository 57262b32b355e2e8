package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/database"
)

// ModelService manages the models attached to providers. At most one
// model is the process-wide default; the store enforces that with a
// partial unique index.
type ModelService struct {
	store   database.Store
	catalog *CatalogService
}

// NewModelService creates a ModelService.
func NewModelService(store database.Store, catalog *CatalogService) *ModelService {
	return &ModelService{store: store, catalog: catalog}
}

// List returns all models.
func (s *ModelService) List(ctx context.Context) ([]provider.Model, error) {
	return s.store.ListModels(ctx)
}

// Get returns one model by id.
func (s *ModelService) Get(ctx context.Context, id string) (*provider.Model, error) {
	return s.store.GetModel(ctx, id)
}

// Create validates and stores a new model.
func (s *ModelService) Create(ctx context.Context, m *provider.Model) error {
	if m.ExternalName == "" {
		return fmt.Errorf("%w: model external name required", domain.ErrValidation)
	}
	if _, err := s.store.GetProvider(ctx, m.ProviderID); err != nil {
		return fmt.Errorf("model provider %s: %w", m.ProviderID, err)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if err := s.store.CreateModel(ctx, m); err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	s.catalog.Invalidate(ctx)
	slog.Info("model created", "model_id", m.ID, "external_name", m.ExternalName)
	return nil
}

// Update stores model changes and invalidates the catalog.
func (s *ModelService) Update(ctx context.Context, m *provider.Model) error {
	if err := s.store.UpdateModel(ctx, m); err != nil {
		return fmt.Errorf("update model: %w", err)
	}
	s.catalog.Invalidate(ctx)
	return nil
}

// Delete removes a model and invalidates the catalog.
func (s *ModelService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteModel(ctx, id); err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	s.catalog.Invalidate(ctx)
	return nil
}
