package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/cache"
	"github.com/catalpa-cl/espresso/internal/port/database"
)

const catalogCacheKey = "models:catalog"

// ErrNoModel is returned when a criterion has no assigned model and no
// default model is configured.
var ErrNoModel = errors.New("no model assigned and no default model configured")

// CatalogEntry is one selectable model in the aggregated catalog.
type CatalogEntry struct {
	ModelID   string `json:"model_id"`
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// CatalogService aggregates the models of all active providers into one
// display catalog and resolves the effective model for a criterion. The
// catalog listing is cached; writes to providers or models must
// invalidate it.
type CatalogService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewCatalogService creates a CatalogService caching listings for ttl.
func NewCatalogService(store database.Store, c cache.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{store: store, cache: c, ttl: ttl}
}

// List returns the catalog of active models on active providers, each
// labeled "model name (provider name)".
func (s *CatalogService) List(ctx context.Context) ([]CatalogEntry, error) {
	if data, ok, err := s.cache.Get(ctx, catalogCacheKey); err == nil && ok {
		var entries []CatalogEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			return entries, nil
		}
		// Unreadable cache entry: fall through to a rebuild.
	}

	providers, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	names := make(map[string]string, len(providers))
	active := make(map[string]bool, len(providers))
	for _, p := range providers {
		names[p.ID] = p.Name
		active[p.ID] = p.Active
	}

	models, err := s.store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	entries := make([]CatalogEntry, 0, len(models))
	for i := range models {
		m := &models[i]
		if !m.Active || !active[m.ProviderID] {
			continue
		}
		entries = append(entries, CatalogEntry{
			ModelID:   m.ID,
			Name:      m.DisplayName(names[m.ProviderID]),
			IsDefault: m.IsDefault,
		})
	}

	if data, err := json.Marshal(entries); err == nil {
		if err := s.cache.Set(ctx, catalogCacheKey, data, s.ttl); err != nil {
			slog.Debug("catalog cache set failed", "error", err)
		}
	}
	return entries, nil
}

// Invalidate drops the cached catalog after a provider or model write.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		slog.Debug("catalog cache invalidation failed", "error", err)
	}
}

// ResolveModel returns the effective model for a criterion: the assigned
// model when modelID is set, else the process default, else the first
// active model. The owning provider is returned alongside.
func (s *CatalogService) ResolveModel(ctx context.Context, modelID string) (*provider.Model, *provider.Provider, error) {
	var (
		m   *provider.Model
		err error
	)
	switch {
	case modelID != "":
		m, err = s.store.GetModel(ctx, modelID)
		if err != nil {
			return nil, nil, fmt.Errorf("assigned model %s: %w", modelID, err)
		}
	default:
		m, err = s.store.GetDefaultModel(ctx)
		if err != nil {
			m, err = s.firstActiveModel(ctx)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	p, err := s.store.GetProvider(ctx, m.ProviderID)
	if err != nil {
		return nil, nil, fmt.Errorf("provider of model %s: %w", m.ID, err)
	}
	return m, p, nil
}

func (s *CatalogService) firstActiveModel(ctx context.Context) (*provider.Model, error) {
	models, err := s.store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	for i := range models {
		if models[i].Active {
			return &models[i], nil
		}
	}
	return nil, ErrNoModel
}
