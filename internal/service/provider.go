package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
	"github.com/catalpa-cl/espresso/internal/port/database"
	"github.com/catalpa-cl/espresso/internal/port/llmbackend"
	"github.com/catalpa-cl/espresso/internal/port/messagequeue"
	"github.com/catalpa-cl/espresso/internal/secrets"
)

// ProviderService manages provider and model configuration. Credentials
// are encrypted before they reach the store and only decrypted into the
// read-only snapshots handed to orchestration runs.
type ProviderService struct {
	store   database.Store
	cipher  *secrets.Cipher
	catalog *CatalogService
	queue   messagequeue.Queue // nil disables degraded events

	newGenerator func(kind provider.Kind) (llmbackend.Generator, error)
}

// NewProviderService creates a ProviderService. queue may be nil.
func NewProviderService(store database.Store, cipher *secrets.Cipher, catalog *CatalogService, queue messagequeue.Queue) *ProviderService {
	return &ProviderService{
		store:        store,
		cipher:       cipher,
		catalog:      catalog,
		queue:        queue,
		newGenerator: llmbackend.New,
	}
}

// List returns all configured providers. Credentials stay encrypted and
// never serialize anyway.
func (s *ProviderService) List(ctx context.Context) ([]provider.Provider, error) {
	return s.store.ListProviders(ctx)
}

// Get returns one provider by id.
func (s *ProviderService) Get(ctx context.Context, id string) (*provider.Provider, error) {
	return s.store.GetProvider(ctx, id)
}

// Create validates and stores a new provider, encrypting its credentials.
func (s *ProviderService) Create(ctx context.Context, p *provider.Provider) error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown provider kind %q", domain.ErrValidation, p.Kind)
	}
	if p.Endpoint == "" {
		return fmt.Errorf("%w: provider endpoint required", domain.ErrValidation)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.encrypt(p); err != nil {
		return err
	}
	if err := s.store.CreateProvider(ctx, p); err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	s.catalog.Invalidate(ctx)
	slog.Info("provider created", "provider_id", p.ID, "kind", p.Kind, "name", p.Name)
	return nil
}

// Update stores provider changes, re-encrypting credentials when the
// caller supplied new ones. Empty credential fields keep the stored
// values so admins can edit endpoints without re-entering keys.
func (s *ProviderService) Update(ctx context.Context, p *provider.Provider) error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown provider kind %q", domain.ErrValidation, p.Kind)
	}
	existing, err := s.store.GetProvider(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	if err := s.encrypt(p); err != nil {
		return err
	}
	if p.Credential == "" {
		p.Credential = existing.Credential
	}
	if p.FallbackCredential == "" {
		p.FallbackCredential = existing.FallbackCredential
	}
	if err := s.store.UpdateProvider(ctx, p); err != nil {
		return fmt.Errorf("update provider: %w", err)
	}
	s.catalog.Invalidate(ctx)
	return nil
}

// Delete removes a provider and invalidates the model catalog.
func (s *ProviderService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProvider(ctx, id); err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	s.catalog.Invalidate(ctx)
	return nil
}

// Snapshot returns a copy of p with decrypted credentials for one
// orchestration run. The stored provider is never mutated.
func (s *ProviderService) Snapshot(p *provider.Provider) (*provider.Provider, error) {
	snap := *p
	var err error
	if snap.Credential, err = s.cipher.Decrypt(p.Credential); err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	if snap.FallbackCredential, err = s.cipher.Decrypt(p.FallbackCredential); err != nil {
		return nil, fmt.Errorf("decrypt fallback credential: %w", err)
	}
	return &snap, nil
}

// Test probes the provider's endpoints with the adapter's lightweight
// health check. When a fallback is configured, both endpoints are
// probed concurrently and the first failure is reported.
func (s *ProviderService) Test(ctx context.Context, id string) error {
	p, err := s.store.GetProvider(ctx, id)
	if err != nil {
		return fmt.Errorf("test provider: %w", err)
	}
	snap, err := s.Snapshot(p)
	if err != nil {
		return err
	}
	gen, err := s.newGenerator(snap.Kind)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gen.TestConnection(gctx, snap.Primary()); err != nil {
			return fmt.Errorf("primary: %w", err)
		}
		return nil
	})
	if snap.FallbackEligible() {
		g.Go(func() error {
			if err := gen.TestConnection(gctx, snap.Fallback()); err != nil {
				return fmt.Errorf("fallback: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ReportDegraded publishes a provider degradation event: a call was
// served by the fallback endpoint, or failed on both.
func (s *ProviderService) ReportDegraded(ctx context.Context, p *provider.Provider, kind llm.ErrorKind, route string) {
	if s.queue == nil {
		return
	}
	data, _ := json.Marshal(messagequeue.ProviderDegradedPayload{
		ProviderID: p.ID,
		Endpoint:   p.Endpoint,
		ErrorKind:  string(kind),
		UsedRoute:  route,
	})
	if err := s.queue.Publish(ctx, messagequeue.SubjectProviderDegraded, data); err != nil {
		slog.Warn("publish degraded event failed", "provider_id", p.ID, "error", err)
	}
}

func (s *ProviderService) encrypt(p *provider.Provider) error {
	var err error
	if p.Credential, err = s.cipher.Encrypt(p.Credential); err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	if p.FallbackCredential, err = s.cipher.Encrypt(p.FallbackCredential); err != nil {
		return fmt.Errorf("encrypt fallback credential: %w", err)
	}
	return nil
}
