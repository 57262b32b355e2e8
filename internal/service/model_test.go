package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

func newModelFixture(t *testing.T) (*ModelService, *mockStore, *mockCache) {
	t.Helper()
	store := newMockStore()
	cache := newMockCache()
	catalog := NewCatalogService(store, cache, time.Minute)
	return NewModelService(store, catalog), store, cache
}

func TestModelCreateRequiresExternalName(t *testing.T) {
	svc, _, _ := newModelFixture(t)
	err := svc.Create(context.Background(), &provider.Model{ProviderID: "p1", Name: "Phi"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestModelCreateRejectsUnknownProvider(t *testing.T) {
	svc, _, _ := newModelFixture(t)
	err := svc.Create(context.Background(), &provider.Model{
		ProviderID: "nope", Name: "Phi", ExternalName: "phi4:latest",
	})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestModelCreateAssignsIDAndInvalidatesCatalog(t *testing.T) {
	svc, store, cache := newModelFixture(t)
	ctx := context.Background()

	store.providers["p1"] = provider.Provider{ID: "p1", Name: "local", Kind: provider.KindOllama, Active: true}
	// Seed a cached catalog so we can observe the invalidation.
	if err := cache.Set(ctx, catalogCacheKey, []byte(`[]`), time.Minute); err != nil {
		t.Fatal(err)
	}

	m := &provider.Model{ProviderID: "p1", Name: "Phi 4", ExternalName: "phi4:latest"}
	if err := svc.Create(ctx, m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if m.ID == "" {
		t.Fatal("expected generated id")
	}
	if _, ok := cache.items[catalogCacheKey]; ok {
		t.Fatal("expected catalog cache invalidated after create")
	}
}

func TestModelUpdateInvalidatesCatalog(t *testing.T) {
	svc, store, cache := newModelFixture(t)
	ctx := context.Background()

	store.providers["p1"] = provider.Provider{ID: "p1", Kind: provider.KindOllama, Active: true}
	store.models["m1"] = provider.Model{ID: "m1", ProviderID: "p1", Name: "Phi", ExternalName: "phi4:latest"}
	if err := cache.Set(ctx, catalogCacheKey, []byte(`[]`), time.Minute); err != nil {
		t.Fatal(err)
	}

	updated := provider.Model{ID: "m1", ProviderID: "p1", Name: "Phi 4", ExternalName: "phi4:latest"}
	if err := svc.Update(ctx, &updated); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if store.models["m1"].Name != "Phi 4" {
		t.Fatalf("update not persisted: %q", store.models["m1"].Name)
	}
	if _, ok := cache.items[catalogCacheKey]; ok {
		t.Fatal("expected catalog cache invalidated after update")
	}
}

func TestModelDelete(t *testing.T) {
	svc, store, _ := newModelFixture(t)
	ctx := context.Background()

	store.models["m1"] = provider.Model{ID: "m1", ProviderID: "p1", ExternalName: "phi4:latest"}
	if err := svc.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := store.models["m1"]; ok {
		t.Fatal("model still present after delete")
	}
}
