package llmbackend

import (
	"fmt"
	"sync"

	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

// Factory is a constructor function that creates a new Generator.
type Factory func() Generator

var (
	mu        sync.RWMutex
	factories = make(map[provider.Kind]Factory)
)

// Register makes a backend factory available by provider kind.
// It is typically called from an init() function in the adapter package.
func Register(kind provider.Kind, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("llmbackend: duplicate registration for %q", kind))
	}
	factories[kind] = factory
}

// New creates a Generator for the given provider kind.
func New(kind provider.Kind) (Generator, error) {
	mu.RLock()
	factory, ok := factories[kind]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("llmbackend: unknown provider kind %q", kind)
	}
	return factory(), nil
}

// Available returns the kinds of all registered backends.
func Available() []provider.Kind {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]provider.Kind, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	return kinds
}
