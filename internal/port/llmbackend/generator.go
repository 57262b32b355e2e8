// Package llmbackend defines the LLM backend port (interface) and the
// factory registry that resolves a wire-protocol adapter by provider kind.
package llmbackend

import (
	"context"

	"github.com/catalpa-cl/espresso/internal/domain/llm"
	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

// Generator is the port interface for one backend wire protocol.
// Implementations normalize their backend's framing (NDJSON chunks or
// server-sent events) into a single delta stream and never retry:
// retry policy lives in the failover invoker.
type Generator interface {
	// Kind returns the provider kind this adapter serves.
	Kind() provider.Kind

	// Generate issues one generation call against the given endpoint.
	// The returned error covers request setup and the response status
	// line; everything after that arrives on the channel, which is
	// closed after a terminal delta (Done or Err).
	Generate(ctx context.Context, ep llm.Endpoint, req llm.Request) (<-chan llm.Delta, error)

	// TestConnection issues a lightweight health probe against ep.
	TestConnection(ctx context.Context, ep llm.Endpoint) error
}
