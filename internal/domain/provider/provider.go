// Package provider defines the LLM provider and model configuration
// entities. Provider rows are admin-edited; orchestration runs only ever
// see a read-only snapshot taken at run start.
package provider

import (
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/llm"
)

// Kind selects the wire protocol adapter for a provider.
type Kind string

const (
	KindOllama      Kind = "ollama"
	KindAzureAI     Kind = "azure_ai"
	KindAzureOpenAI Kind = "azure_openai"
)

// Valid reports whether k is a known provider kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOllama, KindAzureAI, KindAzureOpenAI:
		return true
	}
	return false
}

// Provider is a configured LLM backend with a primary endpoint and an
// optional fallback endpoint. Credentials are stored encrypted and only
// decrypted into run snapshots; they never serialize to JSON.
type Provider struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Kind               Kind          `json:"kind"`
	Endpoint           string        `json:"endpoint"`
	Credential         string        `json:"-"`
	FallbackEndpoint   string        `json:"fallback_endpoint,omitempty"`
	FallbackCredential string        `json:"-"`
	VerifyTLS          bool          `json:"verify_tls"`
	FallbackEnabled    bool          `json:"fallback_enabled"`
	RequestTimeout     time.Duration `json:"request_timeout"`
	TokenLimit         int64         `json:"token_limit"`
	TokenResetInterval time.Duration `json:"token_reset_interval"`
	LastResetAt        time.Time     `json:"last_reset_at"`
	Active             bool          `json:"active"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Primary returns the primary endpoint for provider calls.
func (p *Provider) Primary() llm.Endpoint {
	return llm.Endpoint{
		URL:        p.Endpoint,
		Credential: p.Credential,
		VerifyTLS:  p.VerifyTLS,
		Timeout:    p.RequestTimeout,
	}
}

// Fallback returns the fallback endpoint for provider calls.
func (p *Provider) Fallback() llm.Endpoint {
	return llm.Endpoint{
		URL:        p.FallbackEndpoint,
		Credential: p.FallbackCredential,
		VerifyTLS:  p.VerifyTLS,
		Timeout:    p.RequestTimeout,
	}
}

// FallbackEligible reports whether a fallback attempt is configured at
// all: enabled, and a fallback endpoint that differs from the primary.
func (p *Provider) FallbackEligible() bool {
	return p.FallbackEnabled && p.FallbackEndpoint != "" && p.FallbackEndpoint != p.Endpoint
}

// QuotaWindow returns the bounds of the current token quota window.
func (p *Provider) QuotaWindow() (start, end time.Time) {
	start = p.LastResetAt
	return start, start.Add(p.TokenResetInterval)
}

// Model is a named language model belonging to exactly one provider.
// ExternalName is the backend-specific identifier (e.g. "phi4:latest" or
// an Azure deployment name); at most one model is the process default.
type Model struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	Name         string    `json:"name"`
	ExternalName string    `json:"external_name"`
	IsDefault    bool      `json:"is_default"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName returns the human-facing label used in model catalogs.
func (m *Model) DisplayName(providerName string) string {
	return m.Name + " (" + providerName + ")"
}
