package http

import (
	"net/http"
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

// providerRequest is the admin-facing provider payload. Credentials
// arrive in plaintext here and are encrypted by the service before
// they reach the store; they never appear in responses.
type providerRequest struct {
	Name                 string `json:"name"`
	Kind                 string `json:"kind"`
	Endpoint             string `json:"endpoint"`
	Credential           string `json:"credential"`
	FallbackEndpoint     string `json:"fallback_endpoint"`
	FallbackCredential   string `json:"fallback_credential"`
	VerifyTLS            *bool  `json:"verify_tls"`
	FallbackEnabled      bool   `json:"fallback_enabled"`
	RequestTimeoutMS     int64  `json:"request_timeout_ms"`
	TokenLimit           int64  `json:"token_limit"`
	TokenResetIntervalMS int64  `json:"token_reset_interval_ms"`
	Active               *bool  `json:"active"`
}

func (req *providerRequest) toDomain(id string) *provider.Provider {
	p := &provider.Provider{
		ID:                 id,
		Name:               req.Name,
		Kind:               provider.Kind(req.Kind),
		Endpoint:           req.Endpoint,
		Credential:         req.Credential,
		FallbackEndpoint:   req.FallbackEndpoint,
		FallbackCredential: req.FallbackCredential,
		VerifyTLS:          true,
		FallbackEnabled:    req.FallbackEnabled,
		RequestTimeout:     2 * time.Minute,
		TokenLimit:         req.TokenLimit,
		TokenResetInterval: time.Duration(req.TokenResetIntervalMS) * time.Millisecond,
		Active:             true,
	}
	if req.VerifyTLS != nil {
		p.VerifyTLS = *req.VerifyTLS
	}
	if req.RequestTimeoutMS > 0 {
		p.RequestTimeout = time.Duration(req.RequestTimeoutMS) * time.Millisecond
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	return p
}

func (h *Handlers) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Providers.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

func (h *Handlers) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.Providers.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProvider(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[providerRequest](w, r)
	if !ok {
		return
	}

	p := req.toDomain("")
	if err := h.Providers.Create(r.Context(), p); err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdateProvider(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[providerRequest](w, r)
	if !ok {
		return
	}

	p := req.toDomain(urlParam(r, "id"))
	if err := h.Providers.Update(r.Context(), p); err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.Providers.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TestProvider probes the provider's primary endpoint with decrypted
// credentials and reports reachability.
func (h *Handlers) TestProvider(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.Providers.Test(r.Context(), id); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"provider_id": id,
			"reachable":   false,
			"error":       err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider_id": id,
		"reachable":   true,
	})
}
