package http

import (
	"net/http"

	"github.com/catalpa-cl/espresso/internal/domain/provider"
)

type modelRequest struct {
	ProviderID   string `json:"provider_id"`
	Name         string `json:"name"`
	ExternalName string `json:"external_name"`
	IsDefault    bool   `json:"is_default"`
	Active       *bool  `json:"active"`
}

func (req *modelRequest) toDomain(id string) *provider.Model {
	m := &provider.Model{
		ID:           id,
		ProviderID:   req.ProviderID,
		Name:         req.Name,
		ExternalName: req.ExternalName,
		IsDefault:    req.IsDefault,
		Active:       true,
	}
	if req.Active != nil {
		m.Active = *req.Active
	}
	return m
}

func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.Models.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// GetModelCatalog returns the cached list of selectable models for
// end-user pickers: active models of active providers only.
func (h *Handlers) GetModelCatalog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Catalog.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) GetModel(w http.ResponseWriter, r *http.Request) {
	m, err := h.Models.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "model not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) CreateModel(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[modelRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.ProviderID, "provider_id") {
		return
	}

	m := req.toDomain("")
	if err := h.Models.Create(r.Context(), m); err != nil {
		writeDomainError(w, err, "provider not found")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handlers) UpdateModel(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[modelRequest](w, r)
	if !ok {
		return
	}

	m := req.toDomain(urlParam(r, "id"))
	if err := h.Models.Update(r.Context(), m); err != nil {
		writeDomainError(w, err, "model not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) DeleteModel(w http.ResponseWriter, r *http.Request) {
	if err := h.Models.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "model not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
