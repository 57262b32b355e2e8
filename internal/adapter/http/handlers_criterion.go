package http

import (
	"net/http"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

type criterionRequest struct {
	Title   string `json:"title"`
	Prompt  string `json:"prompt"`
	ModelID string `json:"model_id"`
	Active  *bool  `json:"active"`
}

func (req *criterionRequest) toDomain(id string) *feedback.Criterion {
	c := &feedback.Criterion{
		ID:      id,
		Title:   req.Title,
		Prompt:  req.Prompt,
		ModelID: req.ModelID,
		Active:  true,
	}
	if req.Active != nil {
		c.Active = *req.Active
	}
	return c
}

func (h *Handlers) ListCriteria(w http.ResponseWriter, r *http.Request) {
	criteria, err := h.Feedbacks.ListCriteria(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, criteria)
}

func (h *Handlers) GetCriterion(w http.ResponseWriter, r *http.Request) {
	c, err := h.Feedbacks.GetCriterion(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "criterion not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) CreateCriterion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[criterionRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Prompt, "prompt") {
		return
	}

	c := req.toDomain("")
	if err := h.Feedbacks.CreateCriterion(r.Context(), c); err != nil {
		writeDomainError(w, err, "criterion not found")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handlers) UpdateCriterion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[criterionRequest](w, r)
	if !ok {
		return
	}

	c := req.toDomain(urlParam(r, "id"))
	if err := h.Feedbacks.UpdateCriterion(r.Context(), c); err != nil {
		writeDomainError(w, err, "criterion not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) DeleteCriterion(w http.ResponseWriter, r *http.Request) {
	if err := h.Feedbacks.DeleteCriterion(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "criterion not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
