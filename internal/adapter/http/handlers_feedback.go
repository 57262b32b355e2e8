package http

import (
	"net/http"
	"strconv"

	"github.com/catalpa-cl/espresso/internal/domain/feedback"
)

type feedbackRequest struct {
	TaskTitle       string `json:"task_title"`
	TaskDescription string `json:"task_description"`
	TaskContext     string `json:"task_context"`
	CourseName      string `json:"course_name"`
	CourseContext   string `json:"course_context"`
	Active          *bool  `json:"active"`
}

func (req *feedbackRequest) toDomain(id string) *feedback.Feedback {
	f := &feedback.Feedback{
		ID:              id,
		TaskTitle:       req.TaskTitle,
		TaskDescription: req.TaskDescription,
		TaskContext:     req.TaskContext,
		CourseName:      req.CourseName,
		CourseContext:   req.CourseContext,
		Active:          true,
	}
	if req.Active != nil {
		f.Active = *req.Active
	}
	return f
}

func (h *Handlers) ListFeedbacks(w http.ResponseWriter, r *http.Request) {
	feedbacks, err := h.Feedbacks.ListFeedbacks(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feedbacks)
}

func (h *Handlers) GetFeedback(w http.ResponseWriter, r *http.Request) {
	f, err := h.Feedbacks.GetFeedback(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "feedback not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handlers) CreateFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[feedbackRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.TaskTitle, "task_title") {
		return
	}

	f := req.toDomain("")
	if err := h.Feedbacks.CreateFeedback(r.Context(), f); err != nil {
		writeDomainError(w, err, "feedback not found")
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handlers) UpdateFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[feedbackRequest](w, r)
	if !ok {
		return
	}

	f := req.toDomain(urlParam(r, "id"))
	if err := h.Feedbacks.UpdateFeedback(r.Context(), f); err != nil {
		writeDomainError(w, err, "feedback not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handlers) DeleteFeedback(w http.ResponseWriter, r *http.Request) {
	if err := h.Feedbacks.DeleteFeedback(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "feedback not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type attachCriterionRequest struct {
	CriterionID string `json:"criterion_id"`
	Rank        int    `json:"rank"`
}

func (h *Handlers) AttachCriterion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[attachCriterionRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.CriterionID, "criterion_id") {
		return
	}

	err := h.Feedbacks.AttachCriterion(r.Context(), urlParam(r, "id"), req.CriterionID, req.Rank)
	if err != nil {
		writeDomainError(w, err, "feedback or criterion not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) DetachCriterion(w http.ResponseWriter, r *http.Request) {
	err := h.Feedbacks.DetachCriterion(r.Context(), urlParam(r, "id"), urlParam(r, "criterionId"))
	if err != nil {
		writeDomainError(w, err, "criterion not attached")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFeedbackSessions returns recorded sessions for one feedback,
// newest first.
func (h *Handlers) ListFeedbackSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.Feedbacks.ListSessions(r.Context(), urlParam(r, "id"), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}
