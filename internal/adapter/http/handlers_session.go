package http

import (
	"net/http"
	"strconv"
)

func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Feedbacks.GetSession(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.Feedbacks.ListSessions(r.Context(), r.URL.Query().Get("feedback_id"), limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type scoreRequest struct {
	Score int `json:"score"`
}

// ScoreSession attaches a 0..10 NPS score to a recorded session.
func (h *Handlers) ScoreSession(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[scoreRequest](w, r)
	if !ok {
		return
	}

	if err := h.Recorder.Score(r.Context(), urlParam(r, "id"), req.Score); err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
