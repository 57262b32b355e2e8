package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/catalpa-cl/espresso/internal/logger"
	"github.com/catalpa-cl/espresso/internal/service"
	"github.com/catalpa-cl/espresso/internal/stream"
)

type runRequest struct {
	Submission    string `json:"submission"`
	CorrelationID string `json:"correlation_id"`
}

// StreamFeedback runs a feedback session and streams its events to the
// client as server-sent events. The response status is decided by the
// first thing the run produces: configuration failures surface as a
// JSON error before any SSE byte is written; once an event exists the
// stream is committed and later failures travel inside it. Client
// disconnect cancels the in-flight provider call; results finished
// before the disconnect are still recorded.
func (h *Handlers) StreamFeedback(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[runRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Submission, "submission") {
		return
	}
	if req.CorrelationID == "" {
		req.CorrelationID = logger.CorrelationID(r.Context())
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	mux := stream.NewMuxSize(h.StreamBuffer)
	runErr := make(chan error, 1)
	go func() {
		_, err := h.Orchestrator.Run(r.Context(), service.RunRequest{
			FeedbackID:    urlParam(r, "id"),
			Submission:    req.Submission,
			CorrelationID: req.CorrelationID,
		}, mux)
		runErr <- err
	}()

	events := mux.Events()

	// Hold the status line until the run either emits its first event
	// or dies during validation.
	first, open := <-events
	if !open {
		err := <-runErr
		switch {
		case errors.Is(err, service.ErrConfiguration):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		case err != nil:
			writeInternalError(w, err)
		default:
			writeError(w, http.StatusInternalServerError, "run produced no events")
		}
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeSSE(w, first)
	flusher.Flush()

	for ev := range events {
		writeSSE(w, ev)
		flusher.Flush()
	}
	<-runErr
}

// writeSSE frames one event in text/event-stream format.
func writeSSE(w http.ResponseWriter, ev stream.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
}
