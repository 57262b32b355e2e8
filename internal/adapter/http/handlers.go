// Package http provides the REST and streaming API adapters.
package http

import (
	"net/http"

	"github.com/catalpa-cl/espresso/internal/adapter/ws"
	"github.com/catalpa-cl/espresso/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Feedbacks    *service.FeedbackService
	Providers    *service.ProviderService
	Models       *service.ModelService
	Catalog      *service.CatalogService
	Recorder     *service.RecorderService
	Orchestrator *service.OrchestratorService
	Hub          *ws.Hub

	// StreamBuffer is the event buffer per run stream.
	StreamBuffer int
}

// Health reports service liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
