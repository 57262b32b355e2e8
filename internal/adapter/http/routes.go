package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Feedback configurations
		r.Get("/feedbacks", h.ListFeedbacks)
		r.Post("/feedbacks", h.CreateFeedback)
		r.Get("/feedbacks/{id}", h.GetFeedback)
		r.Put("/feedbacks/{id}", h.UpdateFeedback)
		r.Delete("/feedbacks/{id}", h.DeleteFeedback)
		r.Post("/feedbacks/{id}/criteria", h.AttachCriterion)
		r.Delete("/feedbacks/{id}/criteria/{criterionId}", h.DetachCriterion)
		r.Get("/feedbacks/{id}/sessions", h.ListFeedbackSessions)

		// Feedback runs (SSE)
		r.Post("/feedbacks/{id}/stream", h.StreamFeedback)

		// Criteria
		r.Get("/criteria", h.ListCriteria)
		r.Post("/criteria", h.CreateCriterion)
		r.Get("/criteria/{id}", h.GetCriterion)
		r.Put("/criteria/{id}", h.UpdateCriterion)
		r.Delete("/criteria/{id}", h.DeleteCriterion)

		// Providers (admin)
		r.Get("/providers", h.ListProviders)
		r.Post("/providers", h.CreateProvider)
		r.Get("/providers/{id}", h.GetProvider)
		r.Put("/providers/{id}", h.UpdateProvider)
		r.Delete("/providers/{id}", h.DeleteProvider)
		r.Post("/providers/{id}/test", h.TestProvider)

		// Models
		r.Get("/models", h.ListModels)
		r.Get("/models/catalog", h.GetModelCatalog)
		r.Post("/models", h.CreateModel)
		r.Get("/models/{id}", h.GetModel)
		r.Put("/models/{id}", h.UpdateModel)
		r.Delete("/models/{id}", h.DeleteModel)

		// Sessions
		r.Get("/sessions", h.ListSessions)
		r.Get("/sessions/{id}", h.GetSession)
		r.Patch("/sessions/{id}/score", h.ScoreSession)
	})
}
