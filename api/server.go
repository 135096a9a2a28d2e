package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the engine's operations onto a chi router.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Tenant-ID", "X-Actor-ID"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests/{id}", func(r chi.Router) {
			r.Post("/reminders/send", h.SendImmediate)
			r.Get("/reminders", h.ListPending)
			r.Delete("/reminders", h.CancelReminders)
			r.Post("/status", h.TransitionRequest)
		})

		r.Route("/reminders", func(r chi.Router) {
			r.Post("/sweep", h.Sweep)
			r.Post("/retry", h.Retry)
			r.Post("/cleanup", h.Cleanup)
			r.Get("/stats", h.Stats)
		})
	})

	return r
}
