package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the health probes and all API routes on r.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", h.APIVersion)

		// Schedules
		r.Post("/schedules", h.ComputeSchedule)
		r.Post("/schedules/batch", h.ComputeBatch)
		r.Post("/schedules/mermaid", h.RenderMermaid)

		// Snapshots
		r.Get("/snapshots", handleList(h.Snapshots.List))
		r.Get("/snapshots/{id}", handleGet(h.Snapshots.Get, "snapshot not found"))
		r.Delete("/snapshots/{id}", handleDelete(h.Snapshots.Delete, "snapshot not found"))
		r.Post("/snapshots/{id}/recompute", h.RecomputeSnapshot)
	})
}
