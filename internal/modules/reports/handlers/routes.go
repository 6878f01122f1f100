package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all run report routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/allocations", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetAllocations(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/backtest", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetBacktest(w, r, chi.URLParam(r, "id"))
			})
			r.Get("/equity", func(w http.ResponseWriter, r *http.Request) {
				h.HandleGetEquity(w, r, chi.URLParam(r, "id"))
			})
		})
	})

	if h.runner != nil {
		r.Post("/sweeps", h.HandleRunSweep)
	}
}
