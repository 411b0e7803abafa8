// internal/app/features/jobs/routes.go
package jobs

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the job trigger endpoints.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/tick", h.Tick) // mounted under /jobs
	return r
}
