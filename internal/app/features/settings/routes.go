// internal/app/features/settings/routes.go
package settings

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the settings API, mounted under /api.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/users/{userID}/settings", h.List)
	r.Put("/users/{userID}/settings/{cadence}", h.Upsert)
	r.Post("/users/{userID}/timezone", h.UpdateTimezone)
	return r
}
