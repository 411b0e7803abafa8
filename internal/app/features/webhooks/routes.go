// internal/app/features/webhooks/routes.go
package webhooks

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for inbound webhooks.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/github", h.GitHub) // mounted under /webhooks
	return r
}
