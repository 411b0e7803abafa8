// internal/app/features/integrations/routes.go
package integrations

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the integration admin endpoints,
// mounted under /api/integrations.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/slack/install", h.SlackInstall)
	r.Post("/slack/link", h.SlackLink)
	return r
}
