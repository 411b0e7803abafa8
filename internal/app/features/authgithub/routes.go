// internal/app/features/authgithub/routes.go
package authgithub

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter for the GitHub connect flow.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeConnect) // mounted under /auth/github
	r.Get("/callback", h.ServeCallback)
	return r
}
