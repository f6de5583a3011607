// internal/app/features/users/routes.go
package users

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the user directory under /users.
//
// Listing and viewing are open to every signed-in user within their scope.
// Role, region and status changes need a global role; deletion needs admin.
// Church reassignment is checked per church in the handler.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{id}", h.ServeView)
	r.Put("/{id}/church", h.HandleSetChurch)
	r.Put("/{id}/secretary-of", h.HandleSetSecretaryOf)

	r.Group(func(gr chi.Router) {
		gr.Use(sm.RequireRole(roles.Admin, roles.PastorConselho))
		gr.Put("/{id}/roles", h.HandleSetRoles)
		gr.Put("/{id}/region", h.HandleSetRegion)
		gr.Put("/{id}/status", h.HandleSetStatus)
	})

	r.With(sm.RequireRole(roles.Admin)).Delete("/{id}", h.HandleDelete)
	return r
}
