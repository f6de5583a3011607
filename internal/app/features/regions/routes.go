// internal/app/features/regions/routes.go
package regions

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/go-chi/chi/v5"
)

// Routes mounts regions under /regions. Everyone signed in can read them;
// changes need a global role and deletion needs admin.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeView)

	r.Group(func(gr chi.Router) {
		gr.Use(sm.RequireRole(roles.Admin, roles.PastorConselho))
		gr.Post("/", h.HandleCreate)
		gr.Patch("/{id}", h.HandleUpdate)
	})
	r.With(sm.RequireRole(roles.Admin)).Delete("/{id}", h.HandleDelete)
	return r
}
