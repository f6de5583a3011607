// internal/app/features/churches/routes.go
package churches

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the church directory under /churches.
//
// Pastors create churches; editing is checked per church in the handler.
// Moving a church between regions and deleting it need a global role.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/", h.ServeList)
	r.Get("/export.kml", h.ServeKML)
	r.Get("/map", h.ServeMap)
	r.Get("/{id}", h.ServeView)
	r.Get("/{id}/pastors", h.ServePastors)
	r.Patch("/{id}", h.HandleUpdate)

	r.With(sm.RequireRole(roles.Admin, roles.PastorConselho, roles.PastorRegional, roles.PastorLocal)).
		Post("/", h.HandleCreate)

	r.Group(func(gr chi.Router) {
		gr.Use(sm.RequireRole(roles.Admin, roles.PastorConselho))
		gr.Put("/{id}/region", h.HandleSetRegion)
		gr.Delete("/{id}", h.HandleDelete)
	})
	return r
}
