// internal/app/features/reports/routes.go
package reports

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the report at "/". Local pastors have no access.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(roles.Admin, roles.PastorConselho, roles.PastorRegional, roles.Secretaria))
		pr.Get("/", h.ServeReport)
	})
	return r
}
