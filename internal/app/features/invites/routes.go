// internal/app/features/invites/routes.go
package invites

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts invites under /invites. Verify and accept are public: the
// token is the credential. Everything else needs a signed-in inviter, and
// which roles they may grant is checked per request.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Get("/verify/{token}", h.ServeVerify)
	r.Post("/accept/{token}", h.HandleAccept)

	r.Group(func(gr chi.Router) {
		gr.Use(sm.RequireSignedIn)
		gr.Get("/", h.ServeList)
		gr.Post("/", h.HandleCreate)
		gr.Delete("/{id}", h.HandleRevoke)
		gr.Post("/{id}/resend", h.HandleResend)
	})
	return r
}
