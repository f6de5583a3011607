// internal/app/features/chat/routes.go
package chat

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts chat under /chat for signed-in users.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Get("/rooms", h.ServeRooms)
	r.Post("/rooms", h.HandleCreateRoom)
	r.Get("/rooms/{id}/messages", h.ServeMessages)
	r.Post("/rooms/{id}/messages", h.HandlePostMessage)
	return r
}
