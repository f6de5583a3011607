// internal/app/features/me/routes.go
package me

import (
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.Get("/", h.ServeMe)
	r.Patch("/", h.HandleUpdate)
	r.Post("/complete", h.HandleComplete)
	r.Post("/password", h.HandlePassword)
	return r
}
