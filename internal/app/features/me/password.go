// internal/app/features/me/password.go
package me

import (
	"context"
	"errors"
	"net/http"

	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
)

type passwordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandlePassword handles POST /me/password. It clears the must-change flag
// left by a temporary password.
func (h *Handler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	su, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in passwordInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "me: bad body", err, "Dados inválidos.")
		return
	}
	if in.NewPassword == in.CurrentPassword {
		jsonio.Error(w, http.StatusBadRequest, "A nova senha deve ser diferente da atual.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cred, err := h.Creds.Authenticate(ctx, su.Email, in.CurrentPassword)
	if errors.Is(err, credentialstore.ErrInvalidCredentials) || (err == nil && cred.ID != su.ID) {
		jsonio.Error(w, http.StatusForbidden, "Senha atual incorreta.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: verify password failed", err, "")
		return
	}

	err = h.Creds.SetPassword(ctx, su.ID, in.NewPassword, false)
	if errors.Is(err, credentialstore.ErrWeakPassword) {
		jsonio.Error(w, http.StatusBadRequest, "A senha deve ter pelo menos 8 caracteres.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: set password failed", err, "")
		return
	}
	h.AuditLog.PasswordChanged(ctx, r, su.ID, cred.MustChangePassword)
	w.WriteHeader(http.StatusNoContent)
}
