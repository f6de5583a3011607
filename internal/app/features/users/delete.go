package users

import (
	"context"
	"net/http"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/app/system/txn"
)

// HandleDelete handles DELETE /users/{id}: the profile and its sign-in
// identity are both removed. Admins cannot delete themselves.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadTarget(ctx, w, r)
	if !ok {
		return
	}
	if u.ID == actorID {
		jsonio.Error(w, http.StatusBadRequest, "Você não pode excluir a si mesmo.")
		return
	}

	if err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		if _, err := h.Users.Delete(ctx, u.ID); err != nil {
			return err
		}
		return h.Creds.DeleteIdentity(ctx, u.ID)
	}); err != nil {
		h.ErrLog.LogServerError(w, r, "users: delete failed", err, "")
		return
	}

	h.AuditLog.Admin(ctx, r, audit.EventUserDeleted, actorID, u.ID, u.RegionID, map[string]string{"email": u.Email})
	w.WriteHeader(http.StatusNoContent)
}
