// internal/app/features/logout/handler.go
package logout

import (
	"errors"
	"net/http"

	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
}

func NewHandler(sessionMgr *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		AuditLog:   audit,
	}
}

// HandleLogout handles POST /logout. It always answers 204 so a client can
// call it blindly; only a signed-in caller is audited.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	err := h.SessionMgr.Logout(w, r)
	if err != nil && !errors.Is(err, auth.ErrNoSession) {
		h.Log.Error("logout: clear session", zap.Error(err))
	}
	if u, ok := auth.CurrentUser(r); ok {
		h.AuditLog.Logout(r.Context(), r, u.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}
