// internal/app/features/invites/handler.go
package invites

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves invite links: issuing, revoking and resending them for
// signed-in inviters, and verifying and accepting them for invitees.
type Handler struct {
	Invites   *invitestore.Store
	Regions   *regionstore.Store
	Provision *provisioning.Service
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger

	now func() time.Time
}

func NewHandler(db *mongo.Database, prov *provisioning.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Invites:   invitestore.New(db),
		Regions:   regionstore.New(db),
		Provision: prov,
		AuditLog:  audit,
		ErrLog:    errLog,
		Log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Invite states reported to clients.
const (
	statePending  = "pending"
	stateAccepted = "accepted"
	stateExpired  = "expired"
)

type inviteView struct {
	models.Invite
	State      string `json:"state"`
	RoleLabel  string `json:"role_label"`
	RegionName string `json:"region_name,omitempty"`
}

func (h *Handler) toView(inv models.Invite, regionNames map[string]string) inviteView {
	v := inviteView{Invite: inv, State: statePending}
	switch {
	case !inv.Pending():
		v.State = stateAccepted
	case inv.Expired(h.now()):
		v.State = stateExpired
	}
	if rs, err := roles.Normalize(rolesOf(inv)); err == nil {
		v.RoleLabel = roles.FormatDisplay(rs)
	}
	if inv.RegionID != nil {
		v.RegionName = regionNames[inv.RegionID.Hex()]
	}
	return v
}

func rolesOf(inv models.Invite) []string {
	if len(inv.Roles) == 0 && inv.Role != "" {
		return []string{inv.Role}
	}
	return inv.Roles
}

// loadInvite fetches the invite named by {id}. Invites outside the caller's
// scope, or granting roles the caller could not grant, are reported as not
// found.
func (h *Handler) loadInvite(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Invite, bool) {
	id, err := formutil.PathID(r, "id")
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "invites: bad id", "Convite não encontrado.")
		return models.Invite{}, false
	}
	inv, err := h.Invites.GetByID(ctx, id)
	if errors.Is(err, invitestore.ErrNotFound) || (err == nil && !authz.Scope(r).Allows(inv.RegionID)) {
		h.ErrLog.LogNotFound(w, r, "invites: not found", "Convite não encontrado.")
		return models.Invite{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invites: load failed", err, "")
		return models.Invite{}, false
	}
	rs, _ := roles.Normalize(rolesOf(inv))
	if !authz.CanInvite(r, rs...) {
		h.ErrLog.LogNotFound(w, r, "invites: roles beyond caller", "Convite não encontrado.")
		return models.Invite{}, false
	}
	return inv, true
}
