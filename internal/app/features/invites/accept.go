package invites

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type verifyView struct {
	Email      string     `json:"email"`
	Roles      []string   `json:"roles"`
	RoleLabel  string     `json:"role_label"`
	RegionName string     `json:"region_name,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// ServeVerify handles GET /invites/verify/{token}. It tells the invitee
// what they are accepting before they choose a password.
func (h *Handler) ServeVerify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inv, err := h.Provision.VerifyInvite(ctx, chi.URLParam(r, "token"))
	if err != nil {
		h.ErrLog.LogProvisioning(w, r, "invites: verify failed", err)
		return
	}
	v := verifyView{Email: inv.Email, Roles: rolesOf(inv), ExpiresAt: inv.ExpiresAt}
	if rs, err := roles.Normalize(v.Roles); err == nil {
		v.RoleLabel = roles.FormatDisplay(rs)
	}
	if inv.RegionID != nil {
		if reg, err := h.Regions.GetByID(ctx, *inv.RegionID); err == nil {
			v.RegionName = reg.Name
		}
	}
	jsonio.OK(w, v)
}

type acceptInput struct {
	Password    string `json:"password" validate:"required,min=8,max=128" label:"Senha"`
	DisplayName string `json:"display_name" validate:"required,max=120" label:"Nome"`
	Phone       string `json:"phone" validate:"omitempty,phone" label:"Telefone"`
}

// HandleAccept handles POST /invites/accept/{token}: it creates the
// invitee's account. The invitee signs in afterwards with the password
// they chose.
func (h *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	var in acceptInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invites: bad accept body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	res, err := h.Provision.AcceptInvite(ctx, chi.URLParam(r, "token"), provisioning.AcceptRequest{
		Password:    in.Password,
		DisplayName: in.DisplayName,
		Phone:       in.Phone,
	})
	metrics.Provisioned(provisioning.Outcome(err))
	if err != nil {
		h.ErrLog.LogProvisioning(w, r, "invites: accept failed", err)
		return
	}

	inv, err := h.Invites.GetByID(ctx, res.InviteID)
	if err != nil {
		h.Log.Warn("invites: reload accepted invite failed", zap.Error(err))
	}
	h.AuditLog.InviteAccepted(ctx, r, res.UID, res.InviteID, inv.RegionID)
	h.Log.Info("invite accepted",
		zap.String("uid", res.UID),
		zap.String("invite_id", res.InviteID.Hex()))
	jsonio.Created(w, res)
}
