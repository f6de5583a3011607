package invites

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type createInput struct {
	Email    string   `json:"email" validate:"required,email,max=254" label:"E-mail"`
	Roles    []string `json:"roles" validate:"omitempty,dive,role" label:"Funções"`
	Role     string   `json:"role" validate:"omitempty,role" label:"Função"`
	RegionID string   `json:"region_id" validate:"omitempty,objectid" label:"Região"`
	ChurchID string   `json:"church_id" validate:"omitempty,objectid" label:"Igreja"`
	Phone    string   `json:"phone" validate:"omitempty,phone" label:"Telefone"`

	// Direct skips the link and creates the account with a temporary password.
	Direct       bool  `json:"direct"`
	SendEmail    *bool `json:"send_email"`
	SendWhatsApp bool  `json:"send_whatsapp"`
}

func (in createInput) roles() []string {
	if len(in.Roles) == 0 && in.Role != "" {
		return []string{in.Role}
	}
	return in.Roles
}

// createdInvite is the response to a link invite. Link is returned so the
// inviter can share it by hand when notification is off or fails.
type createdInvite struct {
	inviteView
	Link     string `json:"link"`
	Notified bool   `json:"notified"`
}

// HandleCreate handles POST /invites.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, actorName, subj, _ := authz.UserCtx(r)

	var in createInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "invites: bad create body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	requested, _ := formutil.OptionalID(in.RegionID)
	churchID, _ := formutil.OptionalID(in.ChurchID)

	regionID, ok := authz.AssignableRegion(r, requested)
	if !ok {
		metrics.Provisioned("rejected")
		h.ErrLog.LogForbidden(w, r, "invites: region outside scope", "Você só pode convidar para a sua região.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.checkRegion(ctx, w, r, regionID) {
		metrics.Provisioned("rejected")
		return
	}

	req := provisioning.Request{
		Email:     in.Email,
		Roles:     in.roles(),
		RegionID:  regionID,
		ChurchID:  churchID,
		Phone:     in.Phone,
		Inviter:   subj,
		InviterID: actorID,
	}
	details := map[string]string{"email": in.Email, "roles": strings.Join(in.roles(), ",")}

	if in.Direct {
		res, err := h.Provision.CreateInvitedUser(ctx, req)
		metrics.Provisioned(provisioning.Outcome(err))
		if err != nil {
			h.ErrLog.LogProvisioning(w, r, "invites: direct provisioning failed", err)
			return
		}
		details["mode"] = "direct"
		h.AuditLog.Admin(ctx, r, audit.EventUserProvisioned, actorID, res.UID, regionID, details)
		jsonio.Created(w, res)
		return
	}

	inv, err := h.Provision.CreateInviteLink(ctx, req)
	metrics.Provisioned(provisioning.Outcome(err))
	if err != nil {
		h.ErrLog.LogProvisioning(w, r, "invites: create link failed", err)
		return
	}
	details["mode"] = "link"
	h.AuditLog.Admin(ctx, r, audit.EventInviteCreated, actorID, "", regionID, details)

	sendEmail := in.SendEmail == nil || *in.SendEmail
	notified := h.notify(ctx, inv, actorName, sendEmail, in.SendWhatsApp)
	jsonio.Created(w, createdInvite{
		inviteView: h.toView(inv, nil),
		Link:       h.Provision.Link(inv.Token),
		Notified:   notified,
	})
}

// notify queues the invite notice. A failure is logged and reported as
// not notified; the invite itself stands.
func (h *Handler) notify(ctx context.Context, inv models.Invite, inviterName string, sendEmail, sendWhatsApp bool) bool {
	if !sendEmail && !sendWhatsApp {
		return false
	}
	err := h.Provision.NotifyInvite(ctx, inv, inviterName, sendEmail, sendWhatsApp)
	if err != nil {
		h.Log.Warn("invite notification not queued",
			zap.String("invite_id", inv.ID.Hex()),
			zap.Error(err))
		return false
	}
	return true
}

func (h *Handler) checkRegion(ctx context.Context, w http.ResponseWriter, r *http.Request, regionID *primitive.ObjectID) bool {
	if regionID == nil {
		return true
	}
	ok, err := h.Regions.Exists(ctx, *regionID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invites: region lookup failed", err, "")
		return false
	}
	if !ok {
		jsonio.Error(w, http.StatusBadRequest, "Região não encontrada.")
		return false
	}
	return true
}

// HandleRevoke handles DELETE /invites/{id}. Only pending invites can be
// revoked.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	inv, ok := h.loadInvite(ctx, w, r)
	if !ok {
		return
	}
	err := h.Invites.Revoke(ctx, inv.ID)
	switch {
	case errors.Is(err, invitestore.ErrAlreadyAccepted):
		h.ErrLog.LogConflict(w, r, "invites: revoke accepted", err, "Este convite já foi aceito.")
		return
	case errors.Is(err, invitestore.ErrNotFound):
		h.ErrLog.LogNotFound(w, r, "invites: revoke vanished", "Convite não encontrado.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "invites: revoke failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventInviteRevoked, actorID, "", inv.RegionID, map[string]string{
		"invite_id": inv.ID.Hex(),
		"email":     inv.Email,
	})
	w.WriteHeader(http.StatusNoContent)
}

type resendInput struct {
	SendEmail    *bool `json:"send_email"`
	SendWhatsApp bool  `json:"send_whatsapp"`
}

// HandleResend handles POST /invites/{id}/resend: the invite gets a new
// token and expiry, so earlier links stop working, and is notified again.
func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	actorID, actorName, _, _ := authz.UserCtx(r)

	var in resendInput
	if r.ContentLength != 0 {
		if err := jsonio.Decode(w, r, &in); err != nil {
			h.ErrLog.LogBadRequest(w, r, "invites: bad resend body", err, "Dados inválidos.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	inv, ok := h.loadInvite(ctx, w, r)
	if !ok {
		return
	}
	if !inv.Pending() {
		h.ErrLog.LogConflict(w, r, "invites: resend accepted", invitestore.ErrAlreadyAccepted, "Este convite já foi aceito.")
		return
	}
	token, exp, err := h.Provision.NewToken()
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invites: token generation failed", err, "")
		return
	}
	if err := h.Invites.RenewToken(ctx, inv.ID, token, exp); err != nil {
		if errors.Is(err, invitestore.ErrAlreadyAccepted) {
			h.ErrLog.LogConflict(w, r, "invites: accepted during resend", err, "Este convite já foi aceito.")
			return
		}
		h.ErrLog.LogServerError(w, r, "invites: renew token failed", err, "")
		return
	}
	inv.Token, inv.ExpiresAt = token, &exp
	inv.EmailSent, inv.WhatsAppSent = false, false

	h.AuditLog.Admin(ctx, r, audit.EventInviteResent, actorID, "", inv.RegionID, map[string]string{
		"invite_id": inv.ID.Hex(),
		"email":     inv.Email,
	})
	sendEmail := in.SendEmail == nil || *in.SendEmail
	notified := h.notify(ctx, inv, actorName, sendEmail, in.SendWhatsApp)
	jsonio.OK(w, createdInvite{
		inviteView: h.toView(inv, nil),
		Link:       h.Provision.Link(token),
		Notified:   notified,
	})
}
