package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// createInput is the direct-provisioning request. Older clients send a
// single role; it is read as a one-element roles list.
type createInput struct {
	Email    string   `json:"email" validate:"required,email,max=254" label:"E-mail"`
	Roles    []string `json:"roles" validate:"omitempty,dive,role" label:"Funções"`
	Role     string   `json:"role" validate:"omitempty,role" label:"Função"`
	RegionID string   `json:"region_id" validate:"omitempty,objectid" label:"Região"`
	ChurchID string   `json:"church_id" validate:"omitempty,objectid" label:"Igreja"`
	Phone    string   `json:"phone" validate:"omitempty,phone" label:"Telefone"`
}

func (in createInput) roles() []string {
	if len(in.Roles) == 0 && in.Role != "" {
		return []string{in.Role}
	}
	return in.Roles
}

// HandleCreate handles POST /users: it creates the account with a
// temporary password and returns it once, in this response.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, _, subj, _ := authz.UserCtx(r)

	var in createInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: bad create body", err, "Dados inválidos.")
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
		h.ErrLog.LogForbidden(w, r, "users: region outside scope", "Você só pode cadastrar usuários na sua região.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.checkRegion(ctx, w, r, regionID) || !h.checkChurch(ctx, w, r, churchID) {
		metrics.Provisioned("rejected")
		return
	}

	res, err := h.Provision.CreateInvitedUser(ctx, provisioning.Request{
		Email:     in.Email,
		Roles:     in.roles(),
		RegionID:  regionID,
		ChurchID:  churchID,
		Phone:     in.Phone,
		Inviter:   subj,
		InviterID: actorID,
	})
	metrics.Provisioned(provisioning.Outcome(err))
	if err != nil {
		h.ErrLog.LogProvisioning(w, r, "users: provisioning failed", err)
		return
	}

	h.Log.Info("user provisioned",
		zap.String("uid", res.UID),
		zap.String("email", res.Email),
		zap.String("actor", actorID))
	h.AuditLog.Admin(ctx, r, audit.EventUserProvisioned, actorID, res.UID, regionID, map[string]string{
		"email": res.Email,
		"roles": strings.Join(in.roles(), ","),
	})
	jsonio.Created(w, res)
}

// checkRegion rejects a reference to a region that does not exist.
func (h *Handler) checkRegion(ctx context.Context, w http.ResponseWriter, r *http.Request, regionID *primitive.ObjectID) bool {
	if regionID == nil {
		return true
	}
	ok, err := h.Regions.Exists(ctx, *regionID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: region lookup failed", err, "")
		return false
	}
	if !ok {
		jsonio.Error(w, http.StatusBadRequest, "Região não encontrada.")
		return false
	}
	return true
}

// checkChurch rejects a reference to a church that does not exist or that
// the caller cannot see.
func (h *Handler) checkChurch(ctx context.Context, w http.ResponseWriter, r *http.Request, churchID *primitive.ObjectID) bool {
	if churchID == nil {
		return true
	}
	p, err := h.Places.GetByID(ctx, *churchID)
	if errors.Is(err, placestore.ErrNotFound) || (err == nil && !authz.Scope(r).Allows(p.RegionID)) {
		jsonio.Error(w, http.StatusBadRequest, "Igreja não encontrada.")
		return false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: church lookup failed", err, "")
		return false
	}
	return true
}
