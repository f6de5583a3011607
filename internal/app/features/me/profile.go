// internal/app/features/me/profile.go
package me

import (
	"context"
	"errors"
	"net/http"

	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// meView is the profile plus the role facts a client needs to shape its UI.
type meView struct {
	models.User
	PrimaryRole        string   `json:"primary_role"`
	RoleLabel          string   `json:"role_label"`
	RoleColor          string   `json:"role_color"`
	InvitableRoles     []string `json:"invitable_roles"`
	RegionName         string   `json:"region_name,omitempty"`
	MustChangePassword bool     `json:"must_change_password"`
}

func (h *Handler) view(ctx context.Context, u *models.User, mustChange bool) meView {
	subj := roles.FromUser(u)
	held := roles.UserRoles(subj)
	v := meView{
		User:               *u,
		RoleLabel:          roles.FormatDisplay(held),
		InvitableRoles:     roles.Strings(roles.InvitableRoles(subj)),
		MustChangePassword: mustChange,
	}
	v.Roles = roles.Strings(held)
	if p, ok := roles.PrimaryRole(subj); ok {
		v.PrimaryRole = string(p)
		v.RoleColor = roles.Color(p)
	} else {
		v.RoleColor = roles.Color("")
	}
	if u.RegionID != nil {
		names, err := h.Regions.Names(ctx, []primitive.ObjectID{*u.RegionID})
		if err != nil {
			h.Log.Warn("me: region name lookup failed", zap.String("region_id", u.RegionID.Hex()), zap.Error(err))
			v.RegionName = u.RegionID.Hex()
		} else {
			v.RegionName = names[*u.RegionID]
		}
	}
	return v
}

// ServeMe handles GET /me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	su, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, su.ID)
	if errors.Is(err, userstore.ErrNotFound) {
		h.ErrLog.LogNotFound(w, r, "me: profile vanished", "Perfil não encontrado.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: load profile failed", err, "")
		return
	}
	jsonio.OK(w, h.view(ctx, u, su.MustChangePassword))
}

// profileInput is a partial self-edit. Absent fields stay unchanged.
type profileInput struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=120" label:"Nome"`
	FullName    *string `json:"full_name" validate:"omitempty,max=200" label:"Nome completo"`
	Nickname    *string `json:"nickname" validate:"omitempty,max=60" label:"Apelido"`
	Phone       *string `json:"phone" validate:"omitempty,phone" label:"Telefone"`
	BirthDate   *string `json:"birth_date" validate:"omitempty,date" label:"Data de nascimento"`
}

// merge overlays the present fields of in onto u's current values.
func (in profileInput) merge(u *models.User) userstore.ProfileUpdate {
	upd := userstore.ProfileUpdate{
		DisplayName: u.DisplayName,
		FullName:    u.FullName,
		Nickname:    u.Nickname,
		Phone:       u.Phone,
		BirthDate:   u.BirthDate,
	}
	if in.DisplayName != nil {
		upd.DisplayName = *in.DisplayName
	}
	if in.FullName != nil {
		upd.FullName = *in.FullName
	}
	if in.Nickname != nil {
		upd.Nickname = *in.Nickname
	}
	if in.Phone != nil {
		upd.Phone = *in.Phone
	}
	if in.BirthDate != nil {
		upd.BirthDate = *in.BirthDate
	}
	return upd
}

// applyProfile validates and stores in for the signed-in user and returns
// the refreshed profile. On failure it has written the response.
func (h *Handler) applyProfile(ctx context.Context, w http.ResponseWriter, r *http.Request, uid string, in profileInput) (*models.User, bool) {
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return nil, false
	}
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: load profile failed", err, "")
		return nil, false
	}
	if err := h.Users.UpdateProfile(ctx, uid, in.merge(u)); err != nil {
		h.ErrLog.LogServerError(w, r, "me: update profile failed", err, "")
		return nil, false
	}
	u, err = h.Users.GetByID(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "me: reload profile failed", err, "")
		return nil, false
	}
	return u, true
}

// HandleUpdate handles PATCH /me.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	su, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in profileInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "me: bad body", err, "Dados inválidos.")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.applyProfile(ctx, w, r, su.ID, in)
	if !ok {
		return
	}
	jsonio.OK(w, h.view(ctx, u, su.MustChangePassword))
}
