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
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respond reloads the user and writes it.
func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) {
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: reload failed", err, "")
		return
	}
	jsonio.OK(w, h.view(ctx, *u))
}

type rolesInput struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,role" label:"Funções"`
}

// HandleSetRoles handles PUT /users/{id}/roles.
//
// The caller must be able to grant every role in the new list and every
// role taken away, so nobody can promote or demote past their own reach.
func (h *Handler) HandleSetRoles(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in rolesInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: bad roles body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	rs, err := roles.Normalize(in.Roles)
	if err != nil {
		jsonio.Error(w, http.StatusBadRequest, "Selecione ao menos uma função.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadTarget(ctx, w, r)
	if !ok {
		return
	}
	held := roles.UserRoles(roles.FromUser(u))
	if !authz.CanInvite(r, rs...) || !canRevoke(r, held, rs) {
		h.ErrLog.LogForbidden(w, r, "users: roles beyond caller's reach", "Você não pode conceder ou remover estas funções.")
		return
	}

	if err := h.Users.SetRoles(ctx, u.ID, rs); err != nil {
		h.ErrLog.LogServerError(w, r, "users: set roles failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventUserRolesChanged, actorID, u.ID, u.RegionID, map[string]string{
		"from": strings.Join(roles.Strings(held), ","),
		"to":   strings.Join(roles.Strings(rs), ","),
	})
	h.respond(ctx, w, r, u.ID)
}

// canRevoke reports whether the caller may take away every known role in
// held that is missing from next.
func canRevoke(r *http.Request, held, next []roles.Role) bool {
	var removed []roles.Role
	for _, h := range held {
		known, ok := roles.Parse(string(h))
		if !ok {
			continue
		}
		keep := false
		for _, n := range next {
			if n == known {
				keep = true
				break
			}
		}
		if !keep {
			removed = append(removed, known)
		}
	}
	return len(removed) == 0 || authz.CanInvite(r, removed...)
}

type regionInput struct {
	RegionID *string `json:"region_id" validate:"omitempty,objectid" label:"Região"`
}

// HandleSetRegion handles PUT /users/{id}/region. A null or empty
// region_id clears the assignment.
func (h *Handler) HandleSetRegion(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in regionInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: bad region body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	regionID, _ := formutil.NullableID(in.RegionID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadTarget(ctx, w, r)
	if !ok {
		return
	}
	if !authz.CanMoveToRegion(r, regionID) {
		h.ErrLog.LogForbidden(w, r, "users: region outside scope", "Você só pode atribuir usuários à sua região.")
		return
	}
	if !h.checkRegion(ctx, w, r, regionID) {
		return
	}
	if err := h.Users.SetRegion(ctx, u.ID, regionID); err != nil {
		h.ErrLog.LogServerError(w, r, "users: set region failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventUserRegionChanged, actorID, u.ID, regionID, map[string]string{
		"from": formutil.Hex(u.RegionID),
		"to":   formutil.Hex(regionID),
	})
	h.respond(ctx, w, r, u.ID)
}

type churchInput struct {
	ChurchID *string `json:"church_id" validate:"omitempty,objectid" label:"Igreja"`
}

// HandleSetChurch handles PUT /users/{id}/church.
func (h *Handler) HandleSetChurch(w http.ResponseWriter, r *http.Request) {
	h.assignChurch(w, r, churchLink{
		current: func(u *models.User) *primitive.ObjectID { return u.ChurchID },
		set:     h.Users.SetChurch,
		event:   audit.EventUserChurchChanged,
	})
}

// HandleSetSecretaryOf handles PUT /users/{id}/secretary-of.
func (h *Handler) HandleSetSecretaryOf(w http.ResponseWriter, r *http.Request) {
	h.assignChurch(w, r, churchLink{
		current: func(u *models.User) *primitive.ObjectID { return u.SecretaryOf },
		set:     h.Users.SetSecretaryOf,
		event:   audit.EventUserSecretaryOf,
	})
}

// churchLink is one of the user-to-church references.
type churchLink struct {
	current func(*models.User) *primitive.ObjectID
	set     func(ctx context.Context, id string, churchID *primitive.ObjectID) error
	event   string
}

// assignChurch points a user's church reference at another church, or
// clears it. The caller must be able to manage the church being assigned,
// and, when clearing, the church being left.
func (h *Handler) assignChurch(w http.ResponseWriter, r *http.Request, link churchLink) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in churchInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: bad church body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	churchID, _ := formutil.NullableID(in.ChurchID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadTarget(ctx, w, r)
	if !ok {
		return
	}

	guard := churchID
	if guard == nil {
		guard = link.current(u)
	}
	if !authz.CanManageChurch(r, formutil.Hex(guard)) {
		h.ErrLog.LogForbidden(w, r, "users: church not managed by caller", "Você não pode gerenciar esta igreja.")
		return
	}
	if churchID != nil {
		if _, err := h.Places.GetByID(ctx, *churchID); errors.Is(err, placestore.ErrNotFound) {
			jsonio.Error(w, http.StatusBadRequest, "Igreja não encontrada.")
			return
		} else if err != nil {
			h.ErrLog.LogServerError(w, r, "users: church lookup failed", err, "")
			return
		}
	}

	if err := link.set(ctx, u.ID, churchID); err != nil {
		h.ErrLog.LogServerError(w, r, "users: set church failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, link.event, actorID, u.ID, u.RegionID, map[string]string{
		"from": formutil.Hex(link.current(u)),
		"to":   formutil.Hex(churchID),
	})
	h.respond(ctx, w, r, u.ID)
}

type statusInput struct {
	Status string `json:"status" validate:"required,oneof=active inactive pending" label:"Status"`
}

// HandleSetStatus handles PUT /users/{id}/status. Inactive users cannot
// sign in. Nobody can change their own status.
func (h *Handler) HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in statusInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "users: bad status body", err, "Dados inválidos.")
		return
	}
	in.Status = normalize.Status(in.Status)
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, ok := h.loadTarget(ctx, w, r)
	if !ok {
		return
	}
	if u.ID == actorID {
		jsonio.Error(w, http.StatusBadRequest, "Você não pode alterar o próprio status.")
		return
	}
	if err := h.Users.SetStatus(ctx, u.ID, in.Status); err != nil {
		h.ErrLog.LogServerError(w, r, "users: set status failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventUserStatusChanged, actorID, u.ID, u.RegionID, map[string]string{
		"from": u.Status,
		"to":   in.Status,
	})
	h.respond(ctx, w, r, u.ID)
}
