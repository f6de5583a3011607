package users

import (
	"context"

	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// userView is a directory row. Roles are always the list form, so legacy
// single-role records read the same as current ones.
type userView struct {
	models.User
	PrimaryRole string `json:"primary_role,omitempty"`
	RoleLabel   string `json:"role_label"`
	RegionName  string `json:"region_name,omitempty"`
}

type userPage struct {
	paging.Page[userView]
	Total int64 `json:"total"`
}

func toView(u models.User, regionNames map[primitive.ObjectID]string) userView {
	subj := roles.FromUser(&u)
	held := roles.UserRoles(subj)
	v := userView{User: u, RoleLabel: roles.FormatDisplay(held)}
	v.Roles = roles.Strings(held)
	if p, ok := roles.PrimaryRole(subj); ok {
		v.PrimaryRole = string(p)
	}
	if u.RegionID != nil {
		v.RegionName = regionNames[*u.RegionID]
	}
	return v
}

// views renders rows with their region names resolved in one lookup.
func (h *Handler) views(ctx context.Context, rows []models.User) []userView {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, u := range rows {
		if u.RegionID != nil && !seen[*u.RegionID] {
			seen[*u.RegionID] = true
			ids = append(ids, *u.RegionID)
		}
	}
	names := map[primitive.ObjectID]string{}
	if len(ids) > 0 {
		var err error
		if names, err = h.Regions.Names(ctx, ids); err != nil {
			h.Log.Warn("users: region names lookup failed", zap.Error(err))
			names = map[primitive.ObjectID]string{}
			for _, id := range ids {
				names[id] = id.Hex()
			}
		}
	}
	out := make([]userView, len(rows))
	for i, u := range rows {
		out[i] = toView(u, names)
	}
	return out
}

func (h *Handler) view(ctx context.Context, u models.User) userView {
	return h.views(ctx, []models.User{u})[0]
}
