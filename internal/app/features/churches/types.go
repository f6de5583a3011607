package churches

import (
	"context"

	"github.com/dalemusser/churchhub/internal/app/system/geo"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type churchView struct {
	models.Place
	RegionName string `json:"region_name,omitempty"`
	Macro      string `json:"macro,omitempty"`
	MacroName  string `json:"macro_name,omitempty"`
}

type churchPage struct {
	paging.Page[churchView]
	Total int64 `json:"total"`
}

func toView(p models.Place, regionNames map[primitive.ObjectID]string) churchView {
	v := churchView{Place: p}
	if p.RegionID != nil {
		v.RegionName = regionNames[*p.RegionID]
	}
	if m, ok := geo.MacroForUF(p.UF); ok {
		v.Macro = string(m)
		v.MacroName = m.Name()
	}
	return v
}

// regionNames resolves the regions referenced by places. On a lookup
// failure the raw ids stand in for names.
func (h *Handler) regionNames(ctx context.Context, places []models.Place) map[primitive.ObjectID]string {
	var ids []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}
	for _, p := range places {
		if p.RegionID != nil && !seen[*p.RegionID] {
			seen[*p.RegionID] = true
			ids = append(ids, *p.RegionID)
		}
	}
	if len(ids) == 0 {
		return map[primitive.ObjectID]string{}
	}
	names, err := h.Regions.Names(ctx, ids)
	if err != nil {
		h.Log.Warn("churches: region names lookup failed", zap.Error(err))
		names = make(map[primitive.ObjectID]string, len(ids))
		for _, id := range ids {
			names[id] = id.Hex()
		}
	}
	return names
}

func (h *Handler) views(ctx context.Context, places []models.Place) []churchView {
	names := h.regionNames(ctx, places)
	out := make([]churchView, len(places))
	for i, p := range places {
		out[i] = toView(p, names)
	}
	return out
}

// pastorView is the public face of a pastor or secretary of a church.
type pastorView struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	Roles       []string `json:"roles"`
}

func rolesOf(u models.User) []string {
	return roles.Strings(roles.UserRoles(roles.FromUser(&u)))
}
