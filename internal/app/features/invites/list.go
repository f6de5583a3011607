package invites

import (
	"context"
	"net/http"

	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type invitePage struct {
	paging.Page[inviteView]
	Total int64 `json:"total"`
}

// ServeList handles GET /invites. ?pending=true drops accepted invites.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	opt := invitestore.ListOptions{PendingOnly: query.Get(r, "pending") == "true"}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sc := authz.Scope(r)
	total, err := h.Invites.Count(ctx, sc, opt)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invites: count failed", err, "")
		return
	}
	start, limit := paging.ParseStart(r), paging.ParseLimit(r)
	opt.Skip = paging.Skip(start)
	opt.Limit = int64(limit + 1)
	rows, err := h.Invites.List(ctx, sc, opt)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "invites: list failed", err, "")
		return
	}
	hasNext := paging.TrimPage(&rows, limit)

	jsonio.OK(w, invitePage{Page: paging.NewPage(h.views(ctx, rows), start, hasNext), Total: total})
}

// views resolves region names for a page of invites in one query.
func (h *Handler) views(ctx context.Context, rows []models.Invite) []inviteView {
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, inv := range rows {
		if inv.RegionID != nil {
			ids = append(ids, *inv.RegionID)
		}
	}
	names := map[string]string{}
	if len(ids) > 0 {
		byID, err := h.Regions.Names(ctx, ids)
		if err != nil {
			h.Log.Warn("invites: region names lookup failed", zap.Error(err))
		}
		for id, name := range byID {
			names[id.Hex()] = name
		}
	}
	out := make([]inviteView, len(rows))
	for i, inv := range rows {
		out[i] = h.toView(inv, names)
	}
	return out
}
