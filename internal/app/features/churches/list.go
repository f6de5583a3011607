package churches

import (
	"context"
	"net/http"

	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// listOptions reads the shared filters of the list, map and export
// endpoints: kind, search, uf, region_id.
func listOptions(r *http.Request) (placestore.ListOptions, bool) {
	opt := placestore.ListOptions{
		Kind:   query.Get(r, "kind"),
		Search: query.Get(r, "search"),
		UF:     query.Get(r, "uf"),
	}
	if opt.Kind != "" && !inputval.IsValidPlaceKind(opt.Kind) {
		return opt, false
	}
	regionID, err := formutil.OptionalID(query.Get(r, "region_id"))
	if err != nil {
		return opt, false
	}
	opt.RegionID = regionID
	return opt, true
}

// ServeList handles GET /churches. Pages are keyset paged by name; pass
// the returned next cursor as ?after= to continue.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	opt, ok := listOptions(r)
	if !ok {
		jsonio.Error(w, http.StatusBadRequest, "Filtro inválido.")
		return
	}
	opt.Located = query.Get(r, "located") == "true"

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sc := authz.Scope(r)
	total, err := h.Places.Count(ctx, sc, opt)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: count failed", err, "")
		return
	}
	ks := paging.ConfigureKeyset(query.Get(r, "after"), paging.ParseLimit(r))
	rows, hasNext, err := h.Places.List(ctx, sc, opt, ks)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: list failed", err, "")
		return
	}

	page := churchPage{Page: paging.NewPage(h.views(ctx, rows), 1, hasNext), Total: total}
	if hasNext {
		page.Next = paging.NextCursor(rows,
			func(p models.Place) string { return p.NameCI },
			func(p models.Place) primitive.ObjectID { return p.ID })
	}
	jsonio.OK(w, page)
}

// ServeView handles GET /churches/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, ok := h.loadChurch(ctx, w, r)
	if !ok {
		return
	}
	jsonio.OK(w, h.views(ctx, []models.Place{p})[0])
}

// ServePastors handles GET /churches/{id}/pastors: the users whose church
// is this one.
func (h *Handler) ServePastors(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, ok := h.loadChurch(ctx, w, r)
	if !ok {
		return
	}
	users, err := h.Users.ListByChurch(ctx, p.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: list pastors failed", err, "")
		return
	}
	out := make([]pastorView, 0, len(users))
	for _, u := range users {
		out = append(out, pastorView{
			ID:          u.ID,
			DisplayName: u.DisplayName,
			Email:       u.Email,
			Phone:       u.Phone,
			Roles:       rolesOf(u),
		})
	}
	jsonio.OK(w, map[string]any{"church_id": p.ID, "pastors": out})
}
