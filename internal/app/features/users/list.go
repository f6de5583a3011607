package users

import (
	"context"
	"net/http"

	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/status"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeList handles GET /users.
//
// Query: search (name prefix, or email prefix when it contains @), role,
// status, church_id, start, limit. Only users visible to the caller are
// listed or counted.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	opt := userstore.ListOptions{
		Search: query.Get(r, "search"),
		Status: query.Get(r, "status"),
	}
	if raw := query.Get(r, "role"); raw != "" {
		role, ok := roles.Parse(raw)
		if !ok {
			jsonio.Error(w, http.StatusBadRequest, "Função desconhecida.")
			return
		}
		opt.Role = role
	}
	if opt.Status != "" && !status.IsValid(normalize.Status(opt.Status)) {
		jsonio.Error(w, http.StatusBadRequest, "Status inválido.")
		return
	}
	churchID, err := formutil.OptionalID(query.Get(r, "church_id"))
	if err != nil {
		jsonio.Error(w, http.StatusBadRequest, "Igreja inválida.")
		return
	}
	opt.ChurchID = churchID

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sc := authz.Scope(r)
	total, err := h.Users.Count(ctx, sc, opt)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: count failed", err, "")
		return
	}

	start, limit := paging.ParseStart(r), paging.ParseLimit(r)
	opt.Skip = paging.Skip(start)
	opt.Limit = int64(limit + 1)
	rows, err := h.Users.List(ctx, sc, opt)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: list failed", err, "")
		return
	}
	hasNext := paging.TrimPage(&rows, limit)

	jsonio.OK(w, userPage{Page: paging.NewPage(h.views(ctx, rows), start, hasNext), Total: total})
}

// ServeView handles GET /users/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, ok := h.loadTarget(ctx, w, r)
	if !ok {
		return
	}
	jsonio.OK(w, h.view(ctx, *u))
}
