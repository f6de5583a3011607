package reports

import (
	"context"
	"fmt"
	"net/http"
	"time"

	metricsstore "github.com/dalemusser/churchhub/internal/app/store/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// recentLimit caps the recent activity list.
const recentLimit = 10

// roleBucket is a users-by-role row with its display label.
type roleBucket struct {
	metricsstore.Bucket
	Label string `json:"label"`
}

type report struct {
	GeneratedAt    time.Time               `json:"generated_at"`
	Totals         metricsstore.Counts     `json:"totals"`
	UsersByRole    []roleBucket            `json:"users_by_role"`
	ChurchesByKind []metricsstore.Bucket   `json:"churches_by_kind"`
	InvitesByMonth []metricsstore.Bucket   `json:"invites_by_month"`
	RecentActivity []metricsstore.Activity `json:"recent_activity"`
}

// ServeReport handles GET /reports. With ?download=1 the report is sent
// as a dated JSON attachment.
func (h *Handler) ServeReport(w http.ResponseWriter, r *http.Request) {
	_, uname, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	sc := authz.Scope(r)
	rep := report{
		GeneratedAt: h.now(),
		Totals:      metricsstore.FetchDashboardCounts(ctx, h.DB, sc),
	}

	byRole, err := metricsstore.UsersByRole(ctx, h.DB, sc)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "reports: users by role failed", err, "")
		return
	}
	rep.UsersByRole = make([]roleBucket, len(byRole))
	for i, b := range byRole {
		rep.UsersByRole[i] = roleBucket{Bucket: b, Label: roles.DisplayName(roles.Role(b.Key))}
	}
	if rep.ChurchesByKind, err = metricsstore.ChurchesByKind(ctx, h.DB, sc); err != nil {
		h.ErrLog.LogServerError(w, r, "reports: churches by kind failed", err, "")
		return
	}
	if rep.InvitesByMonth, err = metricsstore.InvitesByMonth(ctx, h.DB, sc); err != nil {
		h.ErrLog.LogServerError(w, r, "reports: invites by month failed", err, "")
		return
	}
	if rep.RecentActivity, err = metricsstore.Recent(ctx, h.DB, sc, recentLimit, "user", "church", "invite"); err != nil {
		h.ErrLog.LogServerError(w, r, "reports: recent activity failed", err, "")
		return
	}

	if query.Get(r, "download") != "" {
		name := fmt.Sprintf("relatorio-%s.json", rep.GeneratedAt.Format("2006-01-02"))
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	}
	h.Log.Debug("report served", zap.String("user", uname), zap.Bool("global", sc.IsGlobal()))
	jsonio.OK(w, rep)
}
