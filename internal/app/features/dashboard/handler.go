// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	metricsstore "github.com/dalemusser/churchhub/internal/app/store/metrics"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// recentLimit is how many new users and churches the dashboard lists.
const recentLimit = 5

type Handler struct {
	DB      *mongo.Database
	Regions *regionstore.Store
	ErrLog  *uierrors.ErrorLogger
	Log     *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:      db,
		Regions: regionstore.New(db),
		ErrLog:  errLog,
		Log:     logger,
	}
}

type dashboardData struct {
	UserName       string                  `json:"user_name"`
	PrimaryRole    string                  `json:"primary_role"`
	RoleLabel      string                  `json:"role_label"`
	Scope          string                  `json:"scope"` // global | region
	RegionName     string                  `json:"region_name,omitempty"`
	Counts         metricsstore.Counts     `json:"counts"`
	RecentUsers    []metricsstore.Activity `json:"recent_users"`
	RecentChurches []metricsstore.Activity `json:"recent_churches"`
}

// ServeDashboard handles GET /dashboard. Region-scoped callers see the
// figures of their region only.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	_, uname, subj, ok := authz.UserCtx(r)
	if !ok {
		jsonio.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	sc := authz.Scope(r)
	data := dashboardData{
		UserName:  uname,
		RoleLabel: roles.FormatDisplay(roles.UserRoles(subj)),
		Scope:     "global",
		Counts:    metricsstore.FetchDashboardCounts(ctx, h.DB, sc),
	}
	if pr, ok := roles.PrimaryRole(subj); ok {
		data.PrimaryRole = string(pr)
	}
	if regionID, ok := sc.RegionID(); ok {
		data.Scope = "region"
		data.RegionName = regionID.Hex()
		if reg, err := h.Regions.GetByID(ctx, regionID); err == nil {
			data.RegionName = reg.Name
		}
	}

	var err error
	if data.RecentUsers, err = metricsstore.Recent(ctx, h.DB, sc, recentLimit, "user"); err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: recent users failed", err, "")
		return
	}
	if data.RecentChurches, err = metricsstore.Recent(ctx, h.DB, sc, recentLimit, "church"); err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard: recent churches failed", err, "")
		return
	}

	h.Log.Debug("dashboard served", zap.String("user", uname), zap.String("scope", data.Scope))
	jsonio.OK(w, data)
}
