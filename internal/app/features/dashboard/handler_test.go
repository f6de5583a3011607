package dashboard_test

import (
	"net/http"
	"testing"

	"github.com/dalemusser/churchhub/internal/app/features/dashboard"
	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*dashboard.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	return dashboard.NewHandler(db, uierrors.NewErrorLogger(logger), logger), testutil.NewFixtures(t, db)
}

type body struct {
	Scope      string `json:"scope"`
	RegionName string `json:"region_name"`
	RoleLabel  string `json:"role_label"`
	Counts     struct {
		Users    int64 `json:"users"`
		Churches int64 `json:"churches"`
	} `json:"counts"`
	RecentUsers []struct {
		Label string `json:"label"`
	} `json:"recent_users"`
}

func TestServeDashboard_Unauthenticated(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := testutil.NewRecorder()
	h.ServeDashboard(rec, testutil.NewRequest("GET", "/dashboard"))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestServeDashboard_GlobalAndRegional(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, &north.ID)
	fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"pastor_local"}, &south.ID)
	fixtures.CreateChurch(ctx, "Igreja Sul", &south.ID)

	rec := testutil.NewRecorder()
	h.ServeDashboard(rec, testutil.NewAuthenticatedRequest("GET", "/dashboard", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
	var got body
	rec.DecodeJSON(t, &got)
	if got.Scope != "global" || got.Counts.Users != 2 || got.Counts.Churches != 1 || got.RoleLabel != "Administrador" {
		t.Errorf("admin dashboard = %+v", got)
	}

	rec = testutil.NewRecorder()
	h.ServeDashboard(rec, testutil.NewAuthenticatedRequest("GET", "/dashboard", testutil.RegionalPastor(north.ID)))
	got = body{}
	rec.DecodeJSON(t, &got)
	if got.Scope != "region" || got.RegionName != "Norte" || got.Counts.Users != 1 || got.Counts.Churches != 0 {
		t.Errorf("regional dashboard = %+v", got)
	}
	if len(got.RecentUsers) != 1 || got.RecentUsers[0].Label != "Ana" {
		t.Errorf("recent users = %+v", got.RecentUsers)
	}
}
