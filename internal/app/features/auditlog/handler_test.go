package auditlog_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/churchhub/internal/app/features/auditlog"
	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/store/audit"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*auditlog.Handler, *testutil.Fixtures) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	errLog := uierrors.NewErrorLogger(logger)
	return auditlog.NewHandler(db, errLog, logger), testutil.NewFixtures(t, db)
}

type listBody struct {
	Items []struct {
		EventType  string `json:"event_type"`
		ActorName  string `json:"actor_name"`
		TargetName string `json:"target_name"`
		RegionName string `json:"region_name"`
	} `json:"items"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
}

func TestServeList_ResolvesNamesAndFilters(t *testing.T) {
	h, fixtures := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Sudeste")
	admin := fixtures.CreateAdmin(ctx, "Dona Admin", "admin@boladeneve.com")
	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria"}, &region.ID)

	now := time.Now().UTC()
	events := []audit.Event{
		{Timestamp: now.Add(-2 * time.Hour), Category: audit.CategoryAuth, EventType: audit.EventLoginSuccess, UserID: admin.ID, Success: true},
		{Timestamp: now.Add(-time.Hour), Category: audit.CategoryAdmin, EventType: audit.EventUserRegionChanged,
			ActorID: admin.ID, UserID: target.ID, RegionID: &region.ID, Success: true},
		{Timestamp: now, Category: audit.CategoryAdmin, EventType: audit.EventUserDeleted, ActorID: admin.ID, UserID: "gone-uid", Success: true},
	}
	for _, e := range events {
		if err := h.Events.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	user := testutil.AdminUser()

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/audit?category=admin", user))
	rec.AssertStatus(t, http.StatusOK)
	var body listBody
	rec.DecodeJSON(t, &body)
	if body.Total != 2 || len(body.Items) != 2 {
		t.Fatalf("admin events = %+v", body)
	}
	if got := body.Items[0]; got.EventType != audit.EventUserDeleted || got.TargetName != "gone-uid" {
		t.Errorf("newest first with raw id fallback, got %+v", got)
	}
	if got := body.Items[1]; got.ActorName != "Dona Admin" || got.TargetName != "Ana" || got.RegionName != "Sudeste" {
		t.Errorf("names not resolved: %+v", got)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/audit?limit=1", user))
	body = listBody{}
	rec.DecodeJSON(t, &body)
	if body.Total != 3 || len(body.Items) != 1 || !body.HasNext {
		t.Errorf("paged = %+v", body)
	}
}

func TestServeList_BadFilters(t *testing.T) {
	h, _ := newTestHandler(t)
	for _, q := range []string{"category=security", "region_id=nope", "start_date=17/10/2026", "end_date=x"} {
		rec := testutil.NewRecorder()
		h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/audit?"+q, testutil.AdminUser()))
		rec.AssertStatus(t, http.StatusBadRequest)
	}
}
