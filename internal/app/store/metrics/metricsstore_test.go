package metricsstore_test

import (
	"testing"
	"time"

	metricsstore "github.com/dalemusser/churchhub/internal/app/store/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/visibility"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestFetchDashboardCounts_Empty(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	counts := metricsstore.FetchDashboardCounts(ctx, db, visibility.Global())
	if counts != (metricsstore.Counts{}) {
		t.Errorf("empty database counts = %+v", counts)
	}
}

func TestFetchDashboardCounts_Scoped(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, &north.ID)
	fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"pastor_local"}, &south.ID)
	fixtures.CreateChurch(ctx, "Igreja Norte", &north.ID)
	fixtures.CreatePendingInvite(ctx, "c@boladeneve.com", "tok-c", []string{"secretaria"}, &north.ID, time.Hour)
	accepted := fixtures.CreatePendingInvite(ctx, "d@boladeneve.com", "tok-d", []string{"secretaria"}, &north.ID, time.Hour)
	if _, err := db.Collection("invites").UpdateOne(ctx, bson.M{"_id": accepted.ID},
		bson.M{"$set": bson.M{"accepted_at": time.Now()}}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	got := metricsstore.FetchDashboardCounts(ctx, db, visibility.Region(north.ID))
	want := metricsstore.Counts{Users: 1, Churches: 1, Invites: 2, PendingInvites: 1, AcceptedInvites: 1}
	if got != want {
		t.Errorf("north counts = %+v, want %+v", got, want)
	}
	if all := metricsstore.FetchDashboardCounts(ctx, db, visibility.Global()); all.Users != 2 {
		t.Errorf("global users = %d, want 2", all.Users)
	}
	if none := metricsstore.FetchDashboardCounts(ctx, db, visibility.None()); none != (metricsstore.Counts{}) {
		t.Errorf("none scope counts = %+v", none)
	}
}

func TestBreakdowns(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local", "secretaria"}, nil)
	fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"pastor_local"}, nil)
	fixtures.CreateLegacyUser(ctx, "Cid", "cid@boladeneve.com", "admin")
	fixtures.CreateChurch(ctx, "Igreja A", nil)
	fixtures.CreateChurch(ctx, "Igreja B", nil)
	fixtures.CreatePendingInvite(ctx, "x@boladeneve.com", "tok-x", []string{"secretaria"}, nil, time.Hour)

	byRole, err := metricsstore.UsersByRole(ctx, db, visibility.Global())
	if err != nil {
		t.Fatalf("UsersByRole: %v", err)
	}
	want := []metricsstore.Bucket{{Key: "pastor_local", Count: 2}, {Key: "admin", Count: 1}, {Key: "secretaria", Count: 1}}
	if len(byRole) != len(want) {
		t.Fatalf("UsersByRole = %+v", byRole)
	}
	for i := range want {
		if byRole[i] != want[i] {
			t.Errorf("UsersByRole[%d] = %+v, want %+v", i, byRole[i], want[i])
		}
	}

	byKind, err := metricsstore.ChurchesByKind(ctx, db, visibility.Global())
	if err != nil || len(byKind) != 1 || byKind[0].Key != "igreja" || byKind[0].Count != 2 {
		t.Errorf("ChurchesByKind = %+v, %v", byKind, err)
	}

	byMonth, err := metricsstore.InvitesByMonth(ctx, db, visibility.Global())
	month := time.Now().UTC().Format("2006-01")
	if err != nil || len(byMonth) != 1 || byMonth[0].Key != month {
		t.Errorf("InvitesByMonth = %+v, %v", byMonth, err)
	}

	recent, err := metricsstore.Recent(ctx, db, visibility.Global(), 4, "user", "church", "invite")
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 4 {
		t.Fatalf("Recent returned %d, want 4", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].CreatedAt.After(recent[i-1].CreatedAt) {
			t.Errorf("Recent not newest first at %d: %+v", i, recent)
		}
	}
	for _, a := range recent {
		if a.ID == "" || a.Label == "" {
			t.Errorf("incomplete activity %+v", a)
		}
	}
}
