package invites_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/features/invites"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/notify"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu      sync.Mutex
	notices []notify.InviteNotice
}

func (n *recordingNotifier) NotifyInvite(_ context.Context, in notify.InviteNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, in)
	return nil
}

func (n *recordingNotifier) last() (notify.InviteNotice, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return notify.InviteNotice{}, false
	}
	return n.notices[len(n.notices)-1], true
}

func newTestHandler(t *testing.T) (*invites.Handler, *testutil.Fixtures, *recordingNotifier, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	rec := &recordingNotifier{}
	prov := provisioning.New(credentialstore.New(db), userstore.New(db), invitestore.New(db), provisioning.Options{
		AcceptURL: func(token string) string { return "https://igrejas.example/convite/" + token },
		Notifier:  rec,
	})
	h := invites.NewHandler(db, prov, nil, uierrors.NewErrorLogger(logger), logger)
	return h, testutil.NewFixtures(t, db), rec, db
}

type createdBody struct {
	ID       primitive.ObjectID `json:"id"`
	Email    string             `json:"email"`
	State    string             `json:"state"`
	Link     string             `json:"link"`
	Notified bool               `json:"notified"`
}

func TestHandleCreate_LinkInviteIsNotified(t *testing.T) {
	h, _, notifier, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/invites", map[string]any{
		"email": " Novo@BolaDeNeve.com ", "roles": []string{"pastor_local"}, "send_whatsapp": true,
	}), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)

	var body createdBody
	rec.DecodeJSON(t, &body)
	if body.Email != "novo@boladeneve.com" || body.State != "pending" || !body.Notified {
		t.Errorf("created = %+v", body)
	}
	inv, err := invitestore.New(db).GetByID(ctx, body.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(inv.Token) != 64 || !strings.HasSuffix(body.Link, "/convite/"+inv.Token) {
		t.Errorf("token %q, link %q", inv.Token, body.Link)
	}
	n, ok := notifier.last()
	if !ok || n.Link != body.Link || !n.SendEmail || !n.SendWhatsApp || n.RoleName != "Pastor Local" {
		t.Errorf("notice = %+v", n)
	}
}

func TestHandleCreate_Rejections(t *testing.T) {
	h, fixtures, _, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria"}, &north.ID)

	tests := []struct {
		name string
		user testutil.TestUser
		body map[string]any
		want int
	}{
		{"beyond inviter's roles", testutil.RegionalPastor(north.ID),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"admin"}}, http.StatusForbidden},
		{"other region", testutil.RegionalPastor(north.ID),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"pastor_local"}, "region_id": south.ID.Hex()}, http.StatusForbidden},
		{"already registered", testutil.AdminUser(),
			map[string]any{"email": "ana@boladeneve.com", "roles": []string{"secretaria"}}, http.StatusConflict},
		{"no roles", testutil.AdminUser(),
			map[string]any{"email": "x@boladeneve.com"}, http.StatusBadRequest},
		{"unknown region", testutil.AdminUser(),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"secretaria"}, "region_id": primitive.NewObjectID().Hex()}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/invites", tt.body), tt.user))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestHandleCreate_Direct(t *testing.T) {
	h, _, notifier, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/invites", map[string]any{
		"email": "direto@boladeneve.com", "roles": []string{"secretaria"}, "direct": true,
	}), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)
	var res provisioning.Result
	rec.DecodeJSON(t, &res)
	if res.UID == "" || res.TempPassword == "" {
		t.Errorf("direct result = %+v", res)
	}
	if _, ok := notifier.last(); ok {
		t.Error("direct provisioning should not send a link")
	}
}

func TestVerifyAndAccept(t *testing.T) {
	h, fixtures, _, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Nordeste")
	inv := fixtures.CreatePendingInvite(ctx, "convidado@boladeneve.com", "tok-ok", []string{"pastor_local"}, &region.ID, time.Hour)
	fixtures.CreatePendingInvite(ctx, "velho@boladeneve.com", "tok-old", []string{"secretaria"}, nil, -time.Hour)

	rec := testutil.NewRecorder()
	h.ServeVerify(rec, testutil.WithChiURLParam(testutil.NewRequest("GET", "/invites/verify/x"), "token", "tok-ok"))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"region_name":"Nordeste"`)
	rec.AssertContains(t, `"role_label":"Pastor Local"`)

	accept := func(token string) *testutil.ResponseRecorder {
		rec := testutil.NewRecorder()
		req := testutil.NewJSONRequest("POST", "/invites/accept/x", map[string]any{
			"password": "senha-forte-1", "display_name": "Convidado",
		})
		h.HandleAccept(rec, testutil.WithChiURLParam(req, "token", token))
		return rec
	}

	rec = accept("tok-ok")
	rec.AssertStatus(t, http.StatusCreated)
	var res provisioning.Result
	rec.DecodeJSON(t, &res)
	if res.InviteID != inv.ID {
		t.Errorf("accepted invite %s, want %s", res.InviteID.Hex(), inv.ID.Hex())
	}
	u, err := userstore.New(db).GetByID(ctx, res.UID)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if u.RegionID == nil || *u.RegionID != region.ID || u.Roles[0] != "pastor_local" {
		t.Errorf("profile = %+v", u)
	}
	if _, err := credentialstore.New(db).Authenticate(ctx, "convidado@boladeneve.com", "senha-forte-1"); err != nil {
		t.Errorf("chosen password should sign in: %v", err)
	}

	accept("tok-ok").AssertStatus(t, http.StatusGone)
	accept("tok-old").AssertStatus(t, http.StatusGone)
	accept("tok-missing").AssertStatus(t, http.StatusNotFound)
}

func TestRevokeAndResend(t *testing.T) {
	h, fixtures, notifier, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	pending := fixtures.CreatePendingInvite(ctx, "a@boladeneve.com", "tok-a", []string{"secretaria"}, nil, time.Hour)
	accepted := fixtures.CreatePendingInvite(ctx, "b@boladeneve.com", "tok-b", []string{"secretaria"}, nil, time.Hour)
	store := invitestore.New(db)
	if err := store.MarkAccepted(ctx, accepted.ID, "uid-b", time.Now()); err != nil {
		t.Fatalf("MarkAccepted: %v", err)
	}
	other := fixtures.CreatePendingInvite(ctx, "c@boladeneve.com", "tok-c", []string{"secretaria"}, nil, time.Hour)
	admin := testutil.AdminUser()

	rec := testutil.NewRecorder()
	h.HandleResend(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("POST", "/invites/x/resend", admin), "id", other.ID.Hex()))
	rec.AssertStatus(t, http.StatusOK)
	reloaded, _ := store.GetByID(ctx, other.ID)
	if reloaded.Token == "tok-c" {
		t.Error("resend should issue a new token")
	}
	if n, ok := notifier.last(); !ok || !strings.HasSuffix(n.Link, reloaded.Token) {
		t.Errorf("resend notice = %+v", n)
	}

	rec = testutil.NewRecorder()
	h.HandleRevoke(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("DELETE", "/invites/x", admin), "id", pending.ID.Hex()))
	rec.AssertStatus(t, http.StatusNoContent)
	if _, err := store.GetByID(ctx, pending.ID); err != invitestore.ErrNotFound {
		t.Errorf("revoked invite still present: %v", err)
	}

	rec = testutil.NewRecorder()
	h.HandleRevoke(rec, testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("DELETE", "/invites/x", admin), "id", accepted.ID.Hex()))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestServeList_Scoped(t *testing.T) {
	h, fixtures, _, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	fixtures.CreatePendingInvite(ctx, "n@boladeneve.com", "tok-n", []string{"secretaria"}, &north.ID, time.Hour)
	fixtures.CreatePendingInvite(ctx, "s@boladeneve.com", "tok-s", []string{"secretaria"}, &south.ID, time.Hour)

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/invites?pending=true", testutil.RegionalPastor(north.ID)))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Items []struct {
			Email      string `json:"email"`
			RegionName string `json:"region_name"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	rec.DecodeJSON(t, &body)
	if body.Total != 1 || len(body.Items) != 1 || body.Items[0].Email != "n@boladeneve.com" || body.Items[0].RegionName != "Norte" {
		t.Errorf("list = %+v", body)
	}
}
