package me_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/features/me"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fixedLocator struct{ pt models.LatLng }

func (f fixedLocator) Locate(context.Context, string) (models.LatLng, bool, error) {
	return f.pt, true, nil
}

func newTestHandler(t *testing.T) (*me.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	h := me.NewHandler(db, fixedLocator{models.LatLng{Lat: -3.73, Lng: -38.52}}, nil, uierrors.NewErrorLogger(logger), logger)
	return h, testutil.NewFixtures(t, db), db
}

func asUser(u models.User) testutil.TestUser {
	tu := testutil.TestUser{ID: u.ID, Name: u.DisplayName, Email: u.Email, Roles: u.Roles}
	if u.RegionID != nil {
		tu.RegionID = u.RegionID.Hex()
	}
	return tu
}

func TestServeMe(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Nordeste")
	u := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria", "pastor_regional"}, &region.ID)

	rec := testutil.NewRecorder()
	h.ServeMe(rec, testutil.NewAuthenticatedRequest("GET", "/me", asUser(u)))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		ID             string   `json:"id"`
		Roles          []string `json:"roles"`
		PrimaryRole    string   `json:"primary_role"`
		RoleLabel      string   `json:"role_label"`
		InvitableRoles []string `json:"invitable_roles"`
		RegionName     string   `json:"region_name"`
	}
	rec.DecodeJSON(t, &body)
	if body.ID != u.ID || body.PrimaryRole != "pastor_regional" || body.RegionName != "Nordeste" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.RoleLabel != "Secretaria e Pastor Regional" {
		t.Errorf("role label = %q", body.RoleLabel)
	}
	if len(body.InvitableRoles) != 4 {
		t.Errorf("invitable roles = %v", body.InvitableRoles)
	}
}

func TestServeMe_LegacyRole(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateLegacyUser(ctx, "Velho", "velho@boladeneve.com", "pastor_local")

	rec := testutil.NewRecorder()
	h.ServeMe(rec, testutil.NewAuthenticatedRequest("GET", "/me", testutil.TestUser{ID: u.ID}))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Roles []string `json:"roles"`
	}
	rec.DecodeJSON(t, &body)
	if len(body.Roles) != 1 || body.Roles[0] != "pastor_local" {
		t.Errorf("legacy role should be reported as a one-element list, got %v", body.Roles)
	}
}

func TestHandleUpdate_Partial(t *testing.T) {
	h, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria"}, nil)
	users := userstore.New(db)
	if err := users.UpdateProfile(ctx, u.ID, userstore.ProfileUpdate{DisplayName: "Ana", Nickname: "Aninha"}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	rec := testutil.NewRecorder()
	req := testutil.WithUser(testutil.NewJSONRequest("PATCH", "/me", map[string]string{"phone": "(85) 99999-0000"}), asUser(u))
	h.HandleUpdate(rec, req)
	rec.AssertStatus(t, http.StatusOK)

	got, err := users.GetByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Nickname != "Aninha" || got.Phone == "" || got.DisplayName != "Ana" {
		t.Errorf("absent fields should be kept: %+v", got)
	}

	rec = testutil.NewRecorder()
	req = testutil.WithUser(testutil.NewJSONRequest("PATCH", "/me", map[string]string{"birth_date": "31/12/1990"}), asUser(u))
	h.HandleUpdate(rec, req)
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestHandleComplete_RegistersChurchAndAcceptsInvite(t *testing.T) {
	h, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Nordeste")
	u := fixtures.CreateUser(ctx, "", "pr@boladeneve.com", []string{"pastor_local"}, &region.ID)
	inv := fixtures.CreatePendingInvite(ctx, "pr@boladeneve.com", "tok-1", []string{"pastor_local"}, &region.ID, 24*time.Hour)

	body := map[string]any{
		"display_name": "Pr. João",
		"church":       map[string]any{"name": "Bola Fortaleza", "address": "Av. Beira Mar, 100", "uf": "CE"},
	}
	rec := testutil.NewRecorder()
	h.HandleComplete(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/me/complete", body), asUser(u)))
	rec.AssertStatus(t, http.StatusOK)

	got, _ := userstore.New(db).GetByID(ctx, u.ID)
	if got.DisplayName != "Pr. João" || got.ChurchID == nil {
		t.Fatalf("profile not completed: %+v", got)
	}
	church, err := placestore.New(db).GetByID(ctx, *got.ChurchID)
	if err != nil {
		t.Fatalf("church not stored: %v", err)
	}
	if church.Location == nil || church.Location.Lat != -3.73 || church.RegionID == nil || *church.RegionID != region.ID || church.OwnerUID != u.ID {
		t.Errorf("unexpected church: %+v", church)
	}

	accepted, _ := invitestore.New(db).GetByID(ctx, inv.ID)
	if accepted.AcceptedAt == nil || accepted.AcceptedByUID != u.ID {
		t.Errorf("invite should be accepted: %+v", accepted)
	}
}

func TestHandleComplete_SecretaryCannotRegisterChurch(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"secretaria"}, nil)
	body := map[string]any{"church": map[string]any{"name": "X", "address": "Rua Y"}}

	rec := testutil.NewRecorder()
	h.HandleComplete(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/me/complete", body), asUser(u)))
	rec.AssertStatus(t, http.StatusForbidden)
}

func TestHandlePassword(t *testing.T) {
	h, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fixtures.CreateAccount(ctx, "Caio", "caio@boladeneve.com", "temporaria1", []string{"secretaria"}, nil, true)
	tu := asUser(u)

	rec := testutil.NewRecorder()
	h.HandlePassword(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/me/password",
		map[string]string{"current_password": "errada-123", "new_password": "nova-senha-1"}), tu))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	h.HandlePassword(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/me/password",
		map[string]string{"current_password": "temporaria1", "new_password": "curta"}), tu))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = testutil.NewRecorder()
	h.HandlePassword(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/me/password",
		map[string]string{"current_password": "temporaria1", "new_password": "nova-senha-1"}), tu))
	rec.AssertStatus(t, http.StatusNoContent)

	cred, err := credentialstore.New(db).Authenticate(ctx, "caio@boladeneve.com", "nova-senha-1")
	if err != nil {
		t.Fatalf("new password does not work: %v", err)
	}
	if cred.MustChangePassword {
		t.Error("must_change_password should be cleared")
	}
}
