package users_test

import (
	"net/http"
	"testing"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/features/users"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*users.Handler, *testutil.Fixtures, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	prov := provisioning.New(credentialstore.New(db), userstore.New(db), invitestore.New(db), provisioning.Options{})
	h := users.NewHandler(db, prov, nil, uierrors.NewErrorLogger(logger), logger)
	return h, testutil.NewFixtures(t, db), db
}

func asUser(u models.User) testutil.TestUser {
	tu := testutil.TestUser{ID: u.ID, Name: u.DisplayName, Email: u.Email, Roles: u.Roles}
	if u.RegionID != nil {
		tu.RegionID = u.RegionID.Hex()
	}
	return tu
}

type listBody struct {
	Items []struct {
		ID         string   `json:"id"`
		Roles      []string `json:"roles"`
		RegionName string   `json:"region_name"`
	} `json:"items"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"has_next"`
}

func TestServeList_ScopedToRegion(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, &north.ID)
	fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"pastor_local"}, &south.ID)
	fixtures.CreateUser(ctx, "Cid", "cid@boladeneve.com", []string{"pastor_conselho"}, nil)

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/users", testutil.RegionalPastor(north.ID)))
	rec.AssertStatus(t, http.StatusOK)

	var body listBody
	rec.DecodeJSON(t, &body)
	if body.Total != 1 || len(body.Items) != 1 || body.Items[0].RegionName != "Norte" {
		t.Errorf("regional pastor should see only Norte, got %+v", body)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/users", testutil.AdminUser()))
	rec.DecodeJSON(t, &body)
	if body.Total != 3 {
		t.Errorf("admin should see all 3 users, got %d", body.Total)
	}
}

func TestServeList_FiltersAndPaging(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria"}, nil)
	fixtures.CreateUser(ctx, "André", "andre@boladeneve.com", []string{"pastor_local"}, nil)
	fixtures.CreateLegacyUser(ctx, "Antônio", "antonio@boladeneve.com", "secretaria")
	fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"secretaria"}, nil)

	admin := testutil.AdminUser()

	rec := testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/users?role=secretaria&search=an", admin))
	var body listBody
	rec.DecodeJSON(t, &body)
	if body.Total != 2 {
		t.Errorf("role+search should match Ana and the legacy Antônio, got %+v", body)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/users?search=bia@", admin))
	rec.DecodeJSON(t, &body)
	if body.Total != 1 {
		t.Errorf("email search should match Bia only, got %d", body.Total)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/users?limit=3", admin))
	rec.DecodeJSON(t, &body)
	if len(body.Items) != 3 || !body.HasNext || body.Total != 4 {
		t.Errorf("expected a first page of 3 with more to come, got %+v", body)
	}

	rec = testutil.NewRecorder()
	h.ServeList(rec, testutil.NewAuthenticatedRequest("GET", "/users?role=bispo", admin))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeView_OutOfScopeIsNotFound(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	u := fixtures.CreateUser(ctx, "Bia", "bia@boladeneve.com", []string{"pastor_local"}, &south.ID)

	req := testutil.NewAuthenticatedRequest("GET", "/users/"+u.ID, testutil.RegionalPastor(north.ID))
	rec := testutil.NewRecorder()
	h.ServeView(rec, testutil.WithChiURLParam(req, "id", u.ID))
	rec.AssertStatus(t, http.StatusNotFound)

	req = testutil.NewAuthenticatedRequest("GET", "/users/"+u.ID, testutil.RegionalPastor(south.ID))
	rec = testutil.NewRecorder()
	h.ServeView(rec, testutil.WithChiURLParam(req, "id", u.ID))
	rec.AssertStatus(t, http.StatusOK)
}

func TestHandleCreate_Direct(t *testing.T) {
	h, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Nordeste")
	inviter := testutil.RegionalPastor(region.ID)

	// No region in the body: a regional pastor's own region is used.
	req := testutil.WithUser(testutil.NewJSONRequest("POST", "/users", map[string]any{
		"email": "Nova@BolaDeNeve.com",
		"roles": []string{"pastor_local"},
	}), inviter)
	rec := testutil.NewRecorder()
	h.HandleCreate(rec, req)
	rec.AssertStatus(t, http.StatusCreated)

	var res provisioning.Result
	rec.DecodeJSON(t, &res)
	if res.UID == "" || res.Email != "nova@boladeneve.com" || len(res.TempPassword) < credentialstore.MinPasswordLength {
		t.Fatalf("unexpected result: %+v", res)
	}

	var stored models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": res.UID}).Decode(&stored); err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if stored.RegionID == nil || *stored.RegionID != region.ID || stored.Role != "pastor_local" {
		t.Errorf("stored profile = %+v", stored)
	}

	var inv models.Invite
	if err := db.Collection("invites").FindOne(ctx, bson.M{"email": "nova@boladeneve.com"}).Decode(&inv); err != nil {
		t.Fatalf("invite not stored: %v", err)
	}
	if inv.AcceptedAt == nil || !inv.AcceptedAt.Equal(inv.CreatedAt) || inv.CreatedBy != inviter.ID {
		t.Errorf("invite should be accepted at creation: %+v", inv)
	}
}

func TestHandleCreate_Rejections(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	north := fixtures.CreateRegion(ctx, "Norte")
	south := fixtures.CreateRegion(ctx, "Sul")
	fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, &north.ID)
	missing := primitive.NewObjectID()

	tests := []struct {
		name string
		user testutil.TestUser
		body map[string]any
		want int
	}{
		{"regional may not grant admin", testutil.RegionalPastor(north.ID),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"admin"}}, http.StatusForbidden},
		{"regional may not use another region", testutil.RegionalPastor(north.ID),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"secretaria"}, "region_id": south.ID.Hex()}, http.StatusForbidden},
		{"already registered", testutil.AdminUser(),
			map[string]any{"email": "ANA@boladeneve.com", "roles": []string{"secretaria"}}, http.StatusConflict},
		{"unknown region", testutil.AdminUser(),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"secretaria"}, "region_id": missing.Hex()}, http.StatusBadRequest},
		{"unknown church", testutil.AdminUser(),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"secretaria"}, "church_id": missing.Hex()}, http.StatusBadRequest},
		{"no roles", testutil.AdminUser(),
			map[string]any{"email": "x@boladeneve.com"}, http.StatusBadRequest},
		{"bad email", testutil.AdminUser(),
			map[string]any{"email": "not-an-email", "roles": []string{"secretaria"}}, http.StatusBadRequest},
		{"unknown field", testutil.AdminUser(),
			map[string]any{"email": "x@boladeneve.com", "roles": []string{"secretaria"}, "password": "x"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/users", tt.body), tt.user))
			rec.AssertStatus(t, tt.want)
		})
	}
}

func TestHandleCreate_LegacyRoleField(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.WithUser(testutil.NewJSONRequest("POST", "/users", map[string]any{
		"email": "velho@boladeneve.com",
		"role":  "secretaria",
	}), testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusCreated)
}

func TestHandleSetRoles(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, nil)
	admin := fixtures.CreateAdmin(ctx, "Chefe", "chefe@boladeneve.com")
	conselho := testutil.TestUser{ID: "c1", Roles: []string{"pastor_conselho"}}

	put := func(user testutil.TestUser, id string, rs []string) *testutil.ResponseRecorder {
		req := testutil.WithUser(testutil.NewJSONRequest("PUT", "/users/"+id+"/roles", map[string]any{"roles": rs}), user)
		rec := testutil.NewRecorder()
		h.HandleSetRoles(rec, testutil.WithChiURLParam(req, "id", id))
		return rec
	}

	rec := put(conselho, target.ID, []string{"pastor_regional", "secretaria"})
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		Roles []string `json:"roles"`
		Role  string   `json:"role"`
	}
	rec.DecodeJSON(t, &body)
	if len(body.Roles) != 2 || body.Role != "pastor_regional" {
		t.Errorf("roles not updated: %+v", body)
	}

	put(conselho, target.ID, []string{"admin"}).AssertStatus(t, http.StatusForbidden)
	// Council pastors cannot demote an admin either.
	put(conselho, admin.ID, []string{"pastor_local"}).AssertStatus(t, http.StatusForbidden)
	put(testutil.AdminUser(), target.ID, []string{"bispo"}).AssertStatus(t, http.StatusBadRequest)
}

func TestHandleSetRegion(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Centro-Oeste")
	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, nil)

	put := func(body map[string]any) *testutil.ResponseRecorder {
		req := testutil.WithUser(testutil.NewJSONRequest("PUT", "/users/"+target.ID+"/region", body), testutil.AdminUser())
		rec := testutil.NewRecorder()
		h.HandleSetRegion(rec, testutil.WithChiURLParam(req, "id", target.ID))
		return rec
	}

	rec := put(map[string]any{"region_id": region.ID.Hex()})
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Centro-Oeste")

	put(map[string]any{"region_id": primitive.NewObjectID().Hex()}).AssertStatus(t, http.StatusBadRequest)
	put(map[string]any{"region_id": "xyz"}).AssertStatus(t, http.StatusBadRequest)

	put(map[string]any{"region_id": nil}).AssertStatus(t, http.StatusOK)
	u, err := userstore.New(fixtures.DB()).GetByID(ctx, target.ID)
	if err != nil || u.RegionID != nil {
		t.Errorf("region should be cleared, got %+v (%v)", u, err)
	}
}

func TestHandleSetRoles_DroppingSecretariaClearsSecretaryOf(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := userstore.New(fixtures.DB())
	church := fixtures.CreateChurch(ctx, "Igreja Centro", nil)
	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria"}, nil)
	if err := store.SetSecretaryOf(ctx, target.ID, &church.ID); err != nil {
		t.Fatalf("SetSecretaryOf: %v", err)
	}

	setRoles := func(rs []string) {
		t.Helper()
		req := testutil.WithUser(testutil.NewJSONRequest("PUT", "/users/"+target.ID+"/roles", map[string]any{"roles": rs}), testutil.AdminUser())
		rec := testutil.NewRecorder()
		h.HandleSetRoles(rec, testutil.WithChiURLParam(req, "id", target.ID))
		rec.AssertStatus(t, http.StatusOK)
	}

	setRoles([]string{"secretaria", "pastor_local"})
	u, err := store.GetByID(ctx, target.ID)
	if err != nil || u.SecretaryOf == nil {
		t.Fatalf("secretary link should survive while secretaria is held: %+v (%v)", u, err)
	}

	setRoles([]string{"pastor_local"})
	u, err = store.GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if u.SecretaryOf != nil {
		t.Errorf("secretary_of should be cleared after losing secretaria, got %v", u.SecretaryOf)
	}
}

func TestHandleSetRegion_ScopedCallerStaysInRegion(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	own := fixtures.CreateRegion(ctx, "Sul")
	other := fixtures.CreateRegion(ctx, "Norte")
	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, &own.ID)
	// Council power plus a region-scoped role is still region-scoped.
	caller := testutil.TestUser{ID: "c1", Roles: []string{"pastor_conselho", "pastor_local"}, RegionID: own.ID.Hex()}

	put := func(body map[string]any) *testutil.ResponseRecorder {
		req := testutil.WithUser(testutil.NewJSONRequest("PUT", "/users/"+target.ID+"/region", body), caller)
		rec := testutil.NewRecorder()
		h.HandleSetRegion(rec, testutil.WithChiURLParam(req, "id", target.ID))
		return rec
	}

	put(map[string]any{"region_id": other.ID.Hex()}).AssertStatus(t, http.StatusForbidden)
	put(map[string]any{"region_id": nil}).AssertStatus(t, http.StatusForbidden)
	put(map[string]any{"region_id": own.ID.Hex()}).AssertStatus(t, http.StatusOK)

	u, err := userstore.New(fixtures.DB()).GetByID(ctx, target.ID)
	if err != nil || u.RegionID == nil || *u.RegionID != own.ID {
		t.Errorf("user should remain in the caller's region, got %+v (%v)", u, err)
	}
}

func TestHandleSetChurch_RequiresManagement(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	region := fixtures.CreateRegion(ctx, "Sul")
	mine := fixtures.CreateChurch(ctx, "Igreja Centro", &region.ID)
	other := fixtures.CreateChurch(ctx, "Igreja Bairro", &region.ID)
	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"secretaria"}, &region.ID)
	pastor := testutil.LocalPastor(region.ID, mine.ID)

	put := func(field string, churchID primitive.ObjectID) *testutil.ResponseRecorder {
		req := testutil.WithUser(testutil.NewJSONRequest("PUT", "/users/"+target.ID+"/"+field, map[string]any{"church_id": churchID.Hex()}), pastor)
		rec := testutil.NewRecorder()
		req = testutil.WithChiURLParam(req, "id", target.ID)
		if field == "church" {
			h.HandleSetChurch(rec, req)
		} else {
			h.HandleSetSecretaryOf(rec, req)
		}
		return rec
	}

	put("secretary-of", mine.ID).AssertStatus(t, http.StatusOK)
	put("secretary-of", other.ID).AssertStatus(t, http.StatusForbidden)
	put("church", mine.ID).AssertStatus(t, http.StatusOK)

	u, err := userstore.New(fixtures.DB()).GetByID(ctx, target.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if u.SecretaryOf == nil || *u.SecretaryOf != mine.ID || u.ChurchID == nil || *u.ChurchID != mine.ID {
		t.Errorf("church links not stored: %+v", u)
	}
}

func TestHandleSetStatus(t *testing.T) {
	h, fixtures, _ := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Chefe", "chefe@boladeneve.com")
	target := fixtures.CreateUser(ctx, "Ana", "ana@boladeneve.com", []string{"pastor_local"}, nil)

	put := func(id, st string) *testutil.ResponseRecorder {
		req := testutil.WithUser(testutil.NewJSONRequest("PUT", "/users/"+id+"/status", map[string]any{"status": st}), asUser(admin))
		rec := testutil.NewRecorder()
		h.HandleSetStatus(rec, testutil.WithChiURLParam(req, "id", id))
		return rec
	}

	rec := put(target.ID, "Inactive")
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, `"status":"inactive"`)

	put(target.ID, "banned").AssertStatus(t, http.StatusBadRequest)
	put(admin.ID, "inactive").AssertStatus(t, http.StatusBadRequest)
}

func TestHandleDelete(t *testing.T) {
	h, fixtures, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := fixtures.CreateAdmin(ctx, "Chefe", "chefe@boladeneve.com")
	target := fixtures.CreateAccount(ctx, "Ana", "ana@boladeneve.com", "segredo123", []string{"pastor_local"}, nil, false)

	del := func(id string) *testutil.ResponseRecorder {
		req := testutil.NewAuthenticatedRequest("DELETE", "/users/"+id, asUser(admin))
		rec := testutil.NewRecorder()
		h.HandleDelete(rec, testutil.WithChiURLParam(req, "id", id))
		return rec
	}

	del(admin.ID).AssertStatus(t, http.StatusBadRequest)
	del(target.ID).AssertStatus(t, http.StatusNoContent)
	del(target.ID).AssertStatus(t, http.StatusNotFound)

	for _, coll := range []string{"users", "credentials"} {
		n, err := db.Collection(coll).CountDocuments(ctx, bson.M{"_id": target.ID})
		if err != nil || n != 0 {
			t.Errorf("%s: expected record removed, count=%d err=%v", coll, n, err)
		}
	}
}
