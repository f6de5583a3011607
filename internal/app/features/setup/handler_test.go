package setup_test

import (
	"net/http"
	"testing"
	"time"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/features/setup"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*setup.Handler, *mongo.Database) {
	t.Helper()
	return newTestHandlerWithDomains(t, nil)
}

func newTestHandlerWithDomains(t *testing.T, domains []string) (*setup.Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-must-be-32-chars-long", "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	prov := provisioning.New(nil, nil, nil, provisioning.Options{AllowedDomains: domains})
	return setup.NewHandler(db, prov, sm, nil, uierrors.NewErrorLogger(logger), logger), db
}

func hasAdmin(t *testing.T, h *setup.Handler) bool {
	t.Helper()
	rec := testutil.NewRecorder()
	h.ServeStatus(rec, testutil.NewRequest("GET", "/setup"))
	rec.AssertStatus(t, http.StatusOK)
	var body struct {
		HasAdmin bool `json:"has_admin"`
	}
	rec.DecodeJSON(t, &body)
	return body.HasAdmin
}

func TestSetup_CreatesFirstAdminOnce(t *testing.T) {
	h, db := newTestHandler(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if hasAdmin(t, h) {
		t.Fatal("fresh database should have no admin")
	}

	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.NewJSONRequest("POST", "/setup", map[string]string{
		"email": "Dono@BolaDeNeve.com", "password": "s3nha-forte", "display_name": "Dono",
	}))
	rec.AssertStatus(t, http.StatusCreated)
	if len(rec.Result().Cookies()) == 0 {
		t.Error("expected the new admin to be signed in")
	}
	if !hasAdmin(t, h) {
		t.Error("admin should exist after setup")
	}
	if _, err := credentialstore.New(db).Authenticate(ctx, "dono@boladeneve.com", "s3nha-forte"); err != nil {
		t.Errorf("admin cannot sign in: %v", err)
	}

	rec = testutil.NewRecorder()
	h.HandleCreate(rec, testutil.NewJSONRequest("POST", "/setup", map[string]string{
		"email": "outro@boladeneve.com", "password": "s3nha-forte", "display_name": "Outro",
	}))
	rec.AssertStatus(t, http.StatusConflict)
}

func TestSetup_Validation(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, body := range []map[string]string{
		{"email": "nope", "password": "s3nha-forte", "display_name": "X"},
		{"email": "a@b.com", "password": "curta", "display_name": "X"},
		{"email": "a@b.com", "password": "s3nha-forte"},
	} {
		rec := testutil.NewRecorder()
		h.HandleCreate(rec, testutil.NewJSONRequest("POST", "/setup", body))
		rec.AssertStatus(t, http.StatusBadRequest)
	}
	if hasAdmin(t, h) {
		t.Error("invalid requests must not create an admin")
	}
}

func TestSetup_DomainNotAllowed(t *testing.T) {
	h, db := newTestHandlerWithDomains(t, []string{"boladeneve.com"})
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := testutil.NewRecorder()
	h.HandleCreate(rec, testutil.NewJSONRequest("POST", "/setup", map[string]string{
		"email": "dono@gmail.com", "password": "s3nha-forte", "display_name": "Dono",
	}))
	rec.AssertStatus(t, http.StatusBadRequest)
	if hasAdmin(t, h) {
		t.Error("a rejected domain must not create an admin")
	}
	_, found, err := credentialstore.New(db).FindIdentity(ctx, "dono@gmail.com")
	if err != nil {
		t.Fatalf("FindIdentity: %v", err)
	}
	if found {
		t.Error("a rejected domain must not create an identity")
	}
}
