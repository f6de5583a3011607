package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateRegion creates an active region with the given name.
func (f *Fixtures) CreateRegion(ctx context.Context, name string) models.Region {
	f.t.Helper()

	now := time.Now().UTC()
	reg := models.Region{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("regions").InsertOne(ctx, reg); err != nil {
		f.t.Fatalf("failed to create test region: %v", err)
	}
	return reg
}

// CreateChurch creates a church in regionID (nil for none).
func (f *Fixtures) CreateChurch(ctx context.Context, name string, regionID *primitive.ObjectID) models.Place {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Place{
		ID:        primitive.NewObjectID(),
		Kind:      models.PlaceKindChurch,
		Name:      name,
		NameCI:    text.Fold(name),
		Address:   "Rua Teste, 100",
		UF:        "SP",
		Location:  &models.LatLng{Lat: -23.55, Lng: -46.63},
		RegionID:  regionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("places").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test church: %v", err)
	}
	return p
}

// CreateUser creates an active user holding rs, optionally in regionID.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string, rs []string, regionID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:            uuid.NewString(),
		Email:         email,
		DisplayName:   name,
		DisplayNameCI: text.Fold(name),
		Roles:         rs,
		RegionID:      regionID,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if len(rs) > 0 {
		u.Role = rs[0]
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateAccount creates a user plus a credential that signs in with
// password. temporary marks the password as one that must be changed.
func (f *Fixtures) CreateAccount(ctx context.Context, name, email, password string, rs []string, regionID *primitive.ObjectID, temporary bool) models.User {
	f.t.Helper()

	u := f.CreateUser(ctx, name, email, rs, regionID)
	f.AddCredential(ctx, u.ID, email, password, temporary)
	return u
}

// AddCredential registers an identity id with the credential store.
func (f *Fixtures) AddCredential(ctx context.Context, id, email, password string, temporary bool) {
	f.t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash password: %v", err)
	}
	now := time.Now().UTC()
	cred := models.Credential{
		ID:                 id,
		Email:              email,
		PasswordHash:       string(hash),
		MustChangePassword: temporary,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := f.db.Collection("credentials").InsertOne(ctx, cred); err != nil {
		f.t.Fatalf("failed to create test credential: %v", err)
	}
}

// CreateAdmin creates an admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, name, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, name, email, []string{"admin"}, nil)
}

// CreateLegacyUser creates a user carrying only the legacy single role field.
func (f *Fixtures) CreateLegacyUser(ctx context.Context, name, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:            uuid.NewString(),
		Email:         email,
		DisplayName:   name,
		DisplayNameCI: text.Fold(name),
		Role:          role,
		Status:        "active",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create legacy user: %v", err)
	}
	return u
}

// CreatePendingInvite creates a link invite for email that expires after ttl.
func (f *Fixtures) CreatePendingInvite(ctx context.Context, email, token string, rs []string, regionID *primitive.ObjectID, ttl time.Duration) models.Invite {
	f.t.Helper()

	now := time.Now().UTC()
	exp := now.Add(ttl)
	inv := models.Invite{
		ID:        primitive.NewObjectID(),
		Email:     email,
		Roles:     rs,
		RegionID:  regionID,
		CreatedBy: "fixture",
		CreatedAt: now,
		Token:     token,
		ExpiresAt: &exp,
	}
	if len(rs) > 0 {
		inv.Role = rs[0]
	}
	if _, err := f.db.Collection("invites").InsertOne(ctx, inv); err != nil {
		f.t.Fatalf("failed to create test invite: %v", err)
	}
	return inv
}
