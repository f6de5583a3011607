package validators_test

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/validators"
	"github.com/dalemusser/churchhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*mongo.Database, context.Context) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	t.Cleanup(cancel)

	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	return db, ctx
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db, ctx := setup(t)

	// Second call should also succeed
	if err := validators.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("Second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesCollections(t *testing.T) {
	db, ctx := setup(t)

	expectedCollections := []string{
		"users",
		"credentials",
		"regions",
		"places",
		"invites",
		"chat_rooms",
		"chat_messages",
		"audit_events",
	}

	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		t.Fatalf("ListCollectionNames failed: %v", err)
	}

	collMap := make(map[string]bool)
	for _, name := range names {
		collMap[name] = true
	}

	for _, expected := range expectedCollections {
		if !collMap[expected] {
			t.Errorf("expected collection %q to exist", expected)
		}
	}
}

func TestUsersValidator(t *testing.T) {
	db, ctx := setup(t)
	now := time.Now().UTC()

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{"missing required fields", bson.M{"display_name": "Ana"}, true},
		{"valid multi-role user", bson.M{
			"_id": "uid-1", "email": "ana@test.com", "display_name": "Ana",
			"roles": bson.A{"pastor_regional", "secretaria"}, "status": "active", "created_at": now,
		}, false},
		{"legacy single role", bson.M{
			"_id": "uid-2", "email": "velho@test.com", "role": "pastor", "status": "active",
		}, false},
		{"unknown role in array", bson.M{
			"_id": "uid-3", "email": "x@test.com", "roles": bson.A{"bishop"}, "status": "active",
		}, true},
		{"bad status", bson.M{
			"_id": "uid-4", "email": "y@test.com", "status": "disabled",
		}, true},
		{"blank email", bson.M{
			"_id": "uid-5", "email": "   ", "status": "active",
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection("users").InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUsersValidator_AllValidRoles(t *testing.T) {
	db, ctx := setup(t)

	for _, role := range []string{"admin", "pastor_conselho", "pastor_regional", "pastor_local", "secretaria"} {
		_, err := db.Collection("users").InsertOne(ctx, bson.M{
			"_id":    "uid-" + role,
			"email":  role + "@test.com",
			"roles":  bson.A{role},
			"status": "active",
		})
		if err != nil {
			t.Errorf("role %q rejected: %v", role, err)
		}
	}
}

func TestPlacesValidator(t *testing.T) {
	db, ctx := setup(t)

	tests := []struct {
		name    string
		doc     bson.M
		wantErr bool
	}{
		{"valid church", bson.M{
			"kind": "igreja", "name": "Igreja Central", "name_ci": "igreja central", "uf": "SP",
			"location": bson.M{"lat": -23.55, "lng": -46.63},
		}, false},
		{"no location", bson.M{"kind": "nucleo", "name": "Núcleo", "name_ci": "nucleo"}, false},
		{"bad kind", bson.M{"kind": "templo", "name": "X", "name_ci": "x"}, true},
		{"latitude out of range", bson.M{
			"kind": "igreja", "name": "X", "name_ci": "x", "location": bson.M{"lat": 123.0, "lng": 0.0},
		}, true},
		{"missing name", bson.M{"kind": "igreja"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Collection("places").InsertOne(ctx, tt.doc)
			if (err != nil) != tt.wantErr {
				t.Errorf("InsertOne error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegionsValidator(t *testing.T) {
	db, ctx := setup(t)

	if _, err := db.Collection("regions").InsertOne(ctx, bson.M{"name": "Sul", "name_ci": "sul", "is_active": true}); err != nil {
		t.Errorf("valid region rejected: %v", err)
	}
	if _, err := db.Collection("regions").InsertOne(ctx, bson.M{"name": "Norte", "name_ci": "norte", "is_active": "yes"}); err == nil {
		t.Error("expected non-bool is_active to be rejected")
	}
}

func TestInvitesValidator(t *testing.T) {
	db, ctx := setup(t)
	now := time.Now().UTC()
	region := primitive.NewObjectID()

	_, err := db.Collection("invites").InsertOne(ctx, bson.M{
		"email": "novo@test.com", "role": "pastor_local", "roles": bson.A{"pastor_local"},
		"region_id": region, "created_at": now, "accepted_at": nil,
		"token": "abc", "expires_at": now.Add(time.Hour),
	})
	if err != nil {
		t.Errorf("valid invite rejected: %v", err)
	}

	_, err = db.Collection("invites").InsertOne(ctx, bson.M{
		"email": "novo2@test.com", "roles": bson.A{"pastor_local"}, "created_at": "yesterday",
	})
	if err == nil {
		t.Error("expected string created_at to be rejected")
	}
}

func TestChatValidators(t *testing.T) {
	db, ctx := setup(t)

	if _, err := db.Collection("chat_rooms").InsertOne(ctx, bson.M{
		"type": "direct", "participants": bson.A{"a", "b"},
	}); err != nil {
		t.Errorf("valid room rejected: %v", err)
	}
	if _, err := db.Collection("chat_rooms").InsertOne(ctx, bson.M{
		"type": "group", "participants": bson.A{},
	}); err == nil {
		t.Error("expected empty participants to be rejected")
	}
	if _, err := db.Collection("chat_messages").InsertOne(ctx, bson.M{
		"room_id": primitive.NewObjectID(), "sender_id": "a", "type": "sticker",
	}); err == nil {
		t.Error("expected unknown message type to be rejected")
	}
}

func TestAuditEvents_NoValidator(t *testing.T) {
	db, ctx := setup(t)

	if _, err := db.Collection("audit_events").InsertOne(ctx, bson.M{"anything": true}); err != nil {
		t.Errorf("audit_events should accept any document: %v", err)
	}
}
