package credentialstore_test

import (
	"errors"
	"testing"

	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	"github.com/dalemusser/churchhub/internal/testutil"
)

func TestCreateIdentity_AndAuthenticate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := credentialstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := store.CreateIdentity(ctx, "Ana@BolaDeNeve.com", "senha-forte-1", true)
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected an identity id")
	}

	cred, err := store.Authenticate(ctx, "ana@boladeneve.com", "senha-forte-1")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if cred.ID != id || !cred.MustChangePassword {
		t.Errorf("unexpected credential: %+v", cred)
	}

	if _, err := store.Authenticate(ctx, "ana@boladeneve.com", "wrong-password"); !errors.Is(err, credentialstore.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := store.Authenticate(ctx, "nobody@boladeneve.com", "senha-forte-1"); !errors.Is(err, credentialstore.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestCreateIdentity_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := credentialstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// Uniqueness comes from the email index.
	_, err := db.Collection("credentials").Indexes().CreateOne(ctx, testutil.UniqueIndex("email"))
	if err != nil {
		t.Fatalf("create index: %v", err)
	}

	if _, err := store.CreateIdentity(ctx, "dup@x.com", "password-1", false); err != nil {
		t.Fatalf("first CreateIdentity failed: %v", err)
	}
	if _, err := store.CreateIdentity(ctx, "DUP@x.com", "password-2", false); !errors.Is(err, credentialstore.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}
}

func TestCreateIdentity_WeakPassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := credentialstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.CreateIdentity(ctx, "w@x.com", "short", false); !errors.Is(err, credentialstore.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSetPassword_ClearsTemporary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := credentialstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, err := store.CreateIdentity(ctx, "t@x.com", "temporary-1", true)
	if err != nil {
		t.Fatalf("CreateIdentity failed: %v", err)
	}
	if err := store.SetPassword(ctx, id, "permanent-1", false); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	cred, err := store.Authenticate(ctx, "t@x.com", "permanent-1")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if cred.MustChangePassword {
		t.Error("expected must_change_password to be cleared")
	}

	if err := store.SetPassword(ctx, "missing", "permanent-1", false); !errors.Is(err, credentialstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFindAndDeleteIdentity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := credentialstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	id, _ := store.CreateIdentity(ctx, "f@x.com", "password-1", false)
	got, found, err := store.FindIdentity(ctx, "F@x.com")
	if err != nil || !found || got != id {
		t.Fatalf("FindIdentity = %q, %v, %v; want %q", got, found, err, id)
	}
	if err := store.DeleteIdentity(ctx, id); err != nil {
		t.Fatalf("DeleteIdentity failed: %v", err)
	}
	if _, found, _ := store.FindIdentity(ctx, "f@x.com"); found {
		t.Error("expected identity to be gone")
	}
}
