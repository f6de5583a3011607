// Package credentialstore is the identity provider: it issues the opaque
// identity ids that profiles are keyed by and checks passwords.
package credentialstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest password accepted.
const MinPasswordLength = 8

// BcryptCost for hashing passwords.
const BcryptCost = bcrypt.DefaultCost

var (
	ErrEmailExists        = errors.New("an identity with this email already exists")
	ErrNotFound           = errors.New("identity not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("credentials")}
}

// CreateIdentity issues a new identity id for email. A temporary password
// must be changed at first sign-in.
func (s *Store) CreateIdentity(ctx context.Context, email, password string, temporary bool) (string, error) {
	if len(password) < MinPasswordLength {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}

	now := time.Now()
	cred := models.Credential{
		ID:                 uuid.NewString(),
		Email:              normalize.Email(email),
		PasswordHash:       string(hash),
		MustChangePassword: temporary,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if _, err := s.c.InsertOne(ctx, cred); err != nil {
		if wafflemongo.IsDup(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return cred.ID, nil
}

// FindIdentity returns the identity id registered for email.
func (s *Store) FindIdentity(ctx context.Context, email string) (string, bool, error) {
	var cred models.Credential
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&cred)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return cred.ID, true, nil
}

// DeleteIdentity removes an identity. Deleting a missing identity is not an error.
func (s *Store) DeleteIdentity(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// SetPassword replaces the password of id.
func (s *Store) SetPassword(ctx context.Context, id, password string, temporary bool) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return err
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"password_hash":        string(hash),
		"must_change_password": temporary,
		"updated_at":           time.Now(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&cred); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &cred, nil
}
