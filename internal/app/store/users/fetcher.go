package userstore

import (
	"context"

	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/status"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Fetcher implements auth.UserFetcher to load fresh user data on each request.
// First sight of an identity provisions its default profile.
type Fetcher struct {
	users *Store
	creds *mongo.Collection
	log   *zap.Logger
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		users: New(db),
		creds: db.Collection("credentials"),
		log:   logger,
	}
}

// FetchUser resolves the identity's profile and returns nil if the identity
// no longer has a credential, the profile cannot be resolved or is not
// active, or if any error occurs. This implements auth.UserFetcher.
//
// A deleted account keeps a validly signed cookie or token until it
// expires, so the credential is checked before a default profile may be
// provisioned.
func (f *Fetcher) FetchUser(ctx context.Context, id auth.Identity) *auth.SessionUser {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var cred struct {
		MustChangePassword bool `bson:"must_change_password"`
	}
	err := f.creds.FindOne(ctx, bson.M{"_id": id.ID}).Decode(&cred)
	if err == mongo.ErrNoDocuments {
		f.log.Info("identity has no credential; treating request as signed out",
			zap.String("identity_id", id.ID))
		return nil
	}
	if err != nil {
		f.log.Warn("credential lookup failed; treating request as signed out",
			zap.String("identity_id", id.ID), zap.Error(err))
		return nil
	}

	u, err := f.users.ResolveProfile(ctx, id)
	if err != nil {
		f.log.Warn("profile resolution failed; treating request as signed out",
			zap.String("identity_id", id.ID), zap.Error(err))
		return nil
	}
	if normalize.Status(u.Status) != status.Active {
		return nil
	}

	subj := roles.FromUser(u)
	return &auth.SessionUser{
		ID:                 u.ID,
		Name:               u.DisplayName,
		Email:              u.Email,
		Roles:              roles.Strings(roles.UserRoles(subj)),
		RegionID:           subj.RegionID,
		ChurchID:           subj.ChurchID,
		SecretaryOf:        subj.SecretaryOf,
		CanManageChurch:    subj.CanManageChurch,
		MustChangePassword: cred.MustChangePassword,
	}
}
