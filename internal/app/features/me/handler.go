// internal/app/features/me/handler.go
package me

import (
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/geocode"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's own profile.
type Handler struct {
	Users    *userstore.Store
	Creds    *credentialstore.Store
	Regions  *regionstore.Store
	Places   *placestore.Store
	Invites  *invitestore.Store
	Geocoder geocode.Locator // nil disables address lookup
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, geocoder geocode.Locator, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Creds:    credentialstore.New(db),
		Regions:  regionstore.New(db),
		Places:   placestore.New(db),
		Invites:  invitestore.New(db),
		Geocoder: geocoder,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// currentUser writes 401 and returns false when nobody is signed in.
// RequireSignedIn normally guarantees a user.
func currentUser(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		jsonio.Error(w, http.StatusUnauthorized, "unauthorized")
	}
	return u, ok
}
