// internal/app/features/users/handler.go
package users

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the user directory: listing, direct provisioning and the
// reassignment fixes.
type Handler struct {
	DB        *mongo.Database
	Users     *userstore.Store
	Creds     *credentialstore.Store
	Regions   *regionstore.Store
	Places    *placestore.Store
	Provision *provisioning.Service
	AuditLog  *auditlog.Logger
	ErrLog    *uierrors.ErrorLogger
	Log       *zap.Logger
}

// NewHandler constructs a users feature handler bound to db.
func NewHandler(db *mongo.Database, prov *provisioning.Service, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:        db,
		Users:     userstore.New(db),
		Creds:     credentialstore.New(db),
		Regions:   regionstore.New(db),
		Places:    placestore.New(db),
		Provision: prov,
		AuditLog:  audit,
		ErrLog:    errLog,
		Log:       logger,
	}
}

// loadTarget fetches the user named by the {id} path parameter. A user
// outside the caller's scope is reported as not found.
func (h *Handler) loadTarget(ctx context.Context, w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	id := chi.URLParam(r, "id")
	u, err := h.Users.GetByID(ctx, id)
	if errors.Is(err, userstore.ErrNotFound) || (err == nil && !authz.Scope(r).Allows(u.RegionID)) {
		h.ErrLog.LogNotFound(w, r, "users: target not found", "Usuário não encontrado.")
		return nil, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "users: load target failed", err, "")
		return nil, false
	}
	return u, true
}
