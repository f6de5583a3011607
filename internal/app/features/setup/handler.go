// internal/app/features/setup/handler.go
package setup

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/status"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DomainChecker reports whether an email's domain may hold an account.
type DomainChecker interface {
	DomainAllowed(email string) bool
}

// Handler bootstraps the first administrator of a fresh install.
type Handler struct {
	Domains    DomainChecker
	Creds      *credentialstore.Store
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, domains DomainChecker, sessionMgr *auth.SessionManager, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Domains:    domains,
		Creds:      credentialstore.New(db),
		Users:      userstore.New(db),
		SessionMgr: sessionMgr,
		AuditLog:   audit,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type setupInput struct {
	Email       string `json:"email" validate:"required,email" label:"E-mail"`
	Password    string `json:"password" validate:"required,min=8" label:"Senha"`
	DisplayName string `json:"display_name" validate:"required,max=120" label:"Nome"`
}

// ServeStatus handles GET /setup.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	has, err := h.Users.HasAdmin(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "setup: check admin failed", err, "")
		return
	}
	jsonio.OK(w, map[string]bool{"has_admin": has})
}

// HandleCreate handles POST /setup. It creates the first administrator and
// signs them in. Once any admin exists it answers 409.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in setupInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "setup: bad body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	if h.Domains != nil && !h.Domains.DomainAllowed(in.Email) {
		h.ErrLog.LogProvisioning(w, r, "setup: email domain not allowed", provisioning.ErrDomainNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	has, err := h.Users.HasAdmin(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "setup: check admin failed", err, "")
		return
	}
	if has {
		h.ErrLog.LogConflict(w, r, "setup: admin already exists", nil, "O administrador já foi configurado.")
		return
	}

	uid, err := h.Creds.CreateIdentity(ctx, in.Email, in.Password, false)
	switch {
	case errors.Is(err, credentialstore.ErrEmailExists):
		h.ErrLog.LogConflict(w, r, "setup: email taken", err, "Este e-mail já está cadastrado.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "setup: create identity failed", err, "")
		return
	}

	u, err := h.Users.Create(ctx, models.User{
		ID:          uid,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		FullName:    in.DisplayName,
		Roles:       []string{string(roles.Admin)},
		Status:      status.Active,
	})
	if err != nil {
		if derr := h.Creds.DeleteIdentity(ctx, uid); derr != nil {
			h.Log.Error("setup: rollback identity failed", zap.String("identity_id", uid), zap.Error(derr))
		}
		h.ErrLog.LogServerError(w, r, "setup: create profile failed", err, "")
		return
	}

	if err := h.SessionMgr.Login(w, r, auth.Identity{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}); err != nil {
		h.Log.Warn("setup: sign-in after setup failed", zap.Error(err))
	}
	h.AuditLog.SetupAdminCreated(ctx, r, u.ID, u.Email)
	h.Log.Info("first administrator created", zap.String("user_id", u.ID))

	jsonio.Created(w, u)
}
