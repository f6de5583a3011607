// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/store/audit"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/idtoken"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/ratelimit"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/status"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DomainChecker reports whether an email's domain may sign in.
type DomainChecker interface {
	DomainAllowed(email string) bool
}

type Handler struct {
	Domains    DomainChecker
	Creds      *credentialstore.Store
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Tokens     *idtoken.Service
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, domains DomainChecker, sessionMgr *auth.SessionManager, tokens *idtoken.Service, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Domains:    domains,
		Creds:      credentialstore.New(db),
		Users:      userstore.New(db),
		SessionMgr: sessionMgr,
		Tokens:     tokens,
		Limiter:    limiter,
		AuditLog:   audit,
		ErrLog:     errLog,
		Log:        logger,
	}
}

type credentialsInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signedInView is returned after a successful sign-in.
type signedInView struct {
	ID                 string   `json:"id"`
	Email              string   `json:"email"`
	DisplayName        string   `json:"display_name"`
	Roles              []string `json:"roles"`
	PrimaryRole        string   `json:"primary_role"`
	MustChangePassword bool     `json:"must_change_password"`
}

type tokenView struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresIn int64  `json:"expires_in"`
}

// authenticate checks the posted credentials and resolves the profile.
// On failure it has already written the response and returns ok=false.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (auth.Identity, *models.User, bool, bool) {
	var in credentialsInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "login: bad body", err, "Informe e-mail e senha.")
		return auth.Identity{}, nil, false, false
	}
	email := normalize.Email(in.Email)
	if email == "" || in.Password == "" {
		jsonio.Error(w, http.StatusBadRequest, "Informe e-mail e senha.")
		return auth.Identity{}, nil, false, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if ok, limitType, msg := h.Limiter.Check(r, email); !ok {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedRateLimit, "", email, "rate limited by "+limitType)
		jsonio.Error(w, http.StatusTooManyRequests, msg)
		return auth.Identity{}, nil, false, false
	}

	if h.Domains != nil && !h.Domains.DomainAllowed(email) {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedDomain, "", email, "email domain not allowed")
		jsonio.Error(w, http.StatusForbidden, "Domínio de e-mail não permitido.")
		return auth.Identity{}, nil, false, false
	}

	cred, err := h.Creds.Authenticate(ctx, email, in.Password)
	if errors.Is(err, credentialstore.ErrInvalidCredentials) {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, "", email, "invalid credentials")
		jsonio.Error(w, http.StatusUnauthorized, "E-mail ou senha inválidos.")
		return auth.Identity{}, nil, false, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: authenticate failed", err, "")
		return auth.Identity{}, nil, false, false
	}

	id := auth.Identity{ID: cred.ID, Email: cred.Email}
	u, err := h.Users.ResolveProfile(ctx, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: resolve profile failed", err, "")
		return auth.Identity{}, nil, false, false
	}
	if normalize.Status(u.Status) != status.Active {
		h.AuditLog.LoginFailed(ctx, r, audit.EventLoginFailedInactive, u.ID, email, "account "+u.Status)
		jsonio.Error(w, http.StatusForbidden, "Conta desativada. Procure um administrador.")
		return auth.Identity{}, nil, false, false
	}

	h.Limiter.ResetEmail(email)
	id.DisplayName = u.DisplayName
	return id, u, cred.MustChangePassword, true
}

// HandleLogin handles POST /login: checks credentials and starts a
// cookie session.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	id, u, mustChange, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.SessionMgr.Login(w, r, id); err != nil {
		h.ErrLog.LogServerError(w, r, "login: save session failed", err, "")
		return
	}
	h.AuditLog.LoginSuccess(r.Context(), r, u.ID, u.Email)
	h.Log.Info("user signed in", zap.String("user_id", u.ID))

	subj := roles.FromUser(u)
	primary, _ := roles.PrimaryRole(subj)
	jsonio.OK(w, signedInView{
		ID:                 u.ID,
		Email:              u.Email,
		DisplayName:        u.DisplayName,
		Roles:              roles.Strings(roles.UserRoles(subj)),
		PrimaryRole:        string(primary),
		MustChangePassword: mustChange,
	})
}

// HandleToken handles POST /auth/token: checks credentials and issues a
// bearer token for API clients. No cookie is set.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	id, u, _, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	tok, err := h.Tokens.Issue(id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "token: issue failed", err, "")
		return
	}
	h.AuditLog.TokenIssued(r.Context(), r, u.ID)
	jsonio.OK(w, tokenView{
		Token:     tok,
		TokenType: "Bearer",
		ExpiresIn: int64(h.Tokens.Expiry().Seconds()),
	})
}
