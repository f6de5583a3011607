// Package auth manages sign-in state: the session cookie, bearer tokens
// for API clients, and the SessionUser injected into each request.
//
// The session itself only remembers who signed in (the Identity). The
// profile, with its roles and region, is resolved fresh on every request
// through a UserFetcher, so role changes take effect immediately and a
// failed lookup leaves the request unauthenticated.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const (
	identityIDKey    = "identity_id"
	identityEmailKey = "identity_email"
	identityNameKey  = "identity_name"
)

// Identity is what the identity provider vouches for: an opaque id plus the
// email and display name it was issued for.
type Identity struct {
	ID          string
	Email       string
	DisplayName string
}

// SessionUser is the resolved caller for one request.
type SessionUser struct {
	ID                 string
	Name               string
	Email              string
	Roles              []string
	RegionID           string
	ChurchID           string
	SecretaryOf        string
	CanManageChurch    []string
	MustChangePassword bool
}

// Subject returns the role-model view of the user.
func (u *SessionUser) Subject() roles.Subject {
	if u == nil {
		return roles.Subject{}
	}
	return roles.Subject{
		Roles:           u.Roles,
		RegionID:        u.RegionID,
		ChurchID:        u.ChurchID,
		SecretaryOf:     u.SecretaryOf,
		CanManageChurch: u.CanManageChurch,
	}
}

// UserFetcher resolves an authenticated identity into a SessionUser.
// Returning nil means the caller is treated as signed out.
type UserFetcher interface {
	FetchUser(ctx context.Context, id Identity) *SessionUser
}

// TokenVerifier checks a bearer token and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// ErrNoSession is returned by Logout when there is nothing to clear.
var ErrNoSession = errors.New("no session")

// SessionManager owns the cookie store and the per-request user lookup.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	tokens  TokenVerifier
	log     *zap.Logger
}

// NewSessionManager builds a cookie-backed session manager.
//
// In production (secure=true) cookies are Secure + SameSite=None so a
// separately hosted frontend can send them; in dev over http://localhost
// they are SameSite=Lax.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "churchhub-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetUserFetcher sets the profile lookup used by LoadSessionUser.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// SetTokenVerifier enables Authorization: Bearer tokens.
func (sm *SessionManager) SetTokenVerifier(v TokenVerifier) { sm.tokens = v }

// Login records id in the session cookie.
func (sm *SessionManager) Login(w http.ResponseWriter, r *http.Request, id Identity) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[identityIDKey] = id.ID
	sess.Values[identityEmailKey] = id.Email
	sess.Values[identityNameKey] = id.DisplayName
	return sess.Save(r, w)
}

// Logout clears the session cookie.
func (sm *SessionManager) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil || sess.IsNew {
		return ErrNoSession
	}
	sess.Values = map[interface{}]interface{}{}
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// identity extracts the caller's identity from a bearer token or the cookie.
func (sm *SessionManager) identity(r *http.Request) (Identity, bool) {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") && sm.tokens != nil {
		id, err := sm.tokens.Verify(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			sm.log.Debug("bearer token rejected", zap.Error(err))
			return Identity{}, false
		}
		return id, true
	}

	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return Identity{}, false
	}
	id := Identity{
		ID:          getString(sess, identityIDKey),
		Email:       getString(sess, identityEmailKey),
		DisplayName: getString(sess, identityNameKey),
	}
	return id, id.ID != ""
}

// LoadSessionUser injects the resolved user into the request context when
// the caller is signed in. Without a fetcher nobody is signed in.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := sm.identity(r)
		if !ok || sm.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}
		if u := sm.fetcher.FetchUser(r.Context(), id); u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// Browsers are redirected to /login; API callers get 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		unauthorized(w, r)
	})
}

// RequireRole ensures the user holds at least one of the allowed roles.
func (sm *SessionManager) RequireRole(allowed ...roles.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				unauthorized(w, r)
				return
			}
			if !roles.HasAnyRole(u.Subject(), allowed...) {
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser injects u into the request context. Tests use it to bypass
// the session cookie.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		ret := url.QueryEscape(r.URL.RequestURI())
		http.Redirect(w, r, "/login?return="+ret, http.StatusSeeOther)
		return
	}
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
