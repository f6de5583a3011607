// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditfeature "github.com/dalemusser/churchhub/internal/app/features/auditlog"
	chatfeature "github.com/dalemusser/churchhub/internal/app/features/chat"
	churchesfeature "github.com/dalemusser/churchhub/internal/app/features/churches"
	dashboardfeature "github.com/dalemusser/churchhub/internal/app/features/dashboard"
	errorsfeature "github.com/dalemusser/churchhub/internal/app/features/errors"
	geocodefeature "github.com/dalemusser/churchhub/internal/app/features/geocode"
	healthfeature "github.com/dalemusser/churchhub/internal/app/features/health"
	invitesfeature "github.com/dalemusser/churchhub/internal/app/features/invites"
	loginfeature "github.com/dalemusser/churchhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/churchhub/internal/app/features/logout"
	mefeature "github.com/dalemusser/churchhub/internal/app/features/me"
	regionsfeature "github.com/dalemusser/churchhub/internal/app/features/regions"
	reportsfeature "github.com/dalemusser/churchhub/internal/app/features/reports"
	setupfeature "github.com/dalemusser/churchhub/internal/app/features/setup"
	usersfeature "github.com/dalemusser/churchhub/internal/app/features/users"
	"github.com/dalemusser/churchhub/internal/app/store/audit"
	credentialstore "github.com/dalemusser/churchhub/internal/app/store/credentials"
	invitestore "github.com/dalemusser/churchhub/internal/app/store/invites"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/geocode"
	"github.com/dalemusser/churchhub/internal/app/system/idtoken"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/metrics"
	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/churchhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. It builds the shared services (sessions,
// bearer tokens, audit, provisioning, geocoding), applies the global
// middleware and mounts every feature router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser resolves the profile on every request so role and
	// status changes take effect immediately.
	tokens := idtoken.New(appCfg.TokenSecret, appCfg.TokenTTL)
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db, logger))
	sessionMgr.SetTokenVerifier(tokens)

	errLog := errorsfeature.NewErrorLogger(logger)
	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})

	acceptBase := appCfg.FrontendURL + "/convite/"
	prov := provisioning.New(credentialstore.New(db), userstore.New(db), invitestore.New(db), provisioning.Options{
		AllowedDomains: appCfg.AllowedEmailDomains,
		InviteTTL:      appCfg.InviteTTL,
		AcceptURL:      func(token string) string { return acceptBase + token },
		Notifier:       deps.Notifier(),
	})

	// The handlers take interfaces; a disabled geocoder must reach them as
	// a nil interface, not a typed nil pointer.
	var (
		locator  geocode.Locator
		searcher geocodefeature.Searcher
	)
	if !appCfg.GeocoderDisabled {
		gc := geocode.New(geocode.Config{
			BaseURL:   appCfg.GeocoderBaseURL,
			UserAgent: appCfg.GeocoderUserAgent,
			Country:   appCfg.GeocoderCountry,
		})
		locator, searcher = gc, gc
	} else {
		logger.Info("geocoding disabled")
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)

	// Global auth middleware: loads SessionUser into context from the
	// session cookie or a bearer token.
	r.Use(sessionMgr.LoadSessionUser)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		jsonio.Error(w, http.StatusNotFound, "Recurso não encontrado.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		jsonio.Error(w, http.StatusMethodNotAllowed, "Método não permitido.")
	})

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// First-admin bootstrap
	setupHandler := setupfeature.NewHandler(db, prov, sessionMgr, auditLogger, errLog, logger)
	r.Mount("/setup", setupfeature.Routes(setupHandler))

	// Authentication
	limiter := ratelimit.NewLoginLimiter()
	loginHandler := loginfeature.NewHandler(db, prov, sessionMgr, tokens, limiter, auditLogger, errLog, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))
	r.Mount("/auth", loginfeature.TokenRoutes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler))

	// Self-service profile
	meHandler := mefeature.NewHandler(db, locator, auditLogger, errLog, logger)
	r.Mount("/me", mefeature.Routes(meHandler, sessionMgr))

	// Directory
	usersHandler := usersfeature.NewHandler(db, prov, auditLogger, errLog, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	churchesHandler := churchesfeature.NewHandler(db, locator, auditLogger, errLog, logger)
	r.Mount("/churches", churchesfeature.Routes(churchesHandler, sessionMgr))

	regionsHandler := regionsfeature.NewHandler(db, auditLogger, errLog, logger)
	r.Mount("/regions", regionsfeature.Routes(regionsHandler, sessionMgr))

	invitesHandler := invitesfeature.NewHandler(db, prov, auditLogger, errLog, logger)
	r.Mount("/invites", invitesfeature.Routes(invitesHandler, sessionMgr))

	geocodeHandler := geocodefeature.NewHandler(searcher, errLog, logger)
	r.Mount("/geocode", geocodefeature.Routes(geocodeHandler, sessionMgr))

	// Overview
	dashboardHandler := dashboardfeature.NewHandler(db, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	reportsHandler := reportsfeature.NewHandler(db, errLog, logger)
	r.Mount("/reports", reportsfeature.Routes(reportsHandler, sessionMgr))

	// Messaging
	chatHandler := chatfeature.NewHandler(db, errLog, logger)
	r.Mount("/chat", chatfeature.Routes(chatHandler, sessionMgr))

	// Audit trail
	auditHandler := auditfeature.NewHandler(db, errLog, logger)
	r.Mount("/audit", auditfeature.Routes(auditHandler, sessionMgr))

	return r, nil
}
