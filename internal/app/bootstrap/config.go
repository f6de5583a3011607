// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/provisioning"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// minSessionKeyLen is the shortest session key accepted in production.
const minSessionKeyLen = 32

// appConfigKeys defines the configuration keys for ChurchHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: CHURCHHUB_MONGO_URI, CHURCHHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "churchhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "churchhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// API tokens
	{Name: "token_secret", Default: "", Desc: "HMAC secret for bearer tokens (defaults to session_key outside prod)"},
	{Name: "token_ttl", Default: "24h", Desc: "Bearer token lifetime"},

	// Redis / notification queue
	{Name: "redis_addr", Default: "", Desc: "Redis address for the notification queue (blank sends in-process)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},
	{Name: "worker_concurrency", Default: 4, Desc: "Notification worker concurrency"},

	// Invites
	{Name: "allowed_email_domains", Default: "", Desc: "Comma-separated email domains allowed for invites (blank allows any)"},
	{Name: "frontend_url", Default: "http://localhost:3000", Desc: "Base URL for invite links"},
	{Name: "invite_ttl", Default: "168h", Desc: "Invite link lifetime"},

	// Email
	{Name: "sendgrid_api_key", Default: "", Desc: "SendGrid API key (blank logs emails instead)"},
	{Name: "mail_from", Default: "noreply@churchhub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "ChurchHub", Desc: "From display name"},

	// WhatsApp
	{Name: "zapi_base_url", Default: "", Desc: "Z-API base URL"},
	{Name: "zapi_instance", Default: "", Desc: "Z-API instance id (blank disables WhatsApp)"},
	{Name: "zapi_token", Default: "", Desc: "Z-API instance token"},
	{Name: "zapi_client_token", Default: "", Desc: "Z-API account security token"},

	// Geocoding
	{Name: "geocoder_base_url", Default: "", Desc: "Nominatim-compatible search URL (blank uses the public instance)"},
	{Name: "geocoder_user_agent", Default: "churchhub/1.0", Desc: "User-Agent sent to the geocoder"},
	{Name: "geocoder_country", Default: "br", Desc: "Country code geocoding is restricted to"},
	{Name: "geocoder_disabled", Default: false, Desc: "Disable address geocoding"},

	// CORS
	{Name: "cors_allowed_origins", Default: "http://localhost:3000", Desc: "Comma-separated origins allowed by CORS"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "8760h", Desc: "How long audit events are kept (0 keeps them forever)"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of a user promoted to admin on startup"},

	// Timeouts
	{Name: "timeout_short", Default: "", Desc: "Budget for single-document store calls"},
	{Name: "timeout_medium", Default: "", Desc: "Budget for list and count store calls"},
	{Name: "timeout_long", Default: "", Desc: "Budget for aggregates and exports"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, CHURCHHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CHURCHHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		TokenSecret: appValues.String("token_secret"),
		TokenTTL:    appValues.Duration("token_ttl", 24*time.Hour),

		RedisAddr:         appValues.String("redis_addr"),
		RedisPassword:     appValues.String("redis_password"),
		RedisDB:           appValues.Int("redis_db"),
		WorkerConcurrency: appValues.Int("worker_concurrency"),

		AllowedEmailDomains: splitList(appValues.String("allowed_email_domains")),
		FrontendURL:         strings.TrimRight(appValues.String("frontend_url"), "/"),
		InviteTTL:           appValues.Duration("invite_ttl", provisioning.DefaultInviteTTL),

		SendGridAPIKey: appValues.String("sendgrid_api_key"),
		MailFrom:       appValues.String("mail_from"),
		MailFromName:   appValues.String("mail_from_name"),

		ZAPIBaseURL:     appValues.String("zapi_base_url"),
		ZAPIInstance:    appValues.String("zapi_instance"),
		ZAPIToken:       appValues.String("zapi_token"),
		ZAPIClientToken: appValues.String("zapi_client_token"),

		GeocoderBaseURL:   appValues.String("geocoder_base_url"),
		GeocoderUserAgent: appValues.String("geocoder_user_agent"),
		GeocoderCountry:   appValues.String("geocoder_country"),
		GeocoderDisabled:  appValues.Bool("geocoder_disabled"),

		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),

		AuditLogAuth:   appValues.String("audit_log_auth"),
		AuditLogAdmin:  appValues.String("audit_log_admin"),
		AuditRetention: appValues.Duration("audit_retention", 365*24*time.Hour),

		AdminEmail: appValues.String("admin_email"),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
		TimeoutLong:   appValues.Duration("timeout_long", 0),
	}

	// Outside prod a missing token secret falls back to the session key so
	// local setups need one secret only.
	if appCfg.TokenSecret == "" && coreCfg.Env != "prod" {
		appCfg.TokenSecret = appCfg.SessionKey
		logger.Info("token_secret not set; using session_key for bearer tokens")
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI format is checked to catch configuration errors early,
// before attempting to connect. Production additionally requires real
// secrets for sessions and bearer tokens.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.InviteTTL <= 0 {
		return fmt.Errorf("invite_ttl must be positive")
	}

	if coreCfg.Env == "prod" {
		if appCfg.SessionKey == devSessionKey || len(appCfg.SessionKey) < minSessionKeyLen {
			return fmt.Errorf("session_key must be set to at least %d characters in prod", minSessionKeyLen)
		}
		if appCfg.TokenSecret == "" {
			return fmt.Errorf("token_secret must be set in prod")
		}
	}
	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
