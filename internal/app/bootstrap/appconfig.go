// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, body limits); AppConfig
// carries what is specific to ChurchHub: backends, secrets, the invite
// flow and the outbound messaging and geocoding providers.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: churchhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Bearer tokens for API clients (POST /auth/token)
	TokenSecret string
	TokenTTL    time.Duration

	// Redis backs the notification queue and the health probe. Blank runs
	// notifications in-process.
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	WorkerConcurrency int

	// Invite flow
	AllowedEmailDomains []string      // empty allows any domain
	FrontendURL         string        // base of the links sent to invitees
	InviteTTL           time.Duration // how long an invite link stays valid

	// Email (SendGrid). A blank key logs emails instead of sending them.
	SendGridAPIKey string
	MailFrom       string
	MailFromName   string

	// WhatsApp (Z-API). A blank instance disables the channel.
	ZAPIBaseURL     string
	ZAPIInstance    string
	ZAPIToken       string
	ZAPIClientToken string

	// Geocoding (Nominatim-compatible)
	GeocoderBaseURL   string
	GeocoderUserAgent string
	GeocoderCountry   string
	GeocoderDisabled  bool

	// CORS origins allowed to call the API with credentials
	CORSAllowedOrigins []string

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth   string
	AuditLogAdmin  string
	// AuditRetention is how long audit events are kept. Zero keeps them forever.
	AuditRetention time.Duration

	// AdminEmail is promoted to admin at startup when its profile exists.
	AdminEmail string

	// Store call budgets. Zero keeps the built-in default.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
