// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	"github.com/dalemusser/churchhub/internal/app/system/ratelimit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout, tokens, invites accepted).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin controls logging for admin actions (users, invites, churches, regions).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Admin string
}

// Logger writes audit events to MongoDB (via audit.Store) and to zap.
// A nil *Logger is valid and drops every event.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.RegionID != nil {
		fields = append(fields, zap.String("region_id", event.RegionID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event according to the category's setting.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}
	setting = strings.ToLower(strings.TrimSpace(setting))
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func authEvent(r *http.Request, eventType, userID string, success bool) audit.Event {
	return audit.Event{
		Category:  audit.CategoryAuth,
		EventType: eventType,
		UserID:    userID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Authentication events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, email string) {
	e := authEvent(r, audit.EventLoginSuccess, userID, true)
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// LoginFailed logs a rejected sign-in. eventType is one of the
// audit.EventLoginFailed* constants; userID is empty when the email is unknown.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType, userID, email, reason string) {
	e := authEvent(r, eventType, userID, false)
	e.FailureReason = reason
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, authEvent(r, audit.EventLogout, userID, true))
}

// TokenIssued logs a bearer token handed to an API client.
func (l *Logger) TokenIssued(ctx context.Context, r *http.Request, userID string) {
	l.Log(ctx, authEvent(r, audit.EventTokenIssued, userID, true))
}

// PasswordChanged logs a password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID string, wasTemporary bool) {
	e := authEvent(r, audit.EventPasswordChanged, userID, true)
	e.Details = map[string]string{"was_temporary": boolToString(wasTemporary)}
	l.Log(ctx, e)
}

// InviteAccepted logs an invite link redeemed by its recipient.
func (l *Logger) InviteAccepted(ctx context.Context, r *http.Request, userID string, inviteID primitive.ObjectID, regionID *primitive.ObjectID) {
	e := authEvent(r, audit.EventInviteAccepted, userID, true)
	e.RegionID = regionID
	e.Details = map[string]string{"invite_id": inviteID.Hex()}
	l.Log(ctx, e)
}

// SetupAdminCreated logs creation of the first administrator.
func (l *Logger) SetupAdminCreated(ctx context.Context, r *http.Request, userID, email string) {
	e := authEvent(r, audit.EventSetupAdminCreated, userID, true)
	e.Details = map[string]string{"email": email}
	l.Log(ctx, e)
}

// --- Admin events ---

// Admin logs an administrative action by actorID. targetUserID is empty
// when the action does not concern a user; regionID is the region the
// affected record belongs to, when known.
func (l *Logger) Admin(ctx context.Context, r *http.Request, eventType, actorID, targetUserID string, regionID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: eventType,
		UserID:    targetUserID,
		ActorID:   actorID,
		RegionID:  regionID,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   details,
	})
}

func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
