// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"go.uber.org/zap"
)

// ErrorLogger logs a failed request with its context and writes the JSON
// error body the client sees. The internal error never reaches the client.
type ErrorLogger struct {
	Log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{Log: logger}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fs := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	}
	if u, ok := auth.CurrentUser(r); ok {
		fs = append(fs, zap.String("user_id", u.ID))
	}
	if err != nil {
		fs = append(fs, zap.Error(err))
	}
	return fs
}

// LogServerError logs at error level and responds 500.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Error(msg, e.fields(r, err)...)
	if userMsg == "" {
		userMsg = "Erro interno. Tente novamente."
	}
	jsonio.Error(w, http.StatusInternalServerError, userMsg)
}

// LogBadRequest logs at warn level and responds 400.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg, e.fields(r, err)...)
	jsonio.Error(w, http.StatusBadRequest, userMsg)
}

// LogForbidden logs at warn level and responds 403.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, msg string, userMsg string) {
	e.Log.Warn(msg, e.fields(r, nil)...)
	if userMsg == "" {
		userMsg = "Acesso negado."
	}
	jsonio.Error(w, http.StatusForbidden, userMsg)
}

// LogNotFound logs at debug level and responds 404.
func (e *ErrorLogger) LogNotFound(w http.ResponseWriter, r *http.Request, msg string, userMsg string) {
	e.Log.Debug(msg, e.fields(r, nil)...)
	jsonio.Error(w, http.StatusNotFound, userMsg)
}

// LogConflict logs at info level and responds 409.
func (e *ErrorLogger) LogConflict(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Info(msg, e.fields(r, err)...)
	jsonio.Error(w, http.StatusConflict, userMsg)
}

// LogUnavailable logs at warn level and responds 503. Used when an
// optional upstream (geocoder, messaging) is not configured or down.
func (e *ErrorLogger) LogUnavailable(w http.ResponseWriter, r *http.Request, msg string, err error, userMsg string) {
	e.Log.Warn(msg, e.fields(r, err)...)
	jsonio.Error(w, http.StatusServiceUnavailable, userMsg)
}
