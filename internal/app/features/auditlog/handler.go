// internal/app/features/auditlog/handler.go
package auditlog

import (
	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	"github.com/dalemusser/churchhub/internal/app/store/audit"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Events  *audit.Store
	Users   *userstore.Store
	Regions *regionstore.Store
	Log     *zap.Logger
	ErrLog  *uierrors.ErrorLogger
}

// NewHandler constructs an audit log feature handler bound to
// the given Mongo database and logger.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Events:  audit.New(db),
		Users:   userstore.New(db),
		Regions: regionstore.New(db),
		Log:     logger,
		ErrLog:  errLog,
	}
}
