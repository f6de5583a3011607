// internal/app/features/regions/handler.go
package regions

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Regions  *regionstore.Store
	Users    *userstore.Store
	Places   *placestore.Store
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Regions:  regionstore.New(db),
		Users:    userstore.New(db),
		Places:   placestore.New(db),
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// regionView adds how many users and churches reference the region.
type regionView struct {
	models.Region
	Users    int64 `json:"users"`
	Churches int64 `json:"churches"`
}

func (h *Handler) view(ctx context.Context, reg models.Region) (regionView, error) {
	v := regionView{Region: reg}
	var err error
	if v.Users, err = h.Users.CountByRegion(ctx, reg.ID); err != nil {
		return v, err
	}
	if v.Churches, err = h.Places.CountByRegion(ctx, reg.ID); err != nil {
		return v, err
	}
	return v, nil
}

func (h *Handler) loadRegion(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Region, bool) {
	id, err := formutil.PathID(r, "id")
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "regions: bad id", "Região não encontrada.")
		return models.Region{}, false
	}
	reg, err := h.Regions.GetByID(ctx, id)
	if errors.Is(err, regionstore.ErrNotFound) {
		h.ErrLog.LogNotFound(w, r, "regions: not found", "Região não encontrada.")
		return models.Region{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: load failed", err, "")
		return models.Region{}, false
	}
	return reg, true
}
