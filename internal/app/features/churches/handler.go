// internal/app/features/churches/handler.go
package churches

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/auditlog"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/geocode"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves churches and the other places (regional offices, núcleos)
// kept in the same collection.
type Handler struct {
	DB       *mongo.Database
	Places   *placestore.Store
	Users    *userstore.Store
	Regions  *regionstore.Store
	Geocoder geocode.Locator // nil disables address lookup
	AuditLog *auditlog.Logger
	ErrLog   *uierrors.ErrorLogger
	Log      *zap.Logger
}

// NewHandler constructs a churches feature handler bound to db.
func NewHandler(db *mongo.Database, geocoder geocode.Locator, audit *auditlog.Logger, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Places:   placestore.New(db),
		Users:    userstore.New(db),
		Regions:  regionstore.New(db),
		Geocoder: geocoder,
		AuditLog: audit,
		ErrLog:   errLog,
		Log:      logger,
	}
}

// loadChurch fetches the place named by {id}. A place outside the caller's
// scope is reported as not found.
func (h *Handler) loadChurch(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Place, bool) {
	id, err := formutil.PathID(r, "id")
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "churches: bad id", "Igreja não encontrada.")
		return models.Place{}, false
	}
	p, err := h.Places.GetByID(ctx, id)
	if errors.Is(err, placestore.ErrNotFound) || (err == nil && !authz.Scope(r).Allows(p.RegionID)) {
		h.ErrLog.LogNotFound(w, r, "churches: not found", "Igreja não encontrada.")
		return models.Place{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: load failed", err, "")
		return models.Place{}, false
	}
	return p, true
}

// locate fills p's coordinates from its address. A geocoder failure is
// logged and the place is saved without coordinates.
func (h *Handler) locate(ctx context.Context, p *models.Place) {
	if err := geocode.LocatePlace(ctx, h.Geocoder, p); err != nil {
		h.Log.Warn("churches: geocode failed; saving without coordinates",
			zap.String("name", p.Name), zap.Error(err))
	}
}
