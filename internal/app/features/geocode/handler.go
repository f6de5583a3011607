// Package geocode serves address lookups for the church forms.
package geocode

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	geocoder "github.com/dalemusser/churchhub/internal/app/system/geocode"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

// Searcher returns candidate locations for a free-text address.
// *geocode.Client implements it.
type Searcher interface {
	Search(ctx context.Context, q string) ([]geocoder.Result, error)
}

type Handler struct {
	Search Searcher
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

// NewHandler builds the handler. A nil searcher means geocoding is not
// configured and every lookup answers 503.
func NewHandler(s Searcher, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{Search: s, ErrLog: errLog, Log: logger}
}

// ServeSearch handles GET /geocode?q=.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	if h.Search == nil {
		h.ErrLog.LogUnavailable(w, r, "geocode: not configured", nil, "Busca de endereços indisponível.")
		return
	}
	q := query.Get(r, "q")
	if q == "" {
		jsonio.Error(w, http.StatusBadRequest, "Informe o endereço.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	results, err := h.Search.Search(ctx, q)
	if errors.Is(err, geocoder.ErrEmptyQuery) {
		jsonio.Error(w, http.StatusBadRequest, "Informe o endereço.")
		return
	}
	if err != nil {
		h.ErrLog.LogUnavailable(w, r, "geocode: lookup failed", err, "Busca de endereços indisponível.")
		return
	}
	if results == nil {
		results = []geocoder.Result{}
	}
	jsonio.OK(w, map[string]any{"query": q, "results": results})
}
