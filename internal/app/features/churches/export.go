package churches

import (
	"context"
	"net/http"

	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/geo"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/kml"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// located returns the visible places that have coordinates, honoring the
// list filters.
func (h *Handler) located(ctx context.Context, w http.ResponseWriter, r *http.Request) ([]models.Place, bool) {
	opt, ok := listOptions(r)
	if !ok {
		jsonio.Error(w, http.StatusBadRequest, "Filtro inválido.")
		return nil, false
	}
	opt.Located = true
	places, err := h.Places.All(ctx, authz.Scope(r), opt)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: load located places failed", err, "")
		return nil, false
	}
	return places, true
}

// pastorNames maps each church to the name of its first pastor. Users who
// hold no pastor role are skipped.
func (h *Handler) pastorNames(ctx context.Context, places []models.Place) map[primitive.ObjectID]string {
	ids := make([]primitive.ObjectID, len(places))
	for i, p := range places {
		ids[i] = p.ID
	}
	users, err := h.Users.ListByChurches(ctx, ids)
	if err != nil {
		h.Log.Warn("churches: pastor lookup failed; exporting without pastors", zap.Error(err))
		return map[primitive.ObjectID]string{}
	}
	out := make(map[primitive.ObjectID]string)
	for _, u := range users {
		if u.ChurchID == nil {
			continue
		}
		if _, done := out[*u.ChurchID]; done {
			continue
		}
		if roles.HasAnyRole(roles.FromUser(&u), roles.PastorConselho, roles.PastorRegional, roles.PastorLocal) {
			out[*u.ChurchID] = u.DisplayName
		}
	}
	return out
}

// ServeKML handles GET /churches/export.kml: the visible located churches
// as a KML download.
func (h *Handler) ServeKML(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	places, ok := h.located(ctx, w, r)
	if !ok {
		return
	}
	regions := h.regionNames(ctx, places)
	pastors := h.pastorNames(ctx, places)

	pms := make([]kml.Placemark, 0, len(places))
	for _, p := range places {
		pm := kml.Placemark{
			ID:     p.ID.Hex(),
			Name:   p.Name,
			Kind:   p.Kind,
			UF:     p.UF,
			Pastor: pastors[p.ID],
			Lat:    p.Location.Lat,
			Lng:    p.Location.Lng,
		}
		if p.RegionID != nil {
			pm.Region = regions[*p.RegionID]
		}
		pms = append(pms, pm)
	}

	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="igrejas.kml"`)
	if err := kml.Write(w, "Igrejas", pms); err != nil {
		h.Log.Error("churches: kml write failed", zap.Error(err))
	}
}

type marker struct {
	ID         primitive.ObjectID `json:"id"`
	Name       string             `json:"name"`
	Kind       string             `json:"kind"`
	UF         string             `json:"uf,omitempty"`
	Macro      string             `json:"macro,omitempty"`
	RegionName string             `json:"region_name,omitempty"`
	Lat        float64            `json:"lat"`
	Lng        float64            `json:"lng"`
}

type macroCount struct {
	Macro string `json:"macro"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

var macroOrder = []geo.Macro{geo.Norte, geo.Nordeste, geo.CentroOeste, geo.Sudeste, geo.Sul}

// ServeMap handles GET /churches/map: markers for the visible located
// churches, with the macro-region inferred from each UF, plus a count per
// macro-region. ?macro=NE keeps only one macro-region.
func (h *Handler) ServeMap(w http.ResponseWriter, r *http.Request) {
	want := geo.Macro(query.Get(r, "macro"))
	if want != "" && want.Name() == "" {
		jsonio.Error(w, http.StatusBadRequest, "Macrorregião inválida.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	places, ok := h.located(ctx, w, r)
	if !ok {
		return
	}
	regions := h.regionNames(ctx, places)

	counts := map[geo.Macro]int{}
	markers := make([]marker, 0, len(places))
	for _, p := range places {
		m, _ := geo.MacroForUF(p.UF)
		if want != "" && m != want {
			continue
		}
		if m != "" {
			counts[m]++
		}
		mk := marker{
			ID:    p.ID,
			Name:  p.Name,
			Kind:  p.Kind,
			UF:    p.UF,
			Macro: string(m),
			Lat:   p.Location.Lat,
			Lng:   p.Location.Lng,
		}
		if p.RegionID != nil {
			mk.RegionName = regions[*p.RegionID]
		}
		markers = append(markers, mk)
	}

	byMacro := make([]macroCount, 0, len(macroOrder))
	for _, m := range macroOrder {
		byMacro = append(byMacro, macroCount{Macro: string(m), Name: m.Name(), Count: counts[m]})
	}
	jsonio.OK(w, map[string]any{"markers": markers, "by_macro": byMacro})
}
