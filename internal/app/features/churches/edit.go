package churches

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	placestore "github.com/dalemusser/churchhub/internal/app/store/places"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/geo"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/normalize"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/app/system/txn"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type createInput struct {
	Name     string   `json:"name" validate:"required,max=200" label:"Nome"`
	Kind     string   `json:"kind" validate:"omitempty,placekind" label:"Tipo"`
	Address  string   `json:"address" validate:"max=300" label:"Endereço"`
	UF       string   `json:"uf" validate:"omitempty,len=2" label:"UF"`
	Lat      *float64 `json:"lat" validate:"omitempty,latitude" label:"Latitude"`
	Lng      *float64 `json:"lng" validate:"omitempty,longitude" label:"Longitude"`
	RegionID string   `json:"region_id" validate:"omitempty,objectid" label:"Região"`
	ParentID string   `json:"church_id" validate:"omitempty,objectid" label:"Igreja sede"`
}

// validUF accepts an empty UF or one of the 27 federative units.
func validUF(uf string) bool {
	return uf == "" || geo.IsUF(uf)
}

// HandleCreate handles POST /churches. Without coordinates the address is
// geocoded. Region-scoped callers create churches in their own region.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in createInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "churches: bad create body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	if !validUF(in.UF) {
		jsonio.Error(w, http.StatusBadRequest, "UF inválida.")
		return
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		jsonio.Error(w, http.StatusBadRequest, "Informe latitude e longitude juntas.")
		return
	}
	requested, _ := formutil.OptionalID(in.RegionID)
	parentID, _ := formutil.OptionalID(in.ParentID)
	regionID, ok := authz.AssignableRegion(r, requested)
	if !ok {
		h.ErrLog.LogForbidden(w, r, "churches: region outside scope", "Você só pode cadastrar igrejas na sua região.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	if !h.checkRegion(ctx, w, r, regionID) {
		return
	}

	p := models.Place{
		Kind:     in.Kind,
		Name:     in.Name,
		Address:  normalize.Name(in.Address),
		UF:       normalize.UF(in.UF),
		RegionID: regionID,
		ParentID: parentID,
		OwnerUID: actorID,
	}
	if in.Lat != nil {
		p.Location = &models.LatLng{Lat: *in.Lat, Lng: *in.Lng}
	}
	h.locate(ctx, &p)

	p, err := h.Places.Create(ctx, p)
	if errors.Is(err, placestore.ErrNameEmpty) || errors.Is(err, placestore.ErrBadKind) {
		jsonio.Error(w, http.StatusBadRequest, "Nome ou tipo inválido.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: create failed", err, "")
		return
	}

	h.AuditLog.Admin(ctx, r, audit.EventChurchCreated, actorID, "", p.RegionID, map[string]string{
		"church_id": p.ID.Hex(),
		"name":      p.Name,
	})
	jsonio.Created(w, h.views(ctx, []models.Place{p})[0])
}

// updateInput is a partial edit. Absent fields stay unchanged.
type updateInput struct {
	Name    *string  `json:"name" validate:"omitempty,max=200" label:"Nome"`
	Kind    *string  `json:"kind" validate:"omitempty,placekind" label:"Tipo"`
	Address *string  `json:"address" validate:"omitempty,max=300" label:"Endereço"`
	UF      *string  `json:"uf" validate:"omitempty,len=2" label:"UF"`
	Lat     *float64 `json:"lat" validate:"omitempty,latitude" label:"Latitude"`
	Lng     *float64 `json:"lng" validate:"omitempty,longitude" label:"Longitude"`
}

// HandleUpdate handles PATCH /churches/{id}. The caller must be able to
// manage the church. When the address or UF changes without new
// coordinates, the church is geocoded again.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in updateInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "churches: bad update body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	if in.UF != nil && !validUF(*in.UF) {
		jsonio.Error(w, http.StatusBadRequest, "UF inválida.")
		return
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		jsonio.Error(w, http.StatusBadRequest, "Informe latitude e longitude juntas.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, ok := h.loadChurch(ctx, w, r)
	if !ok {
		return
	}
	if !authz.CanManageChurch(r, p.ID.Hex()) {
		h.ErrLog.LogForbidden(w, r, "churches: update not allowed", "Você não pode editar esta igreja.")
		return
	}

	upd := placestore.Update{Name: in.Name, Kind: in.Kind, Address: in.Address, UF: in.UF}
	var changed []string
	for _, f := range []struct {
		name string
		set  bool
	}{{"name", in.Name != nil}, {"kind", in.Kind != nil}, {"address", in.Address != nil}, {"uf", in.UF != nil}} {
		if f.set {
			changed = append(changed, f.name)
		}
	}
	switch {
	case in.Lat != nil:
		upd.Location = &models.LatLng{Lat: *in.Lat, Lng: *in.Lng}
		changed = append(changed, "location")
	case in.Address != nil || in.UF != nil:
		moved := p
		moved.Location = nil
		if in.Address != nil {
			moved.Address = normalize.Name(*in.Address)
		}
		if in.UF != nil {
			moved.UF = normalize.UF(*in.UF)
		}
		h.locate(ctx, &moved)
		if moved.Location != nil {
			upd.Location = moved.Location
			changed = append(changed, "location")
		}
	}

	if err := h.Places.Update(ctx, p.ID, upd); errors.Is(err, placestore.ErrNameEmpty) || errors.Is(err, placestore.ErrBadKind) {
		jsonio.Error(w, http.StatusBadRequest, "Nome ou tipo inválido.")
		return
	} else if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: update failed", err, "")
		return
	}

	h.AuditLog.Admin(ctx, r, audit.EventChurchUpdated, actorID, "", p.RegionID, map[string]string{
		"church_id": p.ID.Hex(),
		"fields":    strings.Join(changed, ","),
	})
	h.respond(ctx, w, r, p.ID)
}

type regionInput struct {
	RegionID *string `json:"region_id" validate:"omitempty,objectid" label:"Região"`
}

// HandleSetRegion handles PUT /churches/{id}/region. A null region_id
// clears it.
func (h *Handler) HandleSetRegion(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in regionInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "churches: bad region body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	regionID, _ := formutil.NullableID(in.RegionID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.loadChurch(ctx, w, r)
	if !ok {
		return
	}
	if !authz.CanMoveToRegion(r, regionID) {
		h.ErrLog.LogForbidden(w, r, "churches: region outside scope", "Você só pode mover igrejas para a sua região.")
		return
	}
	if !h.checkRegion(ctx, w, r, regionID) {
		return
	}
	if err := h.Places.SetRegion(ctx, p.ID, regionID); err != nil {
		h.ErrLog.LogServerError(w, r, "churches: set region failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventChurchUpdated, actorID, "", regionID, map[string]string{
		"church_id": p.ID.Hex(),
		"fields":    "region_id",
		"from":      formutil.Hex(p.RegionID),
		"to":        formutil.Hex(regionID),
	})
	h.respond(ctx, w, r, p.ID)
}

// HandleDelete handles DELETE /churches/{id}. Users pointing at the church
// as pastor or secretary are detached first.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.loadChurch(ctx, w, r)
	if !ok {
		return
	}
	if err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		if err := h.Users.ClearChurch(ctx, p.ID); err != nil {
			return err
		}
		_, err := h.Places.Delete(ctx, p.ID)
		return err
	}); err != nil {
		h.ErrLog.LogServerError(w, r, "churches: delete failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventChurchDeleted, actorID, "", p.RegionID, map[string]string{
		"church_id": p.ID.Hex(),
		"name":      p.Name,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, r *http.Request, id primitive.ObjectID) {
	p, err := h.Places.GetByID(ctx, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: reload failed", err, "")
		return
	}
	jsonio.OK(w, h.views(ctx, []models.Place{p})[0])
}

// checkRegion rejects a reference to a region that does not exist.
func (h *Handler) checkRegion(ctx context.Context, w http.ResponseWriter, r *http.Request, regionID *primitive.ObjectID) bool {
	if regionID == nil {
		return true
	}
	ok, err := h.Regions.Exists(ctx, *regionID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "churches: region lookup failed", err, "")
		return false
	}
	if !ok {
		jsonio.Error(w, http.StatusBadRequest, "Região não encontrada.")
		return false
	}
	return true
}
