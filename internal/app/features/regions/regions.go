package regions

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/churchhub/internal/app/store/audit"
	regionstore "github.com/dalemusser/churchhub/internal/app/store/regions"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeList handles GET /regions. ?active=true hides inactive regions.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	regs, err := h.Regions.List(ctx, query.Get(r, "active") == "true")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: list failed", err, "")
		return
	}
	out := make([]regionView, 0, len(regs))
	for _, reg := range regs {
		v, err := h.view(ctx, reg)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "regions: count references failed", err, "")
			return
		}
		out = append(out, v)
	}
	jsonio.OK(w, map[string]any{"items": out})
}

// ServeView handles GET /regions/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	reg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	h.respond(ctx, w, r, reg)
}

func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, r *http.Request, reg models.Region) {
	v, err := h.view(ctx, reg)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: count references failed", err, "")
		return
	}
	jsonio.OK(w, v)
}

type createInput struct {
	Name        string `json:"name" validate:"required,max=120" label:"Nome"`
	Description string `json:"description" validate:"max=500" label:"Descrição"`
}

// HandleCreate handles POST /regions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in createInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "regions: bad create body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	reg, err := h.Regions.Create(ctx, models.Region{Name: in.Name, Description: in.Description, CreatedBy: actorID})
	if errors.Is(err, regionstore.ErrNameEmpty) {
		jsonio.Error(w, http.StatusBadRequest, "Informe o nome da região.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: create failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventRegionCreated, actorID, "", &reg.ID, map[string]string{"name": reg.Name})
	jsonio.Created(w, regionView{Region: reg})
}

type updateInput struct {
	Name        *string `json:"name" validate:"omitempty,max=120" label:"Nome"`
	Description *string `json:"description" validate:"omitempty,max=500" label:"Descrição"`
	IsActive    *bool   `json:"is_active"`
}

// HandleUpdate handles PATCH /regions/{id}. Absent fields stay unchanged.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)
	var in updateInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "regions: bad update body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	reg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	err := h.Regions.Update(ctx, reg.ID, regionstore.Update{Name: in.Name, Description: in.Description, IsActive: in.IsActive})
	if errors.Is(err, regionstore.ErrNameEmpty) {
		jsonio.Error(w, http.StatusBadRequest, "Informe o nome da região.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: update failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventRegionUpdated, actorID, "", &reg.ID, nil)

	reg, err = h.Regions.GetByID(ctx, reg.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: reload failed", err, "")
		return
	}
	h.respond(ctx, w, r, reg)
}

// HandleDelete handles DELETE /regions/{id}. A region still referenced by
// users or churches is kept and 409 is returned with the counts.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actorID, _, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	reg, ok := h.loadRegion(ctx, w, r)
	if !ok {
		return
	}
	v, err := h.view(ctx, reg)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "regions: count references failed", err, "")
		return
	}
	if v.Users > 0 || v.Churches > 0 {
		jsonio.Write(w, http.StatusConflict, map[string]any{
			"error":    "A região ainda possui usuários ou igrejas vinculados.",
			"users":    v.Users,
			"churches": v.Churches,
		})
		return
	}
	if _, err := h.Regions.Delete(ctx, reg.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "regions: delete failed", err, "")
		return
	}
	h.AuditLog.Admin(ctx, r, audit.EventRegionDeleted, actorID, "", &reg.ID, map[string]string{"name": reg.Name})
	w.WriteHeader(http.StatusNoContent)
}
