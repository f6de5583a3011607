// internal/app/features/me/complete.go
package me

import (
	"context"
	"net/http"
	"time"

	"github.com/dalemusser/churchhub/internal/app/system/geocode"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.uber.org/zap"
)

// churchInput is the church a pastor registers while completing the profile.
type churchInput struct {
	Name    string   `json:"name" validate:"required,max=200" label:"Nome da igreja"`
	Kind    string   `json:"kind" validate:"omitempty,placekind" label:"Tipo"`
	Address string   `json:"address" validate:"required,max=300" label:"Endereço"`
	UF      string   `json:"uf" validate:"omitempty,len=2" label:"UF"`
	Lat     *float64 `json:"lat" validate:"omitempty,latitude" label:"Latitude"`
	Lng     *float64 `json:"lng" validate:"omitempty,longitude" label:"Longitude"`
}

type completeInput struct {
	profileInput
	Church *churchInput `json:"church"`
}

// HandleComplete handles POST /me/complete: the first-visit form. It saves
// the profile, registers the pastor's church when one is given, and marks
// any pending invite for the user's email as accepted.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	su, ok := currentUser(w, r)
	if !ok {
		return
	}
	var in completeInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "me: bad body", err, "Dados inválidos.")
		return
	}
	if in.Church != nil {
		if !roles.HasAnyRole(su.Subject(), roles.PastorConselho, roles.PastorRegional, roles.PastorLocal) {
			h.ErrLog.LogForbidden(w, r, "me: non-pastor tried to register a church", "Somente pastores cadastram igrejas.")
			return
		}
		if res := inputval.Validate(in.Church); res.HasErrors() {
			jsonio.Error(w, http.StatusBadRequest, res.First())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	u, ok := h.applyProfile(ctx, w, r, su.ID, in.profileInput)
	if !ok {
		return
	}

	if in.Church != nil {
		p, err := h.registerChurch(ctx, u, *in.Church)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "me: register church failed", err, "Não foi possível cadastrar a igreja.")
			return
		}
		if err := h.Users.SetChurch(ctx, u.ID, &p.ID); err != nil {
			h.ErrLog.LogServerError(w, r, "me: link church failed", err, "")
			return
		}
		u.ChurchID = &p.ID
	}

	n, err := h.Invites.MarkAcceptedByEmail(ctx, u.Email, u.ID, time.Now().UTC())
	if err != nil {
		h.Log.Warn("me: accept pending invites failed", zap.String("user_id", u.ID), zap.Error(err))
	} else if n > 0 {
		h.Log.Info("pending invites accepted on profile completion",
			zap.String("user_id", u.ID), zap.Int64("count", n))
	}

	jsonio.OK(w, h.view(ctx, u, su.MustChangePassword))
}

func (h *Handler) registerChurch(ctx context.Context, u *models.User, in churchInput) (models.Place, error) {
	p := models.Place{
		Kind:     in.Kind,
		Name:     in.Name,
		Address:  in.Address,
		UF:       in.UF,
		RegionID: u.RegionID,
		OwnerUID: u.ID,
	}
	if in.Lat != nil && in.Lng != nil {
		p.Location = &models.LatLng{Lat: *in.Lat, Lng: *in.Lng}
	}
	if err := geocode.LocatePlace(ctx, h.Geocoder, &p); err != nil {
		h.Log.Warn("me: geocode failed; church saved without coordinates", zap.Error(err))
	}
	return h.Places.Create(ctx, p)
}
