package chat

import (
	"context"
	"errors"
	"net/http"
	"slices"

	chatstore "github.com/dalemusser/churchhub/internal/app/store/chat"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/limits"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.uber.org/zap"
)

// ServeRooms handles GET /chat/rooms: the caller's rooms, most recently
// active first.
func (h *Handler) ServeRooms(w http.ResponseWriter, r *http.Request) {
	uid, _, _, _ := authz.UserCtx(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rooms, err := h.Chat.RoomsFor(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "chat: list rooms failed", err, "")
		return
	}
	jsonio.OK(w, map[string]any{"items": rooms})
}

type roomInput struct {
	Name         string   `json:"name" validate:"max=120" label:"Nome"`
	Type         string   `json:"type" validate:"omitempty,oneof=direct group broadcast hierarchy" label:"Tipo"`
	Participants []string `json:"participants" validate:"max=500" label:"Participantes"`
	Admins       []string `json:"admins" label:"Administradores"`
	ChurchID     string   `json:"church_id" validate:"omitempty,objectid" label:"Igreja"`
}

// HandleCreateRoom handles POST /chat/rooms.
//
// Participants must be users the caller can see. Broadcast and hierarchy
// rooms need a global role or pastor_regional. A direct room that already
// exists for the pair is returned instead of a new one.
func (h *Handler) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	uid, _, subj, _ := authz.UserCtx(r)

	var in roomInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "chat: bad room body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	if in.Type == models.RoomBroadcast || in.Type == models.RoomHierarchy {
		if !roles.HasAnyRole(subj, roles.Admin, roles.PastorConselho, roles.PastorRegional) {
			h.ErrLog.LogForbidden(w, r, "chat: broadcast not allowed", "Você não pode criar este tipo de conversa.")
			return
		}
	}
	churchID, _ := formutil.OptionalID(in.ChurchID)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !h.checkParticipants(ctx, w, r, uid, in.Participants) {
		return
	}

	if in.Type == models.RoomDirect && len(in.Participants) == 1 {
		existing, err := h.Chat.FindDirect(ctx, uid, in.Participants[0])
		if err == nil {
			jsonio.OK(w, existing)
			return
		}
		if !errors.Is(err, chatstore.ErrNotFound) {
			h.ErrLog.LogServerError(w, r, "chat: find direct failed", err, "")
			return
		}
	}

	room := models.ChatRoom{
		Name:         htmlsanitize.StripTags(in.Name),
		Type:         in.Type,
		Participants: in.Participants,
		Admins:       participantsOnly(in.Admins, in.Participants),
		CreatedBy:    uid,
		ChurchID:     churchID,
	}
	if regionID, ok := authz.Scope(r).RegionID(); ok {
		room.RegionID = &regionID
	}
	room, err := h.Chat.CreateRoom(ctx, room)
	switch {
	case errors.Is(err, chatstore.ErrNameEmpty):
		jsonio.Error(w, http.StatusBadRequest, "Informe o nome da conversa.")
		return
	case errors.Is(err, chatstore.ErrDirectPair):
		jsonio.Error(w, http.StatusBadRequest, "Uma conversa direta tem exatamente duas pessoas.")
		return
	case errors.Is(err, chatstore.ErrBadRoomType):
		jsonio.Error(w, http.StatusBadRequest, "Tipo de conversa inválido.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "chat: create room failed", err, "")
		return
	}
	h.Log.Info("chat room created",
		zap.String("room_id", room.ID.Hex()),
		zap.String("type", room.Type),
		zap.Int("participants", len(room.Participants)))
	jsonio.Created(w, room)
}

// checkParticipants rejects ids that are not users visible to the caller.
// The caller is always added by the store and need not be listed.
func (h *Handler) checkParticipants(ctx context.Context, w http.ResponseWriter, r *http.Request, uid string, ids []string) bool {
	others := make([]string, 0, len(ids))
	seen := map[string]bool{uid: true}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		others = append(others, id)
	}
	if len(others) == 0 {
		return true
	}
	if len(others) > limits.MaxChatParticipants {
		jsonio.Error(w, http.StatusBadRequest, "Participantes demais.")
		return false
	}
	n, err := h.Users.Count(ctx, authz.Scope(r), userstore.ListOptions{IDs: others})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "chat: participant lookup failed", err, "")
		return false
	}
	if n != int64(len(others)) {
		jsonio.Error(w, http.StatusBadRequest, "Participante não encontrado.")
		return false
	}
	return true
}

// participantsOnly keeps the admins that are also listed participants.
func participantsOnly(admins, participants []string) []string {
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		if slices.Contains(participants, a) {
			out = append(out, a)
		}
	}
	return out
}
