package chat

import (
	"context"
	"errors"
	"net/http"

	chatstore "github.com/dalemusser/churchhub/internal/app/store/chat"
	"github.com/dalemusser/churchhub/internal/app/system/authz"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/churchhub/internal/app/system/inputval"
	"github.com/dalemusser/churchhub/internal/app/system/jsonio"
	"github.com/dalemusser/churchhub/internal/app/system/paging"
	"github.com/dalemusser/churchhub/internal/app/system/timeouts"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

// ServeMessages handles GET /chat/rooms/{id}/messages.
//
// Query: before (message id) pages backwards; limit. Messages come in
// chronological order.
func (h *Handler) ServeMessages(w http.ResponseWriter, r *http.Request) {
	uid, _, _, _ := authz.UserCtx(r)
	before, err := formutil.OptionalID(query.Get(r, "before"))
	if err != nil {
		jsonio.Error(w, http.StatusBadRequest, "Cursor inválido.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	room, ok := h.loadRoom(ctx, w, r, uid)
	if !ok {
		return
	}
	msgs, err := h.Chat.Messages(ctx, room.ID, before, paging.ParseLimit(r))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "chat: list messages failed", err, "")
		return
	}
	out := map[string]any{"items": msgs}
	if len(msgs) > 0 {
		out["before"] = msgs[0].ID.Hex()
	}
	jsonio.OK(w, out)
}

type messageInput struct {
	Content  string         `json:"content" validate:"max=4000" label:"Mensagem"`
	Type     string         `json:"type" validate:"omitempty,oneof=text location" label:"Tipo"`
	Location *models.LatLng `json:"location"`
	ReplyTo  string         `json:"reply_to" validate:"omitempty,objectid" label:"Resposta"`
}

// HandlePostMessage handles POST /chat/rooms/{id}/messages. Markup is
// stripped from the content. Broadcast rooms take posts from their admins
// only.
func (h *Handler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	uid, uname, _, _ := authz.UserCtx(r)

	var in messageInput
	if err := jsonio.Decode(w, r, &in); err != nil {
		h.ErrLog.LogBadRequest(w, r, "chat: bad message body", err, "Dados inválidos.")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonio.Error(w, http.StatusBadRequest, res.First())
		return
	}
	replyTo, _ := formutil.OptionalID(in.ReplyTo)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	room, ok := h.loadRoom(ctx, w, r, uid)
	if !ok {
		return
	}
	if !chatstore.CanPost(room, uid) {
		h.ErrLog.LogForbidden(w, r, "chat: post to broadcast by non-admin", "Somente administradores publicam nesta conversa.")
		return
	}

	msg, err := h.Chat.AddMessage(ctx, models.ChatMessage{
		RoomID:     room.ID,
		SenderID:   uid,
		SenderName: uname,
		Content:    htmlsanitize.StripTags(in.Content),
		Type:       in.Type,
		Location:   in.Location,
		ReplyTo:    replyTo,
	})
	switch {
	case errors.Is(err, chatstore.ErrEmptyMessage):
		jsonio.Error(w, http.StatusBadRequest, "A mensagem está vazia.")
		return
	case errors.Is(err, chatstore.ErrMissingLocation):
		jsonio.Error(w, http.StatusBadRequest, "Informe a localização.")
		return
	case errors.Is(err, chatstore.ErrBadMessageType):
		jsonio.Error(w, http.StatusBadRequest, "Tipo de mensagem inválido.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "chat: post message failed", err, "")
		return
	}
	jsonio.Created(w, msg)
}
