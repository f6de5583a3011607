// internal/app/features/chat/handler.go
package chat

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/churchhub/internal/app/features/errors"
	chatstore "github.com/dalemusser/churchhub/internal/app/store/chat"
	userstore "github.com/dalemusser/churchhub/internal/app/store/users"
	"github.com/dalemusser/churchhub/internal/app/system/formutil"
	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves chat rooms and their messages. Only participants see a
// room; everyone else gets 404.
type Handler struct {
	Chat   *chatstore.Store
	Users  *userstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Chat:   chatstore.New(db),
		Users:  userstore.New(db),
		ErrLog: errLog,
		Log:    logger,
	}
}

// loadRoom fetches the {id} room when uid participates in it.
func (h *Handler) loadRoom(ctx context.Context, w http.ResponseWriter, r *http.Request, uid string) (models.ChatRoom, bool) {
	id, err := formutil.PathID(r, "id")
	if err != nil {
		h.ErrLog.LogNotFound(w, r, "chat: bad room id", "Conversa não encontrada.")
		return models.ChatRoom{}, false
	}
	room, err := h.Chat.GetRoom(ctx, id)
	if errors.Is(err, chatstore.ErrNotFound) || (err == nil && !chatstore.IsParticipant(room, uid)) {
		h.ErrLog.LogNotFound(w, r, "chat: room not found", "Conversa não encontrada.")
		return models.ChatRoom{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "chat: load room failed", err, "")
		return models.ChatRoom{}, false
	}
	return room, true
}
