// internal/app/store/chat/chatstore.go
package chatstore

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dalemusser/churchhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound        = errors.New("chat room not found")
	ErrBadRoomType     = errors.New(`type must be "direct"|"group"|"broadcast"|"hierarchy"`)
	ErrBadMessageType  = errors.New(`type must be "text"|"location"|"system"`)
	ErrNameEmpty       = errors.New("room name is required")
	ErrDirectPair      = errors.New("a direct room has exactly two participants")
	ErrEmptyMessage    = errors.New("message content is required")
	ErrMissingLocation = errors.New("location message needs coordinates")
)

// MaxMessages caps a single Messages page.
const MaxMessages = 200

type Store struct {
	rooms    *mongo.Collection
	messages *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		rooms:    db.Collection("chat_rooms"),
		messages: db.Collection("chat_messages"),
	}
}

func validRoomType(t string) bool {
	switch t {
	case models.RoomDirect, models.RoomGroup, models.RoomBroadcast, models.RoomHierarchy:
		return true
	}
	return false
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

// CreateRoom inserts a room. The creator is always a participant and an
// admin. Direct rooms are named after nobody and hold exactly two people.
func (s *Store) CreateRoom(ctx context.Context, r models.ChatRoom) (models.ChatRoom, error) {
	if r.Type == "" {
		r.Type = models.RoomGroup
	}
	if !validRoomType(r.Type) {
		return models.ChatRoom{}, ErrBadRoomType
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Participants = dedupe(append([]string{r.CreatedBy}, r.Participants...))
	r.Admins = dedupe(append([]string{r.CreatedBy}, r.Admins...))
	if r.Type == models.RoomDirect {
		if len(r.Participants) != 2 {
			return models.ChatRoom{}, ErrDirectPair
		}
	} else if r.Name == "" {
		return models.ChatRoom{}, ErrNameEmpty
	}

	now := time.Now().UTC()
	r.ID = primitive.NewObjectID()
	r.LastMessage = nil
	r.CreatedAt = now
	r.UpdatedAt = now
	if _, err := s.rooms.InsertOne(ctx, r); err != nil {
		return models.ChatRoom{}, err
	}
	return r, nil
}

func (s *Store) GetRoom(ctx context.Context, id primitive.ObjectID) (models.ChatRoom, error) {
	var r models.ChatRoom
	if err := s.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.ChatRoom{}, ErrNotFound
		}
		return models.ChatRoom{}, err
	}
	return r, nil
}

// RoomsFor lists the rooms uid participates in, most recently active first.
func (s *Store) RoomsFor(ctx context.Context, uid string) ([]models.ChatRoom, error) {
	cur, err := s.rooms.Find(ctx, bson.M{"participants": uid},
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.ChatRoom{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindDirect returns the direct room between a and b, if one exists.
func (s *Store) FindDirect(ctx context.Context, a, b string) (models.ChatRoom, error) {
	var r models.ChatRoom
	err := s.rooms.FindOne(ctx, bson.M{
		"type":         models.RoomDirect,
		"participants": bson.M{"$all": bson.A{a, b}, "$size": 2},
	}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return models.ChatRoom{}, ErrNotFound
	}
	return r, err
}

// IsParticipant reports whether uid belongs to the room.
func IsParticipant(r models.ChatRoom, uid string) bool {
	return uid != "" && slices.Contains(r.Participants, uid)
}

// CanPost reports whether uid may post to the room. Broadcast rooms take
// posts from their admins only.
func CanPost(r models.ChatRoom, uid string) bool {
	if !IsParticipant(r, uid) {
		return false
	}
	if r.Type == models.RoomBroadcast {
		return slices.Contains(r.Admins, uid)
	}
	return true
}

// AddMessage stores m and makes it the room's last message.
func (s *Store) AddMessage(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	if m.Type == "" {
		m.Type = models.MessageText
	}
	switch m.Type {
	case models.MessageText, models.MessageSystem:
		if strings.TrimSpace(m.Content) == "" {
			return models.ChatMessage{}, ErrEmptyMessage
		}
	case models.MessageLocation:
		if m.Location == nil {
			return models.ChatMessage{}, ErrMissingLocation
		}
	default:
		return models.ChatMessage{}, ErrBadMessageType
	}

	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now().UTC()
	if _, err := s.messages.InsertOne(ctx, m); err != nil {
		return models.ChatMessage{}, err
	}
	res, err := s.rooms.UpdateOne(ctx, bson.M{"_id": m.RoomID}, bson.M{"$set": bson.M{
		"last_message": m,
		"updated_at":   m.CreatedAt,
	}})
	if err != nil {
		return models.ChatMessage{}, err
	}
	if res.MatchedCount == 0 {
		return models.ChatMessage{}, ErrNotFound
	}
	return m, nil
}

// Messages returns up to limit messages of a room in chronological order.
// With before set, only messages older than that id are returned, so a
// client pages backwards from the newest.
func (s *Store) Messages(ctx context.Context, roomID primitive.ObjectID, before *primitive.ObjectID, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > MaxMessages {
		limit = MaxMessages
	}
	filter := bson.M{"room_id": roomID}
	if before != nil {
		filter["_id"] = bson.M{"$lt": *before}
	}
	cur, err := s.messages.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.ChatMessage{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}
