package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room types.
const (
	RoomDirect    = "direct"
	RoomGroup     = "group"
	RoomBroadcast = "broadcast"
	RoomHierarchy = "hierarchy"
)

// Message types.
const (
	MessageText     = "text"
	MessageLocation = "location"
	MessageSystem   = "system"
)

// ChatRoom is a conversation between participants. Admins may post to
// broadcast rooms; everyone else only reads them.
type ChatRoom struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name         string              `bson:"name" json:"name"`
	Type         string              `bson:"type" json:"type"`
	Participants []string            `bson:"participants" json:"participants"`
	Admins       []string            `bson:"admins" json:"admins"`
	CreatedBy    string              `bson:"created_by" json:"created_by"`
	ChurchID     *primitive.ObjectID `bson:"church_id,omitempty" json:"church_id,omitempty"`
	RegionID     *primitive.ObjectID `bson:"region_id,omitempty" json:"region_id,omitempty"`
	LastMessage  *ChatMessage        `bson:"last_message,omitempty" json:"last_message,omitempty"`
	CreatedAt    time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `bson:"updated_at" json:"updated_at"`
}

// ChatMessage is a single message in a room.
type ChatMessage struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	RoomID     primitive.ObjectID  `bson:"room_id" json:"room_id"`
	SenderID   string              `bson:"sender_id" json:"sender_id"`
	SenderName string              `bson:"sender_name" json:"sender_name"`
	Content    string              `bson:"content" json:"content"`
	Type       string              `bson:"type" json:"type"`
	Location   *LatLng             `bson:"location,omitempty" json:"location,omitempty"`
	ReplyTo    *primitive.ObjectID `bson:"reply_to,omitempty" json:"reply_to,omitempty"`
	CreatedAt  time.Time           `bson:"created_at" json:"created_at"`
}
