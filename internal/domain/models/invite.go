package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Invite records an offer of access. AcceptedAt moves from nil to set once
// and never back.
//
// Invites created by an administrator provisioning a user directly are
// written already accepted. Invites sent as links carry Token and ExpiresAt
// and stay pending until the invitee accepts.
type Invite struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Email     string              `bson:"email" json:"email"`
	Role      string              `bson:"role" json:"role"`
	Roles     []string            `bson:"roles" json:"roles"`
	RegionID  *primitive.ObjectID `bson:"region_id,omitempty" json:"region_id,omitempty"`
	ChurchID  *primitive.ObjectID `bson:"church_id,omitempty" json:"church_id,omitempty"`
	Phone     string              `bson:"phone,omitempty" json:"phone,omitempty"`
	CreatedBy string              `bson:"created_by" json:"created_by"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`

	AcceptedAt    *time.Time `bson:"accepted_at" json:"accepted_at"`
	AcceptedByUID string     `bson:"accepted_by_uid,omitempty" json:"accepted_by_uid,omitempty"`

	Token        string     `bson:"token,omitempty" json:"-"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`
	EmailSent    bool       `bson:"email_sent" json:"email_sent"`
	WhatsAppSent bool       `bson:"whatsapp_sent" json:"whatsapp_sent"`
}

// Pending reports whether the invite has not been accepted yet.
func (i Invite) Pending() bool { return i.AcceptedAt == nil }

// Expired reports whether a link invite is past its expiry at now.
func (i Invite) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}
