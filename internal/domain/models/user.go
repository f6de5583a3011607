// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a person with system access. The _id is the opaque handle issued
// by the identity provider, so a profile and its credential share one key.
//
// NOTE:
//   - Roles is authoritative. Role is the legacy single-role field and is
//     written as Roles[0] for older readers. Records written before Roles
//     existed carry only Role.
type User struct {
	ID            string `bson:"_id" json:"id"`
	Email         string `bson:"email" json:"email"`
	DisplayName   string `bson:"display_name" json:"display_name"`
	DisplayNameCI string `bson:"display_name_ci" json:"-"` // lowercase, diacritics-stripped
	FullName      string `bson:"full_name,omitempty" json:"full_name,omitempty"`
	Nickname      string `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Phone         string `bson:"phone,omitempty" json:"phone,omitempty"`
	BirthDate     string `bson:"birth_date,omitempty" json:"birth_date,omitempty"` // YYYY-MM-DD

	Role  string   `bson:"role,omitempty" json:"role,omitempty"`
	Roles []string `bson:"roles,omitempty" json:"roles,omitempty"`

	RegionID        *primitive.ObjectID  `bson:"region_id,omitempty" json:"region_id,omitempty"`
	ChurchID        *primitive.ObjectID  `bson:"church_id,omitempty" json:"church_id,omitempty"`
	SecretaryOf     *primitive.ObjectID  `bson:"secretary_of,omitempty" json:"secretary_of,omitempty"`
	CanManageChurch []primitive.ObjectID `bson:"can_manage_church,omitempty" json:"can_manage_church,omitempty"`

	Status string `bson:"status,omitempty" json:"status,omitempty"` // active | inactive | pending

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
