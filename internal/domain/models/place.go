package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Place kinds.
const (
	PlaceKindChurch   = "igreja"
	PlaceKindRegional = "regional"
	PlaceKindNucleo   = "nucleo"
)

// LatLng is a geocoded point.
type LatLng struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Place is a church or other physical/organizational unit. Pastors point at
// a place through User.ChurchID; the place keeps no pastor list.
type Place struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Kind      string              `bson:"kind" json:"kind"`
	Name      string              `bson:"name" json:"name"`
	NameCI    string              `bson:"name_ci" json:"-"`
	Address   string              `bson:"address,omitempty" json:"address,omitempty"`
	UF        string              `bson:"uf,omitempty" json:"uf,omitempty"`
	Location  *LatLng             `bson:"location,omitempty" json:"location,omitempty"`
	RegionID  *primitive.ObjectID `bson:"region_id,omitempty" json:"region_id,omitempty"`
	ParentID  *primitive.ObjectID `bson:"church_id,omitempty" json:"church_id,omitempty"`
	OwnerUID  string              `bson:"owner_uid,omitempty" json:"owner_uid,omitempty"`
	CreatedAt time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
}
