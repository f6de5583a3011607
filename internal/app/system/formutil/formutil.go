// Package formutil reads ids out of request paths and JSON bodies.
//
// Bodies carry references as hex strings. An empty string or JSON null
// means "unset"; anything else must be a valid ObjectID.
package formutil

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrBadID is returned for a reference that is not a valid ObjectID.
var ErrBadID = errors.New("invalid id")

// OptionalID parses a hex reference. "" yields nil.
func OptionalID(s string) (*primitive.ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, ErrBadID
	}
	return &oid, nil
}

// NullableID parses a reference that may be JSON null. nil yields nil.
func NullableID(s *string) (*primitive.ObjectID, error) {
	if s == nil {
		return nil, nil
	}
	return OptionalID(*s)
}

// PathID parses the chi URL parameter key as an ObjectID.
func PathID(r *http.Request, key string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(chi.URLParam(r, key))
	if err != nil {
		return primitive.NilObjectID, ErrBadID
	}
	return oid, nil
}

// Hex renders an optional reference, "" for nil.
func Hex(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}
