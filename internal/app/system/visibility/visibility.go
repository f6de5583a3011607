// Package visibility decides which users, churches and invites a caller
// may list.
//
// Callers holding pastor_regional, pastor_local or secretaria with a region
// assigned see only records in that region, even when they also hold a
// global role. Everyone else sees everything, including a region-scoped
// caller with no region assigned.
//
// The scope is applied inside store queries (Filter) so it holds for every
// list and count, not only for what a page chooses to show.
package visibility

import (
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field is the document field every scoped collection stores its region in.
const Field = "region_id"

// Scope is the visibility predicate for one caller.
type Scope struct {
	global   bool
	regionID primitive.ObjectID
	invalid  bool
}

// Global is the unfiltered scope.
func Global() Scope { return Scope{global: true} }

// None matches nothing.
func None() Scope { return Scope{invalid: true} }

// Region scopes to a single region.
func Region(id primitive.ObjectID) Scope { return Scope{regionID: id} }

// For computes the scope for s.
//
// A region id that is set but not a valid ObjectID matches nothing.
func For(s roles.Subject) Scope {
	if !roles.HasAnyRole(s, roles.PastorRegional, roles.PastorLocal, roles.Secretaria) {
		return Global()
	}
	if s.RegionID == "" {
		return Global()
	}
	oid, err := primitive.ObjectIDFromHex(s.RegionID)
	if err != nil {
		return None()
	}
	return Region(oid)
}

// IsGlobal reports whether the scope is unfiltered.
func (sc Scope) IsGlobal() bool { return sc.global }

// RegionID returns the region the scope is bound to, if any.
func (sc Scope) RegionID() (primitive.ObjectID, bool) {
	if sc.global || sc.invalid {
		return primitive.NilObjectID, false
	}
	return sc.regionID, true
}

// Filter returns base with the scope applied. base is not modified.
func (sc Scope) Filter(base bson.M) bson.M {
	out := bson.M{}
	for k, v := range base {
		out[k] = v
	}
	switch {
	case sc.global:
	case sc.invalid:
		// _id never equals NilObjectID for stored documents.
		out["_id"] = bson.M{"$in": bson.A{}}
	default:
		out[Field] = sc.regionID
	}
	return out
}

// Allows reports whether a record in regionID is visible.
func (sc Scope) Allows(regionID *primitive.ObjectID) bool {
	if sc.global {
		return true
	}
	if sc.invalid || regionID == nil {
		return false
	}
	return *regionID == sc.regionID
}

// Apply returns the records visible under sc, in their original order.
// region extracts a record's region reference.
func Apply[T any](sc Scope, records []T, region func(T) *primitive.ObjectID) []T {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		if sc.Allows(region(rec)) {
			out = append(out, rec)
		}
	}
	return out
}
