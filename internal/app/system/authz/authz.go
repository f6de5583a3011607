// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/churchhub/internal/app/system/auth"
	"github.com/dalemusser/churchhub/internal/app/system/roles"
	"github.com/dalemusser/churchhub/internal/app/system/visibility"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the signed-in user's id, name, role-model subject and a
// found flag. With no user in context it returns "", "", a zero Subject and
// false, so ok=true means an authenticated caller.
func UserCtx(r *http.Request) (userID string, name string, subj roles.Subject, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok || user.ID == "" {
		return "", "", roles.Subject{}, false
	}
	return user.ID, user.Name, user.Subject(), true
}

// HasAnyRole reports whether the current request's user holds any of rs.
// Returns false if no user is present (i.e., not signed in).
func HasAnyRole(r *http.Request, rs ...roles.Role) bool {
	_, _, subj, ok := UserCtx(r)
	return ok && roles.HasAnyRole(subj, rs...)
}

// IsAdmin reports whether the current request's user holds the admin role.
func IsAdmin(r *http.Request) bool {
	return HasAnyRole(r, roles.Admin)
}

// IsGlobal reports whether the current user holds admin or pastor_conselho.
func IsGlobal(r *http.Request) bool {
	return HasAnyRole(r, roles.Admin, roles.PastorConselho)
}

// CanManageChurch reports whether the current user may edit churchID.
func CanManageChurch(r *http.Request, churchID string) bool {
	_, _, subj, ok := UserCtx(r)
	return ok && roles.CanManageChurch(subj, churchID)
}

// CanInvite reports whether the current user may grant every role in rs.
func CanInvite(r *http.Request, rs ...roles.Role) bool {
	_, _, subj, ok := UserCtx(r)
	return ok && len(rs) > 0 && roles.CanInvite(subj, rs...)
}

// Scope returns the visibility scope for the current user. Signed-out
// requests get a scope that matches nothing.
func Scope(r *http.Request) visibility.Scope {
	_, _, subj, ok := UserCtx(r)
	if !ok {
		return visibility.None()
	}
	return visibility.For(subj)
}

// AssignableRegion returns the region a record created or moved by the
// current user should carry. Region-scoped callers may only use their own
// region, and an empty request defaults to it. ok is false when requested
// names a region the caller cannot assign.
func AssignableRegion(r *http.Request, requested *primitive.ObjectID) (region *primitive.ObjectID, ok bool) {
	sc := Scope(r)
	if sc.IsGlobal() {
		return requested, true
	}
	own, scoped := sc.RegionID()
	if !scoped {
		return nil, false
	}
	if requested != nil && *requested != own {
		return nil, false
	}
	return &own, true
}

// CanMoveToRegion reports whether the current user may move an existing
// record into target. Region-scoped callers may only keep records in their
// own region; clearing the region would move them out of scope.
func CanMoveToRegion(r *http.Request, target *primitive.ObjectID) bool {
	sc := Scope(r)
	if sc.IsGlobal() {
		return true
	}
	own, scoped := sc.RegionID()
	return scoped && target != nil && *target == own
}
