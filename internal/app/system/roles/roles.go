// Package roles is the role model: which roles a user holds, which roles
// they may grant, which churches they may manage, and how roles are shown.
//
// Every function here is pure. Callers build a Subject from whatever record
// they hold (a stored profile, a session user) and ask questions of it.
//
// A user may hold several roles at once. The roles do not form a total
// order: admin and pastor_conselho see everything, while pastor_regional,
// pastor_local and secretaria are scoped to a region (see package visibility).
package roles

import (
	"errors"
	"strings"
)

// Role is one of the fixed access levels.
type Role string

const (
	Admin          Role = "admin"
	PastorConselho Role = "pastor_conselho"
	PastorRegional Role = "pastor_regional"
	PastorLocal    Role = "pastor_local"
	Secretaria     Role = "secretaria"
)

// Default is granted to identities that sign in without a profile.
const Default = PastorLocal

// priority is the display order used by PrimaryRole and InvitableRoles.
var priority = []Role{Admin, PastorConselho, PastorRegional, PastorLocal, Secretaria}

// All returns every role in priority order.
func All() []Role {
	out := make([]Role, len(priority))
	copy(out, priority)
	return out
}

var (
	// ErrUnknownRole is returned when a role string is not one of the fixed roles.
	ErrUnknownRole = errors.New("unknown role")
	// ErrNoRoles is returned when a role list is empty after normalization.
	ErrNoRoles = errors.New("at least one role is required")
)

// Parse converts a raw string into a Role. Matching ignores case and
// surrounding space.
func Parse(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range priority {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Normalize parses, validates and de-duplicates a role list, keeping the
// caller's order so that the first role stays the legacy mirror.
func Normalize(raw []string) ([]Role, error) {
	out := make([]Role, 0, len(raw))
	seen := make(map[Role]struct{}, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		r, ok := Parse(s)
		if !ok {
			return nil, ErrUnknownRole
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, ErrNoRoles
	}
	return out, nil
}

// Mirror returns the legacy single-role value written next to the roles
// array: the first role, or "" for an empty list.
func Mirror(rs []Role) string {
	if len(rs) == 0 {
		return ""
	}
	return string(rs[0])
}

// Strings converts a role list back to plain strings for storage.
func Strings(rs []Role) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// Subject is the role-bearing view of a user. IDs are hex strings; empty
// means unset.
type Subject struct {
	Role            string   // legacy single role
	Roles           []string // authoritative when non-empty
	RegionID        string
	ChurchID        string
	SecretaryOf     string
	CanManageChurch []string
}

// UserRoles returns the roles s holds: Roles when non-empty, otherwise the
// legacy Role wrapped in a one-element list, otherwise nothing. Every other
// membership test goes through this function.
//
// Values are returned as stored; unknown strings are not dropped here so
// a bad record is visible rather than silently demoted.
func UserRoles(s Subject) []Role {
	if len(s.Roles) > 0 {
		out := make([]Role, len(s.Roles))
		for i, r := range s.Roles {
			out[i] = Role(r)
		}
		return out
	}
	if s.Role != "" {
		return []Role{Role(s.Role)}
	}
	return []Role{}
}

// HasRole reports whether s holds r.
func HasRole(s Subject, r Role) bool {
	for _, have := range UserRoles(s) {
		if have == r {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether s holds at least one of rs.
func HasAnyRole(s Subject, rs ...Role) bool {
	for _, r := range rs {
		if HasRole(s, r) {
			return true
		}
	}
	return false
}

// PrimaryRole returns the highest-priority role s holds. If s holds only
// roles outside the fixed set, the first of them is returned. It is for
// badges only; never authorize on it.
func PrimaryRole(s Subject) (Role, bool) {
	held := UserRoles(s)
	for _, r := range priority {
		for _, h := range held {
			if h == r {
				return r, true
			}
		}
	}
	if len(held) > 0 {
		return held[0], true
	}
	return "", false
}

// invitable lists what each role may grant. Secretaries carry the same
// power as council pastors.
// TODO(product): confirm secretaria should not be narrowed to pastor_local's set.
var invitable = map[Role][]Role{
	Admin:          {Admin, PastorConselho, PastorRegional, PastorLocal, Secretaria},
	PastorConselho: {PastorConselho, PastorRegional, PastorLocal, Secretaria},
	PastorRegional: {PastorLocal, Secretaria},
	PastorLocal:    {Secretaria},
	Secretaria:     {PastorConselho, PastorRegional, PastorLocal, Secretaria},
}

// InvitableRoles returns the union of what each held role may grant,
// de-duplicated and in priority order.
func InvitableRoles(s Subject) []Role {
	grant := make(map[Role]struct{})
	for _, r := range UserRoles(s) {
		for _, g := range invitable[r] {
			grant[g] = struct{}{}
		}
	}
	out := make([]Role, 0, len(grant))
	for _, r := range priority {
		if _, ok := grant[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// CanInvite reports whether s may grant every role in rs.
func CanInvite(s Subject, rs ...Role) bool {
	allowed := InvitableRoles(s)
	for _, want := range rs {
		found := false
		for _, a := range allowed {
			if a == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IsSecretaryOf reports whether s is recorded as secretary of a church.
// With an empty churchID it reports whether s is secretary of any church.
func IsSecretaryOf(s Subject, churchID string) bool {
	if s.SecretaryOf == "" {
		return false
	}
	return churchID == "" || s.SecretaryOf == churchID
}

// CanManageChurch reports whether s may edit the church with churchID.
// Any one of these suffices: a global role, secretary of the church,
// pastor of the church, or an explicit grant.
func CanManageChurch(s Subject, churchID string) bool {
	if HasAnyRole(s, Admin, PastorConselho) {
		return true
	}
	if churchID == "" {
		return false
	}
	if s.SecretaryOf == churchID || s.ChurchID == churchID {
		return true
	}
	for _, id := range s.CanManageChurch {
		if id == churchID {
			return true
		}
	}
	return false
}

// IsGlobal reports whether r sees data across all regions.
func IsGlobal(r Role) bool {
	return r == Admin || r == PastorConselho
}

// IsRegionScoped reports whether r is bound to the holder's region.
func IsRegionScoped(r Role) bool {
	return r == PastorRegional || r == PastorLocal || r == Secretaria
}
