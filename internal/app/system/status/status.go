// Package status holds the account status values stored on users.
package status

const (
	Active   = "active"
	Inactive = "inactive"
	Pending  = "pending"
)

// IsValid reports whether s is a known status.
func IsValid(s string) bool {
	switch s {
	case Active, Inactive, Pending:
		return true
	}
	return false
}
