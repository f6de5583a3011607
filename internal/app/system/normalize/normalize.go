// Package normalize puts user input into the canonical form stored in Mongo.
package normalize

import (
	"strings"

	"github.com/dalemusser/churchhub/internal/app/system/status"
)

// Email trims and lowercases an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding space and collapses inner runs of whitespace.
// Case is preserved.
func Name(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Phone keeps digits only, the form the WhatsApp gateway expects.
func Phone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Status lowercases a status and maps blanks to active.
func Status(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return status.Active
	}
	return s
}

// UF uppercases a two-letter Brazilian state code. Anything else is dropped.
func UF(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 2 {
		return ""
	}
	return s
}

// EmailDomain returns the lowercased part after the last "@", or "".
func EmailDomain(email string) string {
	email = Email(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
