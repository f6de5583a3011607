// internal/app/system/search/search.go
package search

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
)

// IsEmail reports whether q looks like someone typing an address, in which
// case a search pivots from the name field to the email field.
func IsEmail(q string) bool {
	return strings.Contains(q, "@")
}

// Prefix returns the range that matches values starting with q.
func Prefix(q string) bson.M {
	return bson.M{"$gte": q, "$lt": q + "\uffff"}
}

// Filter merges the prefix match for q into f. Queries containing '@'
// match the lower-cased email field; others match the folded nameField.
// An empty query leaves f unchanged.
func Filter(f bson.M, q, nameField string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return
	}
	if IsEmail(q) {
		f["email"] = Prefix(strings.ToLower(q))
		return
	}
	f[nameField] = Prefix(text.Fold(q))
}

// NameFilter is Filter without the email pivot, for collections that
// carry no email.
func NameFilter(f bson.M, q, nameField string) {
	q = strings.TrimSpace(q)
	if q == "" {
		return
	}
	f[nameField] = Prefix(text.Fold(q))
}
