// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the default number of rows returned by list endpoints.
const PageSize = 50

// MaxPageSize caps the "limit" query parameter.
const MaxPageSize = 200

// ParseStart extracts the human-friendly "start" query parameter (1-based index).
// Returns 1 if not present or invalid.
func ParseStart(r *http.Request) int {
	return parsePositive(query.Get(r, "start"), 1)
}

// ParseLimit extracts the "limit" query parameter, defaulting to PageSize
// and clamped to MaxPageSize.
func ParseLimit(r *http.Request) int {
	n := parsePositive(query.Get(r, "limit"), PageSize)
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

func parsePositive(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

// Skip converts a 1-based start index into a Mongo skip.
func Skip(start int) int64 {
	if start < 1 {
		return 0
	}
	return int64(start - 1)
}

// TrimPage trims rows fetched with a limit of limit+1 and reports whether
// another page exists.
func TrimPage[T any](rows *[]T, limit int) (hasNext bool) {
	if len(*rows) > limit {
		*rows = (*rows)[:limit]
		return true
	}
	return false
}

// Page is the JSON envelope for paged lists.
type Page[T any] struct {
	Items     []T    `json:"items"`
	Start     int    `json:"start"`      // 1-based start index (0 if no results)
	End       int    `json:"end"`        // 1-based end index (0 if no results)
	HasNext   bool   `json:"has_next"`
	NextStart int    `json:"next_start,omitempty"`
	Next      string `json:"next,omitempty"` // keyset cursor, when the list is keyset paged
}

// NewPage builds the envelope for rows shown from start.
func NewPage[T any](rows []T, start int, hasNext bool) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	p := Page[T]{Items: rows, HasNext: hasNext}
	if len(rows) == 0 {
		return p
	}
	p.Start = start
	p.End = start + len(rows) - 1
	if hasNext {
		p.NextStart = p.End + 1
	}
	return p
}

// Keyset pages forward through a collection sorted by a folded name and _id.
type Keyset struct {
	Cursor *wafflemongo.Cursor
	Limit  int
}

// ConfigureKeyset decodes the "after" cursor. An undecodable cursor starts
// from the beginning.
func ConfigureKeyset(after string, limit int) Keyset {
	ks := Keyset{Limit: limit}
	if after != "" {
		if c, ok := wafflemongo.DecodeCursor(after); ok {
			ks.Cursor = &c
		}
	}
	return ks
}

// ApplyToFind configures sort and look-ahead limit.
func (ks Keyset) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: 1},
		{Key: "_id", Value: 1},
	}).SetLimit(int64(ks.Limit + 1))
}

// Window returns the cursor condition for the query filter, or nil.
func (ks Keyset) Window(sortField string) bson.M {
	if ks.Cursor == nil {
		return nil
	}
	return wafflemongo.KeysetWindow(sortField, "gt", ks.Cursor.CI, ks.Cursor.ID)
}

// NextCursor encodes the cursor following the last row.
func NextCursor[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) string {
	if len(rows) == 0 {
		return ""
	}
	last := rows[len(rows)-1]
	return wafflemongo.EncodeCursor(keyFn(last), idFn(last))
}
