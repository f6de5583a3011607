// Package htmlsanitize cleans user-supplied text before it is stored or
// sent on. Rich text (region descriptions, email bodies built from user
// input) keeps a safe subset of HTML; chat content keeps none.
package htmlsanitize

import (
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy  = newRichPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").OnElements("table", "th", "td")
	p.RequireNoFollowOnLinks(false)
	return p
}

// Sanitize keeps formatting markup and strips scripts, handlers and unsafe URLs.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return richPolicy.Sanitize(s)
}

// SanitizeToHTML is Sanitize for values rendered into html/template.
func SanitizeToHTML(s string) template.HTML {
	return template.HTML(Sanitize(s))
}

// StripTags removes all markup and returns trimmed text.
func StripTags(s string) string {
	return strings.TrimSpace(plainPolicy.Sanitize(s))
}

// IsPlainText reports whether s contains no tags.
func IsPlainText(s string) bool {
	return !strings.ContainsAny(s, "<>")
}
