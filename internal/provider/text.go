// ABOUTME: Text normalization helpers used by provider decoders
// ABOUTME: Strips provider HTML with bluemonday and splits comma-separated metadata lists

package provider

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanText removes markup from provider text and collapses whitespace.
// The result is plain text; the renderer escapes it for display.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	plain := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

// Absent reports whether a provider string means "no value"
func Absent(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == "N/A"
}

// SplitList splits "a, b, c" into trimmed non-empty items.
// Absent values yield nil.
func SplitList(s string) []string {
	if Absent(s) {
		return nil
	}
	var items []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}
