// ABOUTME: Column encoding helpers shared by the SQLite and Postgres stores
// ABOUTME: Handles fixed-width timestamps, JSON string lists, nullable text and title folding

package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// timeLayout is fixed-width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// releaseLayout is used for the date-only release column
const releaseLayout = "2006-01-02"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written by older builds used second precision
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullInt returns nil for a nil pointer, otherwise the value
func nullInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(releaseLayout)
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(releaseLayout, s)
	if err != nil {
		return nil, fmt.Errorf("parsing release date %q: %w", s, err)
	}
	return &t, nil
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil
	}
	if len(items) == 0 {
		return nil
	}
	return items
}

// FoldTitle case-folds a title for substring matching.
// SQL lower() only folds ASCII, so Cyrillic titles are folded here.
func FoldTitle(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// likePattern builds a LIKE pattern matching folded substrings of s
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(FoldTitle(s)) + "%"
}

func intPtr(v int) *int {
	return &v
}
