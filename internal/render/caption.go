// ABOUTME: Entity caption formatter: header, attribute blockquote and description
// ABOUTME: Escapes provider text for Telegram HTML and truncates to the caption limit without splitting markup

package render

import (
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/store"
)

// Platform length limits in runes
const (
	MaxCaptionLen = 1024
	MaxTextLen    = 4096
)

const ellipsis = "…"

// ratingLabels maps rating sources to their short display names
var ratingLabels = map[string]string{
	"Internet Movie Database": "IMDb",
	"Rotten Tomatoes":         "RT",
	"Metacritic":              "MC",
	"Kinopoisk":               "KP",
}

// formatRating renders a rating in its native scale: "8.8", "96%" or "74/100"
func formatRating(r store.Rating) string {
	v := strconv.FormatFloat(r.Value, 'f', -1, 64)
	switch {
	case r.Percent:
		return v + "%"
	case r.MaxValue == 10 || r.MaxValue == 0:
		return v
	default:
		return v + "/" + strconv.FormatFloat(r.MaxValue, 'f', -1, 64)
	}
}

func yearRange(e *store.Entity) string {
	year := "?"
	if e.YearStart > 0 {
		year = strconv.Itoa(e.YearStart)
	} else if e.ReleaseDate != nil {
		year = strconv.Itoa(e.ReleaseDate.Year())
	}
	if e.YearEnd > 0 && e.YearEnd != e.YearStart {
		year += " - " + strconv.Itoa(e.YearEnd)
	}
	return year
}

// entryYear is the short year shown on list rows
func entryYear(e *store.Entity) string {
	switch {
	case e == nil:
		return "?"
	case e.ReleaseDate != nil:
		return strconv.Itoa(e.ReleaseDate.Year())
	case e.YearStart > 0:
		return strconv.Itoa(e.YearStart)
	default:
		return "?"
	}
}

func joinEscaped(items []string) string {
	escaped := make([]string, len(items))
	for i, s := range items {
		escaped[i] = html.EscapeString(s)
	}
	return strings.Join(escaped, ", ")
}

// Caption formats an entity for display. limit bounds the result in runes;
// the description is shortened first, and suffix (already HTML) is always kept.
func Caption(c *i18n.Catalog, e *store.Entity, lang string, limit int, suffix string) string {
	var b strings.Builder
	b.WriteString("<code>")
	b.WriteString(html.EscapeString(e.Title))
	b.WriteString(" (")
	b.WriteString(yearRange(e))
	b.WriteString(")</code> - ")
	b.WriteString(html.EscapeString(c.Type(e.Type, lang)))
	header := b.String()

	var quote []string
	add := func(key, value string) {
		if value != "" {
			quote = append(quote, "<b>"+html.EscapeString(c.Text(key, lang, nil))+":</b> "+value)
		}
	}

	var ratings []string
	for _, r := range e.Ratings {
		if label, ok := ratingLabels[r.Source]; ok {
			ratings = append(ratings, label+" - "+formatRating(r))
		}
	}
	add(i18n.KeyRating, strings.Join(ratings, " | "))
	if e.Duration > 0 {
		add(i18n.KeyRuntime, strconv.Itoa(e.Duration)+" "+html.EscapeString(c.Text(i18n.KeyMinutes, lang, nil)))
	}
	if e.TotalSeasons > 0 {
		add(i18n.KeySeasons, strconv.Itoa(e.TotalSeasons))
	}
	add(i18n.KeyGenre, joinEscaped(e.Genres))
	add(i18n.KeyCountry, joinEscaped(e.Countries))
	add(i18n.KeyDirector, joinEscaped(e.Authors))
	add(i18n.KeyActors, joinEscaped(e.Actors))

	parts := []string{header}
	if len(quote) > 0 {
		parts = append(parts, "<blockquote>"+strings.Join(quote, "\n")+"</blockquote>")
	}
	head := strings.Join(parts, "\n\n")

	tail := ""
	if suffix != "" {
		tail = "\n\n" + suffix
	}

	budget := limit - utf8.RuneCountInString(head) - utf8.RuneCountInString(tail)
	if desc := strings.TrimSpace(e.Description); desc != "" && budget > 2 {
		if d := fitEscaped(desc, budget-2); d != "" {
			head += "\n\n" + d
		}
	}
	if utf8.RuneCountInString(head)+utf8.RuneCountInString(tail) > limit {
		// Attributes alone overflow; fall back to the bare header
		head = header
	}
	return head + tail
}

// fitEscaped escapes s and shortens it so the escaped form has at most
// budget runes. Cuts happen on the raw text so no entity is split.
func fitEscaped(s string, budget int) string {
	escaped := html.EscapeString(s)
	if utf8.RuneCountInString(escaped) <= budget {
		return escaped
	}
	runes := []rune(s)
	for len(runes) > 0 {
		over := utf8.RuneCountInString(html.EscapeString(string(runes))) + 1 - budget
		if over <= 0 {
			break
		}
		runes = runes[:max(len(runes)-over, 0)]
	}
	trimmed := strings.TrimSpace(string(runes))
	if trimmed == "" {
		return ""
	}
	return html.EscapeString(trimmed) + ellipsis
}
