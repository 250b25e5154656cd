// ABOUTME: Renderer turns screen data into Instructions using the localized catalog
// ABOUTME: One method per screen; entity screens become media when a poster is available

package render

import (
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

// Renderer builds Instructions for each screen
type Renderer struct {
	catalog *i18n.Catalog

	// BotUsername enables the "View in bot" deep link on entity captions
	BotUsername string
}

// NewRenderer creates a renderer over catalog
func NewRenderer(catalog *i18n.Catalog, botUsername string) *Renderer {
	return &Renderer{catalog: catalog, BotUsername: strings.TrimPrefix(botUsername, "@")}
}

// Catalog returns the string catalog the renderer uses
func (r *Renderer) Catalog() *i18n.Catalog { return r.catalog }

func text(s string, buttons [][]Button) Instruction {
	return Instruction{Kind: ShowTextWithButtons, Text: s, Buttons: buttons}
}

// Message renders a plain localized message. With menu set it also installs
// the main reply keyboard.
func (r *Renderer) Message(lang, key string, params map[string]string, menu bool) Instruction {
	in := text(r.catalog.Text(key, lang, escapeParams(params)), nil)
	if menu {
		in.Menu = r.catalog.Menu(lang)
	}
	return in
}

// Ack answers a button press with an optional localized toast
func (r *Renderer) Ack(lang, key string, alert bool) Instruction {
	in := Instruction{Kind: Acknowledge, Alert: alert}
	if key != "" {
		in.Notice = r.catalog.Text(key, lang, nil)
	}
	return in
}

// LanguageChoice asks for the interface language. preferred is listed first.
func (r *Renderer) LanguageChoice(preferred string) Instruction {
	return text(r.catalog.Text(i18n.KeyChooseLanguage, i18n.English, nil), r.languageKeyboard(preferred))
}

func (r *Renderer) Help(lang string) Instruction {
	in := text(r.catalog.Text(i18n.KeyHelp, lang, nil), nil)
	in.Menu = r.catalog.Menu(lang)
	return in
}

func (r *Renderer) SearchType(lang string) Instruction {
	return text(r.catalog.Text(i18n.KeySearchChoose, lang, nil), r.searchTypeKeyboard(lang))
}

func (r *Renderer) SearchPage(lang, query string, page, total int, items []provider.SearchItem) Instruction {
	msg := r.catalog.Text(i18n.KeyFoundResults, lang, map[string]string{
		"total_results": strconv.Itoa(total),
		"query":         html.EscapeString(query),
	})
	return text(msg, r.resultsKeyboard(lang, page, total, items))
}

// shareLink is the "View in bot" anchor for an entity, or "" when no bot
// username is configured.
func (r *Renderer) shareLink(lang string, entityID int64) string {
	if r.BotUsername == "" || entityID <= 0 {
		return ""
	}
	u := url.URL{
		Scheme:   "https",
		Host:     "t.me",
		Path:     "/" + r.BotUsername,
		RawQuery: "start=" + flow.StartParam(entityID),
	}
	return `<a href="` + html.EscapeString(u.String()) + `">` +
		html.EscapeString(r.catalog.Text(i18n.KeyViewInBot, lang, nil)) + `</a>`
}

// entityScreen shows an entity as a photo with caption when it has a poster
func (r *Renderer) entityScreen(lang string, e *store.Entity, buttons [][]Button) Instruction {
	link := r.shareLink(lang, e.ID)
	if e.PosterURL != "" {
		return Instruction{
			Kind:     ShowMediaWithCaption,
			Text:     Caption(r.catalog, e, lang, MaxCaptionLen, link),
			MediaURL: e.PosterURL,
			Buttons:  buttons,
		}
	}
	return text(Caption(r.catalog, e, lang, MaxTextLen, link), buttons)
}

// EntityDetail renders a catalog entity opened from search or a deep link.
// added switches the add button to the "already added" marker.
func (r *Renderer) EntityDetail(lang string, e *store.Entity, origin flow.Origin, page int, added bool) Instruction {
	return r.entityScreen(lang, e, r.detailKeyboard(lang, e.ID, origin, page, added))
}

func (r *Renderer) StatusPick(lang string, e *store.Entity, origin flow.Origin, page int) Instruction {
	msg := r.catalog.Text(i18n.KeySelectStatus, lang, map[string]string{"entity_name": html.EscapeString(e.Title)})
	return text(msg, r.statusPickKeyboard(lang, e.ID, origin, page))
}

func (r *Renderer) Added(lang string, e *store.Entity, status store.Status) Instruction {
	in := text(r.catalog.Text(i18n.KeyAdded, lang, map[string]string{
		"entity_title": html.EscapeString(e.Title),
		"status_type":  html.EscapeString(r.catalog.Status(status, lang)),
	}), nil)
	in.Menu = r.catalog.Menu(lang)
	return in
}

// ListPage describes one page of the user's list
type ListPage struct {
	Entries     []*store.ListEntry
	Page        int
	Total       int
	Status      store.Status
	TitleFilter string
	Notice      string
}

func (r *Renderer) List(lang string, lp ListPage) Instruction {
	status := lp.Status
	if status == "" {
		status = store.StatusAll
	}
	statusText := html.EscapeString(r.catalog.Status(status, lang))

	var msg string
	switch {
	case lp.Total == 0:
		msg = r.catalog.Text(i18n.KeyListEmptyStatus, lang, map[string]string{"status": statusText})
	case lp.TitleFilter != "":
		msg = r.catalog.Text(i18n.KeyFoundResults, lang, map[string]string{
			"total_results": strconv.Itoa(lp.Total),
			"query":         html.EscapeString(lp.TitleFilter),
		})
	default:
		msg = r.catalog.Text(i18n.KeyListTitle, lang, map[string]string{
			"total_results": strconv.Itoa(lp.Total),
			"status_text":   statusText,
		})
	}

	in := text(msg, r.listKeyboard(lang, lp.Page, lp.Total, lp.Entries))
	if lp.Notice != "" {
		in.Notice = r.catalog.Text(lp.Notice, lang, nil)
	}
	return in
}

// Entry renders a list entry with its mutation buttons
func (r *Renderer) Entry(lang string, le *store.ListEntry, page int) Instruction {
	return r.entityScreen(lang, le.Entity, r.entryKeyboard(lang, le, page))
}

func (r *Renderer) ask(lang, key string, e *store.Entity) string {
	return r.catalog.Text(key, lang, map[string]string{
		"entity_type": html.EscapeString(strings.ToLower(r.catalog.Type(e.Type, lang))),
		"entity_name": "<b>" + html.EscapeString(e.Title) + "</b>",
	})
}

func (r *Renderer) RatingChoice(lang string, le *store.ListEntry, page int) Instruction {
	return text(r.ask(lang, i18n.KeyAskRating, le.Entity), r.ratingKeyboard(lang, le.ID, page))
}

func (r *Renderer) StatusEdit(lang string, le *store.ListEntry, page int) Instruction {
	return text(r.ask(lang, i18n.KeyAskStatus, le.Entity), r.statusEditKeyboard(lang, le.ID, page))
}

func (r *Renderer) SeasonChoice(lang string, le *store.ListEntry, page, season int) Instruction {
	return text(r.ask(lang, i18n.KeyAskSeason, le.Entity), r.seasonKeyboard(lang, le.ID, page, season))
}

func (r *Renderer) DeleteConfirm(lang string, le *store.ListEntry, page int) Instruction {
	return text(r.ask(lang, i18n.KeyAskDelete, le.Entity), r.deleteKeyboard(lang, le.ID, page))
}

// Profile shows the user's name and list size
func (r *Renderer) Profile(lang string, u *store.User, entries int) Instruction {
	msg := r.catalog.Text(i18n.KeyProfile, lang, map[string]string{
		"user_name":      html.EscapeString(u.DisplayName()),
		"entities_count": strconv.Itoa(entries),
	})
	return text(msg, r.profileKeyboard(lang))
}

func escapeParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = html.EscapeString(v)
	}
	return out
}
