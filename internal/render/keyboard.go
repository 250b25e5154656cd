// ABOUTME: Inline keyboard builders for every screen of the bot
// ABOUTME: Payloads are produced with the flow codec so they always parse back

package render

import (
	"strconv"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

const (
	prevArrow = "◀️"
	nextArrow = "▶️"
)

// statusRow lists statuses in the order the list screen shows them
var statusRow = []store.Status{store.StatusCompleted, store.StatusInProgress, store.StatusPlanning}

func btn(text string, action flow.Action, args ...any) Button {
	return Button{Text: text, Data: flow.NewPayload(action, args...).String()}
}

func row(buttons ...Button) []Button { return buttons }

func (r *Renderer) t(key, lang string) string { return r.catalog.Text(key, lang, nil) }

// pager builds the ◀️ / "p of N" / ▶️ row
func (r *Renderer) pager(lang string, page, total int, action flow.Action) []Button {
	pages := flow.TotalPages(total)
	prev, next := flow.PageControls(page, pages)

	var out []Button
	if prev {
		out = append(out, btn(prevArrow, action, page-1))
	}
	label := r.catalog.Text(i18n.KeyPageOf, lang, map[string]string{
		"page":        strconv.Itoa(page),
		"total_pages": strconv.Itoa(max(pages, 1)),
	})
	out = append(out, btn(label, flow.ActNoop))
	if next {
		out = append(out, btn(nextArrow, action, page+1))
	}
	return out
}

func (r *Renderer) languageKeyboard(preferred string) [][]Button {
	ru := btn("🇷🇺 Русский", flow.ActLang, i18n.Russian)
	en := btn("🇬🇧 English", flow.ActLang, i18n.English)
	if preferred == i18n.English {
		return [][]Button{row(en, ru)}
	}
	return [][]Button{row(ru, en)}
}

func (r *Renderer) searchTypeKeyboard(lang string) [][]Button {
	return [][]Button{
		row(
			btn(r.t(i18n.KeySearchGlobal, lang), flow.ActSearchGlobal),
			btn(r.t(i18n.KeySearchLocal, lang), flow.ActSearchLocal),
		),
		row(btn(r.t(i18n.KeyCancel, lang), flow.ActCancel)),
	}
}

func (r *Renderer) resultsKeyboard(lang string, page, total int, items []provider.SearchItem) [][]Button {
	rows := make([][]Button, 0, len(items)+2)
	for _, it := range items {
		year := it.Year
		if year == "" {
			year = "?"
		}
		text := it.Title + " (" + year + ") - " + r.catalog.Type(it.Type, lang)
		rows = append(rows, row(btn(text, flow.ActResultSelect, page, it.ExternalID)))
	}
	rows = append(rows, r.pager(lang, page, total, flow.ActResultsPage))
	rows = append(rows, row(
		btn(r.t(i18n.KeyFilter, lang), flow.ActResultsFilter, page),
		btn(r.t(i18n.KeyCancel, lang), flow.ActSearchCancel),
	))
	return rows
}

func (r *Renderer) detailKeyboard(lang string, entityID int64, origin flow.Origin, page int, added bool) [][]Button {
	first := btn(r.t(i18n.KeyAddToList, lang), flow.ActSearchAdd, page, entityID)
	if origin == flow.OriginDeepLink {
		first = btn(r.t(i18n.KeyAddToList, lang), flow.ActDeepLinkAdd, entityID)
	}
	if added {
		first = btn(r.t(i18n.KeyAlreadyAdded, lang), flow.ActSearchAdded)
	}

	second := btn(r.t(i18n.KeyBack, lang), flow.ActSearchBack, page)
	if origin == flow.OriginDeepLink {
		second = btn(r.t(i18n.KeyCancel, lang), flow.ActDeepLinkCancel)
	}
	return [][]Button{row(first, second)}
}

func (r *Renderer) statusPickKeyboard(lang string, entityID int64, origin flow.Origin, page int) [][]Button {
	pick := func(s store.Status) Button {
		if origin == flow.OriginDeepLink {
			return btn(r.catalog.Status(s, lang), flow.ActDeepLinkStatus, entityID, s)
		}
		return btn(r.catalog.Status(s, lang), flow.ActSearchStatus, page, entityID, s)
	}
	back := btn(r.t(i18n.KeyBack, lang), flow.ActSearchBack, page, entityID)
	if origin == flow.OriginDeepLink {
		back = btn(r.t(i18n.KeyBack, lang), flow.ActDeepLinkBack, entityID)
	}
	return [][]Button{
		row(pick(store.StatusInProgress), pick(store.StatusCompleted)),
		row(pick(store.StatusPlanning), back),
	}
}

func (r *Renderer) listKeyboard(lang string, page, total int, list []*store.ListEntry) [][]Button {
	rows := make([][]Button, 0, len(list)+3)
	for _, le := range list {
		title := "?"
		if le.Entity != nil {
			title = le.Entity.Title
		}
		text := title + " (" + entryYear(le.Entity) + ") | " + r.catalog.Status(le.Status, lang)
		rows = append(rows, row(btn(text, flow.ActListSelect, page, le.ID)))
	}
	if total > 0 {
		rows = append(rows, r.pager(lang, page, total, flow.ActListPage))
	}

	statuses := make([]Button, 0, len(statusRow))
	for _, s := range statusRow {
		statuses = append(statuses, btn(r.catalog.Status(s, lang), flow.ActListStatus, s))
	}
	rows = append(rows, statuses)
	rows = append(rows, row(
		btn(r.catalog.Status(store.StatusAll, lang), flow.ActListStatus, store.StatusAll),
		btn(r.t(i18n.KeyCancel, lang), flow.ActCancel),
	))
	return rows
}

func (r *Renderer) entryKeyboard(lang string, le *store.ListEntry, page int) [][]Button {
	rate := r.t(i18n.KeySetRating, lang)
	if le.Rating != nil {
		rate = r.catalog.Text(i18n.KeyUserRating, lang, map[string]string{"rating": strconv.Itoa(*le.Rating)})
	}
	first := row(
		btn(rate, flow.ActListSelectRate, page, le.ID),
		btn(r.catalog.Status(le.Status, lang), flow.ActListSelectStatus, page, le.ID),
	)
	if le.Entity != nil && le.Entity.IsSeries() {
		season := r.t(i18n.KeySetSeason, lang)
		if le.Season != nil {
			season = r.catalog.Text(i18n.KeyUserSeason, lang, map[string]string{"season": strconv.Itoa(*le.Season)})
		}
		first = append(first, btn(season, flow.ActListSelectSeason, page, le.ID))
	}
	return [][]Button{
		first,
		row(
			btn(r.t(i18n.KeyDelete, lang), flow.ActListSelectDelete, page, le.ID),
			btn(r.t(i18n.KeyBack, lang), flow.ActListBack, page),
		),
	}
}

func (r *Renderer) backToEntry(lang string, entryID int64, page int) Button {
	return btn(r.t(i18n.KeyBack, lang), flow.ActListBack, page, entryID)
}

func (r *Renderer) ratingKeyboard(lang string, entryID int64, page int) [][]Button {
	choices := make([]Button, 0, store.MaxUserRating)
	for i := store.MinUserRating; i <= store.MaxUserRating; i++ {
		choices = append(choices, btn(strconv.Itoa(i), flow.ActSetRating, page, entryID, i))
	}
	return [][]Button{choices, row(r.backToEntry(lang, entryID, page))}
}

func (r *Renderer) statusEditKeyboard(lang string, entryID int64, page int) [][]Button {
	choices := make([]Button, 0, len(statusRow))
	for _, s := range statusRow {
		choices = append(choices, btn(r.catalog.Status(s, lang), flow.ActSetStatus, page, entryID, s))
	}
	return [][]Button{choices, row(r.backToEntry(lang, entryID, page))}
}

func (r *Renderer) seasonKeyboard(lang string, entryID int64, page, season int) [][]Button {
	return [][]Button{
		row(
			btn("-", flow.ActSetSeason, page, entryID, flow.StepSeason(season, -1)),
			btn(strconv.Itoa(season), flow.ActNoop),
			btn("+", flow.ActSetSeason, page, entryID, flow.StepSeason(season, 1)),
		),
		row(
			btn(r.t(i18n.KeyClean, lang), flow.ActSetSeasonClean, page, entryID),
			btn(r.t(i18n.KeyConfirm, lang), flow.ActSetSeasonConfirm, page, entryID, season),
		),
	}
}

func (r *Renderer) deleteKeyboard(lang string, entryID int64, page int) [][]Button {
	return [][]Button{row(
		btn(r.t(i18n.KeyYes, lang), flow.ActSetDelete, page, entryID, "yes"),
		r.noToEntry(lang, entryID, page),
	)}
}

func (r *Renderer) noToEntry(lang string, entryID int64, page int) Button {
	return btn(r.t(i18n.KeyNo, lang), flow.ActListBack, page, entryID)
}

func (r *Renderer) profileKeyboard(lang string) [][]Button {
	return [][]Button{row(
		btn(r.t(i18n.KeyChangeLanguage, lang), flow.ActProfileLang),
		btn(r.t(i18n.KeyShareList, lang), flow.ActProfileShare),
		btn(r.t(i18n.KeyCancel, lang), flow.ActCancel),
	)}
}
