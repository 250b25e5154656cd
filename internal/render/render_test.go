// ABOUTME: Tests for captions, keyboards and screen instructions
// ABOUTME: Verifies layouts, escaping, truncation and that every button payload parses

package render

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

func newRenderer() *Renderer {
	return NewRenderer(i18n.Default(), "@vistly_bot")
}

func breakingBad() *store.Entity {
	return &store.Entity{
		ID:           12,
		SourceID:     "tt0903747",
		Title:        "Breaking Bad",
		Type:         store.EntitySeries,
		Description:  "A chemistry teacher turns to crime.",
		PosterURL:    "https://img.example/bb.jpg",
		Duration:     49,
		Genres:       []string{"Crime", "Drama"},
		Authors:      []string{"Vince Gilligan"},
		Actors:       []string{"Bryan Cranston", "Aaron Paul"},
		Countries:    []string{"United States"},
		YearStart:    2008,
		YearEnd:      2013,
		TotalSeasons: 5,
		Ratings: []store.Rating{
			{Source: "Internet Movie Database", Value: 9.5, MaxValue: 10},
			{Source: "Rotten Tomatoes", Value: 96, MaxValue: 100, Percent: true},
			{Source: "Metacritic", Value: 87, MaxValue: 100},
			{Source: "Unknown", Value: 1, MaxValue: 10},
		},
	}
}

// payloads collects every callback payload in an instruction
func payloads(in Instruction) []string {
	var out []string
	for _, r := range in.Buttons {
		for _, b := range r {
			if b.Data != "" {
				out = append(out, b.Data)
			}
		}
	}
	return out
}

func assertPayloadsParse(t *testing.T, in Instruction) {
	t.Helper()
	for _, data := range payloads(in) {
		if _, err := flow.ParsePayload(data); err != nil {
			t.Errorf("payload %q does not parse: %v", data, err)
		}
	}
}

func TestCaption(t *testing.T) {
	got := Caption(i18n.Default(), breakingBad(), "en", MaxCaptionLen, "")
	want := "<code>Breaking Bad (2008 - 2013)</code> - Series\n\n" +
		"<blockquote><b>Rating:</b> IMDb - 9.5 | RT - 96% | MC - 87/100\n" +
		"<b>Runtime:</b> 49 min\n" +
		"<b>Seasons:</b> 5\n" +
		"<b>Genre:</b> Crime, Drama\n" +
		"<b>Country:</b> United States\n" +
		"<b>Director:</b> Vince Gilligan\n" +
		"<b>Actors:</b> Bryan Cranston, Aaron Paul</blockquote>\n\n" +
		"A chemistry teacher turns to crime."
	assert.Equal(t, want, got)
}

func TestCaptionMinimal(t *testing.T) {
	e := &store.Entity{Title: "Tom & Jerry <1940>", Type: store.EntityMovie}
	got := Caption(i18n.Default(), e, "ru", MaxCaptionLen, "")
	assert.Equal(t, "<code>Tom &amp; Jerry &lt;1940&gt; (?)</code> - Фильм", got)

	date := time.Date(1997, 1, 1, 0, 0, 0, 0, time.UTC)
	e = &store.Entity{Title: "Брат", Type: store.EntityMovie, ReleaseDate: &date, Ratings: []store.Rating{{Source: "Kinopoisk", Value: 8.3, MaxValue: 10}}}
	got = Caption(i18n.Default(), e, "ru", MaxCaptionLen, "")
	assert.Equal(t, "<code>Брат (1997)</code> - Фильм\n\n<blockquote><b>Рейтинг:</b> KP - 8.3</blockquote>", got)
}

func TestCaptionTruncation(t *testing.T) {
	e := breakingBad()
	e.Description = strings.Repeat("Очень длинное описание & ещё. ", 100)
	suffix := `<a href="https://t.me/x?start=entity_12">View in bot</a>`

	got := Caption(i18n.Default(), e, "ru", MaxCaptionLen, suffix)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), MaxCaptionLen)
	assert.True(t, strings.HasSuffix(got, "…\n\n"+suffix), "description is shortened and suffix kept")
	assert.NotContains(t, got, "&am…", "entities are never split")
	assert.Contains(t, got, "</blockquote>")
}

func TestEntityDetail(t *testing.T) {
	r := newRenderer()

	in := r.EntityDetail("en", breakingBad(), flow.OriginSearch, 2, false)
	assert.Equal(t, ShowMediaWithCaption, in.Kind)
	assert.Equal(t, "https://img.example/bb.jpg", in.MediaURL)
	assert.Contains(t, in.Text, `<a href="https://t.me/vistly_bot?start=entity_12">View in bot</a>`)
	assert.Equal(t, []string{"gs_add:2:12", "gs_back:2"}, payloads(in))

	in = r.EntityDetail("en", breakingBad(), flow.OriginSearch, 2, true)
	assert.Equal(t, []string{"gs_added", "gs_back:2"}, payloads(in))

	e := breakingBad()
	e.PosterURL = ""
	in = r.EntityDetail("en", e, flow.OriginDeepLink, 1, false)
	assert.Equal(t, ShowTextWithButtons, in.Kind)
	assert.Equal(t, []string{"dl_add:12", "dl_cancel"}, payloads(in))

	noBot := NewRenderer(i18n.Default(), "")
	assert.NotContains(t, noBot.EntityDetail("en", e, flow.OriginSearch, 1, false).Text, "<a href")
}

func TestStatusPick(t *testing.T) {
	r := newRenderer()
	in := r.StatusPick("en", breakingBad(), flow.OriginSearch, 3)
	assert.Equal(t, "Select status for <b>Breaking Bad</b>", in.Text)
	assert.Equal(t, []string{
		"gs_add_select:3:12:in_progress", "gs_add_select:3:12:completed",
		"gs_add_select:3:12:planning", "gs_back:3:12",
	}, payloads(in))

	in = r.StatusPick("en", breakingBad(), flow.OriginDeepLink, 1)
	assert.Equal(t, []string{
		"dl_add_select:12:in_progress", "dl_add_select:12:completed",
		"dl_add_select:12:planning", "dl_back:12",
	}, payloads(in))
}

func TestSearchPage(t *testing.T) {
	r := newRenderer()
	items := []provider.SearchItem{
		{ExternalID: "tt1375666", Title: "Inception", Year: "2010", Type: store.EntityMovie},
		{ExternalID: "tt0000001", Title: "Inception Series", Type: store.EntitySeries},
	}
	in := r.SearchPage("en", "Inception <b>", 2, 37, items)
	assert.Equal(t, "Found 37 for: <b>Inception &lt;b&gt;</b>", in.Text)
	require.Len(t, in.Buttons, 4)
	assert.Equal(t, "Inception (2010) - Movie", in.Buttons[0][0].Text)
	assert.Equal(t, "Inception Series (?) - Series", in.Buttons[1][0].Text)

	pager := in.Buttons[2]
	require.Len(t, pager, 3)
	assert.Equal(t, "gs_page:1", pager[0].Data)
	assert.Equal(t, "2 of 4", pager[1].Text)
	assert.Equal(t, "noop", pager[1].Data)
	assert.Equal(t, "gs_page:3", pager[2].Data)
	assert.Equal(t, []string{"gs_filter:2", "gs_cancel"}, []string{in.Buttons[3][0].Data, in.Buttons[3][1].Data})
	assertPayloadsParse(t, in)
}

func TestPagerEdges(t *testing.T) {
	r := newRenderer()
	first := r.pager("en", 1, 23, flow.ActListPage)
	assert.Len(t, first, 2)
	assert.Equal(t, "ls_page:2", first[1].Data)

	lastPage := r.pager("en", 3, 23, flow.ActListPage)
	assert.Len(t, lastPage, 2)
	assert.Equal(t, "ls_page:2", lastPage[0].Data)
	assert.Equal(t, "3 of 3", lastPage[1].Text)

	single := r.pager("en", 1, 4, flow.ActListPage)
	assert.Len(t, single, 1)
}

func listEntry(id int64, title string, t store.EntityType) *store.ListEntry {
	date := time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)
	return &store.ListEntry{
		ID:       id,
		EntityID: id * 10,
		Status:   store.StatusPlanning,
		Entity:   &store.Entity{ID: id * 10, Title: title, Type: t, ReleaseDate: &date, PosterURL: "https://img.example/p.jpg"},
	}
}

func TestList(t *testing.T) {
	r := newRenderer()
	in := r.List("ru", ListPage{
		Entries: []*store.ListEntry{listEntry(1, "Начало", store.EntityMovie)},
		Page:    1,
		Total:   1,
		Status:  store.StatusAll,
		Notice:  i18n.KeyDeleted,
	})
	assert.Equal(t, "У вас <b>1</b> со статусом <b>Все</b>:", in.Text)
	assert.Equal(t, "Удалено из списка", in.Notice)
	assert.Equal(t, "Начало (2010) | Хочу", in.Buttons[0][0].Text)
	assert.Equal(t, []string{
		"ls_select:1:1", "noop",
		"ls_status:completed", "ls_status:in_progress", "ls_status:planning",
		"ls_status:all", "cancel",
	}, payloads(in))

	empty := r.List("en", ListPage{Page: 1, Status: store.StatusCompleted})
	assert.Equal(t, "No Completed items in your list", empty.Text)
	assert.Len(t, empty.Buttons, 2, "only the filter rows remain")
}

func TestEntryKeyboard(t *testing.T) {
	r := newRenderer()

	movie := listEntry(7, "Inception", store.EntityMovie)
	in := r.Entry("en", movie, 2)
	assert.Equal(t, ShowMediaWithCaption, in.Kind)
	assert.Equal(t, []string{"ls_select_rate:2:7", "ls_select_status:2:7", "ls_select_delete:2:7", "ls_back:2"}, payloads(in))
	assert.Equal(t, "Set rating", in.Buttons[0][0].Text)

	series := listEntry(8, "Breaking Bad", store.EntitySeries)
	rating, season := 4, 3
	series.Rating, series.Season = &rating, &season
	in = r.Entry("en", series, 1)
	require.Len(t, in.Buttons[0], 3, "series get a season button")
	assert.Equal(t, "Rating: 4", in.Buttons[0][0].Text)
	assert.Equal(t, "Planning", in.Buttons[0][1].Text)
	assert.Equal(t, "Season: 3", in.Buttons[0][2].Text)
	assert.Equal(t, "ls_select_season:1:8", in.Buttons[0][2].Data)
}

func TestMutationScreens(t *testing.T) {
	r := newRenderer()
	le := listEntry(8, "Breaking Bad", store.EntitySeries)

	rating := r.RatingChoice("en", le, 2)
	assert.Equal(t, "Rate series <b>Breaking Bad</b>", rating.Text)
	assert.Equal(t, []string{
		"ls_set_rating:2:8:1", "ls_set_rating:2:8:2", "ls_set_rating:2:8:3", "ls_set_rating:2:8:4", "ls_set_rating:2:8:5",
		"ls_back:2:8",
	}, payloads(rating))

	status := r.StatusEdit("ru", le, 1)
	assert.Equal(t, "Укажите статус для сериал <b>Breaking Bad</b>", status.Text)
	assert.Equal(t, "ls_set_status:1:8:completed", status.Buttons[0][0].Data)

	season := r.SeasonChoice("en", le, 1, 1)
	assert.Equal(t, []string{
		"ls_set_season:1:8:1", "noop", "ls_set_season:1:8:2",
		"ls_set_season_clean:1:8", "ls_set_season_confirm:1:8:1",
	}, payloads(season), "minus never goes below 1")

	del := r.DeleteConfirm("en", le, 3)
	assert.Equal(t, "Delete series <b>Breaking Bad</b>?", del.Text)
	assert.Equal(t, []string{"ls_set_delete:3:8:yes", "ls_back:3:8"}, payloads(del))

	for _, in := range []Instruction{rating, status, season, del} {
		assertPayloadsParse(t, in)
	}
}

func TestSimpleScreens(t *testing.T) {
	r := newRenderer()

	lang := r.LanguageChoice("en")
	assert.Equal(t, []string{"lang:en", "lang:ru"}, payloads(lang))
	assert.Equal(t, []string{"lang:ru", "lang:en"}, payloads(r.LanguageChoice("")))

	msg := r.Message("en", i18n.KeyNothingFound, map[string]string{"query": "<script>"}, true)
	assert.Equal(t, "No results for: <b>&lt;script&gt;</b>", msg.Text)
	assert.Equal(t, []string{"Profile", "Reset", "My list"}, msg.Menu)

	assert.Nil(t, r.Message("en", i18n.KeyUnknownCommand, nil, false).Menu)

	ack := r.Ack("en", i18n.KeyFeatureDeveloping, false)
	assert.Equal(t, Acknowledge, ack.Kind)
	assert.Equal(t, "Feature is developing", ack.Notice)
	assert.Empty(t, r.Ack("en", "", false).Notice)

	profile := r.Profile("en", &store.User{Name: "Ann <3"}, 5)
	assert.Equal(t, "Hi <b>Ann &lt;3</b>!\nYou have <b>5</b> items.\n\nChange language or share your list.", profile.Text)
	assert.Equal(t, []string{"pf_lang", "pf_share", "cancel"}, payloads(profile))

	added := r.Added("en", breakingBad(), store.StatusPlanning)
	assert.Equal(t, "<b>Breaking Bad</b> added with <b>Planning</b> status", added.Text)

	st := r.SearchType("ru")
	assert.Equal(t, "Выберите тип поиска:", st.Text)
	assert.Equal(t, []string{"search_global", "search_local", "cancel"}, payloads(st))

	assert.Contains(t, r.Help("en").Text, "/list")
	assert.False(t, Instruction{Kind: NoOp}.HasButtons())
}
