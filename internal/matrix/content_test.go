// ABOUTME: Tests for Matrix content conversion
// ABOUTME: Covers option numbering, plain and formatted bodies and number-to-press mapping

package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix/event"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/render"
)

var resultsScreen = render.Instruction{
	Kind: render.ShowTextWithButtons,
	Text: "Found <b>37</b> results for Tom &amp; Jerry",
	Buttons: [][]render.Button{
		{{Text: "Inception (2010)", Data: "gs_select:1:tt1375666"}},
		{{Text: "« 1", Data: "gs_page:1"}, {Text: "1/4", Data: "noop"}, {Text: "2 »", Data: "gs_page:2"}},
		{{Text: "View in bot", URL: "https://t.me/vistly_bot?start=entity_1"}},
	},
}

func TestMessageNumbersOptions(t *testing.T) {
	content, opts := message(resultsScreen)

	assert.Equal(t, options{1: "gs_select:1:tt1375666", 2: "gs_page:1", 3: "gs_page:2"}, opts)
	assert.Equal(t, event.MsgText, content.MsgType)
	assert.Equal(t, event.FormatHTML, content.Format)
	assert.Equal(t,
		"Found 37 results for Tom & Jerry\n\n"+
			"1. Inception (2010)\n2. « 1\n1/4\n3. 2 »\nView in bot: https://t.me/vistly_bot?start=entity_1",
		content.Body)
	assert.Contains(t, content.FormattedBody, "Found <b>37</b> results for Tom &amp; Jerry")
	assert.Contains(t, content.FormattedBody, "<b>1.</b> Inception (2010)")
	assert.Contains(t, content.FormattedBody, "<i>1/4</i>")
	assert.Contains(t, content.FormattedBody, `<a href="https://t.me/vistly_bot?start=entity_1">View in bot</a>`)
}

func TestMessageMenu(t *testing.T) {
	content, opts := message(render.Instruction{
		Kind: render.ShowTextWithButtons,
		Text: "Added",
		Menu: []string{"Profile", "Reset", "My list"},
	})
	assert.Empty(t, opts)
	assert.Equal(t, "Added\n\nProfile · Reset · My list", content.Body)
	assert.Contains(t, content.FormattedBody, "<i>Profile · Reset · My list</i>")
}

func TestPlainTextKeepsLines(t *testing.T) {
	caption := "<code>Brother (1997)</code> - Movie\n<blockquote>Rating: KP 8.3</blockquote>"
	assert.Equal(t, "Brother (1997) - Movie\nRating: KP 8.3", PlainText(caption))
}

func TestFormattedTextDropsUnknownTags(t *testing.T) {
	got := FormattedText("<b>ok</b><script>alert(1)</script>\n<a href=\"javascript:x\">bad</a>")
	assert.Equal(t, "<b>ok</b><br>bad", got)
}

func TestToEvent(t *testing.T) {
	current := options{1: "gs_select:1:tt1", 2: "gs_page:2"}

	assert.Equal(t, flow.ButtonPress{Data: "gs_page:2"}, toEvent(" 2 ", current))
	assert.Equal(t, flow.Text{Body: "7"}, toEvent("7", current), "unknown numbers are text")
	assert.Equal(t, flow.Text{Body: "1917"}, toEvent("1917", nil))
	assert.Equal(t, flow.Text{Body: "Brother"}, toEvent("Brother", current))
	assert.Equal(t, flow.Text{Body: ""}, toEvent("", current))
}

func TestNotice(t *testing.T) {
	n := notice("<b>In development</b>")
	require.NotNil(t, n)
	assert.Equal(t, event.MsgNotice, n.MsgType)
	assert.Equal(t, "In development", n.Body)
}
