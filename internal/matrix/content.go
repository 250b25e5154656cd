// ABOUTME: Converts render Instructions into Matrix message content with numbered options
// ABOUTME: Derives plain bodies from the HTML reply text with bluemonday

package matrix

import (
	"html"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"maunium.net/go/mautrix/event"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/render"
)

var (
	// plainPolicy drops every tag, leaving escaped text
	plainPolicy = bluemonday.StrictPolicy()

	// formattedPolicy keeps the subset of HTML the renderer emits that Matrix
	// clients display
	formattedPolicy = newFormattedPolicy()
)

func newFormattedPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "code", "pre", "blockquote", "br")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "http")
	return p
}

// options maps option numbers to button payloads
type options map[int]string

// layout flattens the button rows. Buttons with a payload get a number;
// link buttons are listed as links and "noop" labels as plain lines.
func layout(rows [][]render.Button) ([]string, []string, options) {
	var plain, formatted []string
	opts := options{}
	n := 0
	for _, row := range rows {
		for _, b := range row {
			label := html.EscapeString(b.Text)
			switch {
			case b.URL != "":
				plain = append(plain, b.Text+": "+b.URL)
				formatted = append(formatted, `<a href="`+html.EscapeString(b.URL)+`">`+label+`</a>`)
			case b.Data == "" || b.Data == string(flow.ActNoop):
				plain = append(plain, b.Text)
				formatted = append(formatted, "<i>"+label+"</i>")
			default:
				n++
				opts[n] = b.Data
				num := strconv.Itoa(n)
				plain = append(plain, num+". "+b.Text)
				formatted = append(formatted, "<b>"+num+".</b> "+label)
			}
		}
	}
	return plain, formatted, opts
}

// PlainText strips the reply HTML to text, keeping line breaks
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(s)))
}

// FormattedText converts reply HTML to a Matrix formatted body
func FormattedText(s string) string {
	return strings.ReplaceAll(formattedPolicy.Sanitize(s), "\n", "<br>")
}

// message builds the text event for in and the options it offers
func message(in render.Instruction) (*event.MessageEventContent, options) {
	plain := []string{PlainText(in.Text)}
	formatted := []string{FormattedText(in.Text)}

	p, f, opts := layout(in.Buttons)
	if len(p) > 0 {
		plain = append(plain, strings.Join(p, "\n"))
		formatted = append(formatted, strings.Join(f, "<br>"))
	}
	if len(in.Menu) > 0 {
		plain = append(plain, strings.Join(in.Menu, " · "))
		escaped := make([]string, len(in.Menu))
		for i, m := range in.Menu {
			escaped[i] = html.EscapeString(m)
		}
		formatted = append(formatted, "<i>"+strings.Join(escaped, " · ")+"</i>")
	}

	return &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          strings.Join(plain, "\n\n"),
		Format:        event.FormatHTML,
		FormattedBody: strings.Join(formatted, "<br><br>"),
	}, opts
}

func notice(text string) *event.MessageEventContent {
	return &event.MessageEventContent{MsgType: event.MsgNotice, Body: PlainText(text)}
}

// toEvent maps a message body onto a machine event. A bare number that
// names a current option presses that button.
func toEvent(body string, current options) flow.Event {
	trimmed := strings.TrimSpace(body)
	if n, err := strconv.Atoi(trimmed); err == nil {
		if data, ok := current[n]; ok {
			return flow.ButtonPress{Data: data}
		}
	}
	return flow.Text{Body: trimmed}
}
