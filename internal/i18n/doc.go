// Package i18n holds the bot's interface strings and language helpers.
//
// String tables live in locales/<lang>.yaml and are embedded at build time.
// Placeholders use {name} syntax:
//
//	c := i18n.Default()
//	c.Text("found_results", "en", map[string]string{"total_results": "37", "query": "Inception"})
//
// Lookups fall back to English and then to the key itself, so a missing
// translation degrades to readable output instead of an empty message.
//
// Match maps a client language code onto a supported language using
// golang.org/x/text/language. Codes with no usable match give English.
package i18n
