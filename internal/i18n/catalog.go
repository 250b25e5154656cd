// ABOUTME: Localized string catalog loaded from embedded YAML tables
// ABOUTME: Provides Text lookup with {name} substitution, label helpers and language matching

package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/vistly/vistly-bot/internal/store"
)

// Supported interface languages
const (
	English = "en"
	Russian = "ru"
)

// Fallback is used when a key is missing for the requested language
const Fallback = English

//go:embed locales/*.yaml
var locales embed.FS

// Catalog holds one string table per language
type Catalog struct {
	tables map[string]map[string]string
	langs  []string
}

// Load parses the embedded locale tables
func Load() (*Catalog, error) {
	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("reading locales: %w", err)
	}

	c := &Catalog{tables: make(map[string]map[string]string)}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".yaml" {
			continue
		}
		data, err := locales.ReadFile(path.Join("locales", name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		lang := strings.TrimSuffix(name, ".yaml")
		c.tables[lang] = table
		c.langs = append(c.langs, lang)
	}
	if _, ok := c.tables[Fallback]; !ok {
		return nil, fmt.Errorf("missing %s locale", Fallback)
	}
	sort.Strings(c.langs)
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the process-wide catalog. The tables are compiled into the
// binary, so a parse failure is a build defect and panics.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load()
		if err != nil {
			panic(fmt.Sprintf("i18n: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Languages returns the loaded language codes in sorted order
func (c *Catalog) Languages() []string {
	return append([]string(nil), c.langs...)
}

// Supports reports whether lang has its own table
func (c *Catalog) Supports(lang string) bool {
	_, ok := c.tables[lang]
	return ok
}

// Text returns the string for key in lang with {name} placeholders replaced
// from params. A key missing in lang falls back to English, then to the key.
func (c *Catalog) Text(key, lang string, params map[string]string) string {
	s, ok := c.tables[lang][key]
	if !ok {
		s, ok = c.tables[Fallback][key]
	}
	if !ok {
		s = key
	}
	if len(params) == 0 {
		return s
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Status returns the display label for a list status or the "all" filter
func (c *Catalog) Status(s store.Status, lang string) string {
	return c.Text(string(s), lang, nil)
}

// Type returns the display label for an entity type
func (c *Catalog) Type(t store.EntityType, lang string) string {
	if t == "" {
		t = store.EntityUndefined
	}
	return c.Text(string(t), lang, nil)
}

// Command is a main-menu action reachable by a reply-keyboard label
type Command string

const (
	CommandRestart Command = "restart"
	CommandList    Command = "list"
	CommandProfile Command = "profile"
)

// MenuCommands lists the reply-keyboard commands in display order
var MenuCommands = []Command{CommandProfile, CommandRestart, CommandList}

// Menu returns the localized reply-keyboard labels for lang
func (c *Catalog) Menu(lang string) []string {
	labels := make([]string, len(MenuCommands))
	for i, cmd := range MenuCommands {
		labels[i] = c.Text(string(cmd), lang, nil)
	}
	return labels
}

// MenuCommand maps a menu label in any loaded language back to its command.
// Menu buttons send their label as plain text, and the user may have switched
// language since the keyboard was drawn.
func (c *Catalog) MenuCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	for _, cmd := range MenuCommands {
		for _, lang := range c.langs {
			if label, ok := c.tables[lang][string(cmd)]; ok && label == text {
				return cmd, true
			}
		}
	}
	return "", false
}

var matcher = language.NewMatcher([]language.Tag{language.English, language.Russian})

// Match picks the closest supported language for a client language code
// such as Telegram's "ru" or "en-US". Unknown or empty codes give English.
func Match(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return English
	}
	tag, err := language.Parse(code)
	if err != nil {
		return English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return English
	}
	if idx == 1 {
		return Russian
	}
	return English
}

// Normalize returns lang when it has a table, otherwise English
func (c *Catalog) Normalize(lang string) string {
	if c.Supports(lang) {
		return lang
	}
	return English
}
