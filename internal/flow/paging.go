// ABOUTME: Pure decision helpers: pagination math, season stepping, provider choice, deep-link params
// ABOUTME: None of these touch the session; handlers compose them

package flow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/vistly/vistly-bot/internal/provider"
)

// PageSize is the number of items per result or list page
const PageSize = provider.PageSize

// StartParamPrefix prefixes entity ids in /start deep-link parameters
const StartParamPrefix = "entity_"

var cyrillic = regexp.MustCompile(`[а-яА-ЯёЁ]`)

// SelectProvider picks Kinopoisk for queries containing Cyrillic letters and
// OMDb otherwise. It looks at script only, so a transliterated Russian title
// still goes to OMDb.
func SelectProvider(query string) provider.Kind {
	if cyrillic.MatchString(query) {
		return provider.Kinopoisk
	}
	return provider.OMDb
}

// TotalPages returns ceil(total/PageSize)
func TotalPages(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + PageSize - 1) / PageSize
}

// ClampPage forces page into [1, totalPages]. With no pages it returns 1.
func ClampPage(page, totalPages int) int {
	if totalPages < 1 || page < 1 {
		return 1
	}
	return min(page, totalPages)
}

// PageControls reports whether previous and next buttons should be offered
func PageControls(page, totalPages int) (prev, next bool) {
	return page > 1, page < totalPages
}

// StepSeason moves a season counter by delta without going below 1
func StepSeason(current, delta int) int {
	return max(current+delta, 1)
}

// ParseStartParam extracts the entity id from an "entity_<id>" parameter
func ParseStartParam(param string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(param), StartParamPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// StartParam formats the deep-link parameter for an entity
func StartParam(entityID int64) string {
	return StartParamPrefix + strconv.FormatInt(entityID, 10)
}
