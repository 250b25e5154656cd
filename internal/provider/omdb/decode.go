// ABOUTME: Decodes OMDb payloads into provider search pages and canonical entities
// ABOUTME: Handles "N/A" markers, en-dash year ranges, string counters and mixed rating scales

package omdb

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

// releasedLayout is the format of the Released field, e.g. "16 Jul 2010"
const releasedLayout = "02 Jan 2006"

// notFoundError is the Error text OMDb sends for an empty search
const notFoundError = "Movie not found!"

type searchResponse struct {
	Search       []searchDoc `json:"Search"`
	TotalResults string      `json:"totalResults"`
	Response     string      `json:"Response"`
	Error        string      `json:"Error"`
}

type searchDoc struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

type ratingDoc struct {
	Source string `json:"Source"`
	Value  string `json:"Value"`
}

type title struct {
	Title        string      `json:"Title"`
	Year         string      `json:"Year"`
	Released     string      `json:"Released"`
	Runtime      string      `json:"Runtime"`
	Genre        string      `json:"Genre"`
	Director     string      `json:"Director"`
	Actors       string      `json:"Actors"`
	Plot         string      `json:"Plot"`
	Country      string      `json:"Country"`
	Poster       string      `json:"Poster"`
	Ratings      []ratingDoc `json:"Ratings"`
	IMDbID       string      `json:"imdbID"`
	Type         string      `json:"Type"`
	TotalSeasons string      `json:"totalSeasons"`
	Response     string      `json:"Response"`
	Error        string      `json:"Error"`
}

func succeeded(response string) bool {
	return strings.EqualFold(response, "True")
}

func decodeSearch(resp *searchResponse) (*provider.SearchPage, error) {
	if !succeeded(resp.Response) {
		if resp.Error == "" || strings.EqualFold(resp.Error, notFoundError) {
			return &provider.SearchPage{}, nil
		}
		return nil, fmt.Errorf("%w: omdb: %s", provider.ErrUnavailable, resp.Error)
	}

	total, _ := strconv.Atoi(strings.TrimSpace(resp.TotalResults))
	page := &provider.SearchPage{Total: total}
	for _, d := range resp.Search {
		if provider.Absent(d.IMDbID) {
			continue
		}
		item := provider.SearchItem{
			ExternalID: d.IMDbID,
			Title:      strings.TrimSpace(d.Title),
			Type:       store.ParseEntityType(d.Type),
		}
		if item.Title == "" {
			item.Title = "No title"
		}
		if !provider.Absent(d.Year) {
			item.Year = d.Year
		}
		page.Items = append(page.Items, item)
	}
	return page, nil
}

// parseYears splits "2008–2013" or "2008–" into start and end
func parseYears(s string) (int, int) {
	if provider.Absent(s) {
		return 0, 0
	}
	parts := strings.SplitN(s, "–", 2)
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0
	}
	end := 0
	if len(parts) > 1 {
		end, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return start, end
}

// parseRuntime reads the minute count from "148 min"
func parseRuntime(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return n
}

func parseReleased(s string) *time.Time {
	if provider.Absent(s) {
		return nil
	}
	t, err := time.Parse(releasedLayout, strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &t
}

// parseRating reads "8.8/10", "87%" or a bare number
func parseRating(source, value string) (store.Rating, bool) {
	value = strings.TrimSpace(value)
	if provider.Absent(value) || strings.TrimSpace(source) == "" {
		return store.Rating{}, false
	}

	r := store.Rating{Source: source, MaxValue: 10}
	switch {
	case strings.Contains(value, "%"):
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(value, "%", "")), 64)
		if err != nil {
			return store.Rating{}, false
		}
		r.Value, r.MaxValue, r.Percent = v, 100, true
	case strings.Contains(value, "/"):
		left, right, _ := strings.Cut(value, "/")
		v, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
		if err != nil {
			return store.Rating{}, false
		}
		scale, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
		if err != nil || scale <= 0 {
			return store.Rating{}, false
		}
		r.Value, r.MaxValue = v, scale
	default:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return store.Rating{}, false
		}
		r.Value = v
	}
	return r, true
}

func orEmpty(s string) string {
	if provider.Absent(s) {
		return ""
	}
	return strings.TrimSpace(s)
}

func decodeDetail(t *title) (*provider.Detail, error) {
	if !succeeded(t.Response) || provider.Absent(t.IMDbID) {
		msg := t.Error
		if msg == "" {
			msg = "no imdbID in response"
		}
		return nil, fmt.Errorf("%w: omdb: %s", provider.ErrNotFound, msg)
	}

	e := store.Entity{
		SourceID:    t.IMDbID,
		Title:       orEmpty(t.Title),
		Type:        store.ParseEntityType(t.Type),
		Description: provider.CleanText(orEmpty(t.Plot)),
		PosterURL:   orEmpty(t.Poster),
		Duration:    parseRuntime(orEmpty(t.Runtime)),
		Genres:      provider.SplitList(t.Genre),
		Authors:     provider.SplitList(t.Director),
		Actors:      provider.SplitList(t.Actors),
		Countries:   provider.SplitList(t.Country),
		ReleaseDate: parseReleased(t.Released),
	}
	if e.Title == "" {
		e.Title = "No title"
	}
	e.YearStart, e.YearEnd = parseYears(t.Year)
	if n, err := strconv.Atoi(orEmpty(t.TotalSeasons)); err == nil && n > 0 {
		e.TotalSeasons = n
	}

	d := &provider.Detail{Entity: e}
	for _, rd := range t.Ratings {
		if r, ok := parseRating(rd.Source, rd.Value); ok {
			d.Ratings = append(d.Ratings, r)
		}
	}
	return d, nil
}
