// ABOUTME: Decodes Kinopoisk.dev payloads into provider search pages and canonical entities
// ABOUTME: Keeps Kinopoisk quirks (person professions, seasonsInfo, kp/imdb ratings) out of callers

package kinopoisk

import (
	"strconv"
	"strings"
	"time"

	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

// Rating source names. The IMDb score uses the same name OMDb reports so
// both providers converge on one rating row.
const (
	SourceKinopoisk = "Kinopoisk"
	SourceIMDb      = "Internet Movie Database"
)

// maxPeople caps the director and actor lists
const maxPeople = 5

type searchResponse struct {
	Docs  []searchDoc `json:"docs"`
	Total int         `json:"total"`
	Page  int         `json:"page"`
	Pages int         `json:"pages"`
}

type searchDoc struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	AlternativeName string `json:"alternativeName"`
	EnName          string `json:"enName"`
	Year            int    `json:"year"`
	Type            string `json:"type"`
	IsSeries        bool   `json:"isSeries"`
}

type named struct {
	Name string `json:"name"`
}

type person struct {
	Name         string `json:"name"`
	EnName       string `json:"enName"`
	EnProfession string `json:"enProfession"`
}

type movie struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	EnName       string   `json:"enName"`
	Type         string   `json:"type"`
	IsSeries     bool     `json:"isSeries"`
	Description  string   `json:"description"`
	Year         int      `json:"year"`
	MovieLength  int      `json:"movieLength"`
	SeriesLength int      `json:"seriesLength"`
	Genres       []named  `json:"genres"`
	Countries    []named  `json:"countries"`
	Persons      []person `json:"persons"`
	Poster       struct {
		URL string `json:"url"`
	} `json:"poster"`
	ExternalID struct {
		IMDb string `json:"imdb"`
	} `json:"externalId"`
	ReleaseYears []struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"releaseYears"`
	SeasonsInfo []struct {
		Number int `json:"number"`
	} `json:"seasonsInfo"`
	Rating struct {
		KP   float64 `json:"kp"`
		IMDb float64 `json:"imdb"`
	} `json:"rating"`
}

func titleOf(name, alt, en string) string {
	for _, s := range []string{name, alt, en} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return "No title"
}

func entityType(typ string, isSeries bool) store.EntityType {
	if isSeries {
		return store.EntitySeries
	}
	if t := store.ParseEntityType(typ); t != store.EntityUndefined {
		return t
	}
	return store.EntityMovie
}

func decodeSearch(resp *searchResponse) *provider.SearchPage {
	page := &provider.SearchPage{Total: resp.Total}
	for _, d := range resp.Docs {
		if d.ID == 0 {
			continue
		}
		item := provider.SearchItem{
			ExternalID: strconv.FormatInt(d.ID, 10),
			Title:      titleOf(d.Name, d.AlternativeName, d.EnName),
			Type:       entityType(d.Type, d.IsSeries),
		}
		if d.Year > 0 {
			item.Year = strconv.Itoa(d.Year)
		}
		page.Items = append(page.Items, item)
	}
	return page
}

func names(items []named) []string {
	var out []string
	for _, it := range items {
		if n := strings.TrimSpace(it.Name); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func peopleWith(persons []person, profession string) []string {
	var out []string
	for _, p := range persons {
		if p.EnProfession != profession {
			continue
		}
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = strings.TrimSpace(p.EnName)
		}
		if name == "" {
			continue
		}
		out = append(out, name)
		if len(out) == maxPeople {
			break
		}
	}
	return out
}

func decodeDetail(m *movie) *provider.Detail {
	e := store.Entity{
		KPID:        strconv.FormatInt(m.ID, 10),
		Title:       titleOf(m.Name, "", m.EnName),
		Type:        entityType(m.Type, m.IsSeries),
		Description: provider.CleanText(m.Description),
		PosterURL:   strings.TrimSpace(m.Poster.URL),
		Genres:      names(m.Genres),
		Countries:   names(m.Countries),
		Authors:     peopleWith(m.Persons, "director"),
		Actors:      peopleWith(m.Persons, "actor"),
		YearStart:   m.Year,
	}
	if !provider.Absent(m.ExternalID.IMDb) {
		e.SourceID = strings.TrimSpace(m.ExternalID.IMDb)
	}

	e.Duration = m.MovieLength
	if e.Duration == 0 {
		e.Duration = m.SeriesLength
	}

	// Kinopoisk only knows the year; pin the release date to January 1st
	if m.Year > 0 {
		d := time.Date(m.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
		e.ReleaseDate = &d
	}
	for _, ry := range m.ReleaseYears {
		if ry.End > e.YearEnd {
			e.YearEnd = ry.End
		}
	}
	for _, s := range m.SeasonsInfo {
		if s.Number > e.TotalSeasons {
			e.TotalSeasons = s.Number
		}
	}

	d := &provider.Detail{Entity: e}
	if m.Rating.KP > 0 {
		d.Ratings = append(d.Ratings, store.Rating{Source: SourceKinopoisk, Value: m.Rating.KP, MaxValue: 10})
	}
	if m.Rating.IMDb > 0 {
		d.Ratings = append(d.Ratings, store.Rating{Source: SourceIMDb, Value: m.Rating.IMDb, MaxValue: 10})
	}
	return d
}
