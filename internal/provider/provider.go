// ABOUTME: Provider contract shared by the Kinopoisk and OMDb metadata clients
// ABOUTME: Normalizes search hits and detail payloads into store types behind two sentinel errors

package provider

import (
	"context"
	"errors"

	"github.com/vistly/vistly-bot/internal/store"
)

// ErrUnavailable covers network failures, non-200 responses and
// undecodable bodies. The caller should treat it as a soft failure.
var ErrUnavailable = errors.New("provider unavailable")

// ErrNotFound is returned when the provider has no record for an id
var ErrNotFound = errors.New("provider record not found")

// Kind identifies a metadata provider
type Kind string

const (
	// Kinopoisk handles Cyrillic queries natively
	Kinopoisk Kind = "kinopoisk"
	// OMDb is the default for everything else
	OMDb Kind = "omdb"
)

// Valid reports whether k names a known provider
func (k Kind) Valid() bool {
	return k == Kinopoisk || k == OMDb
}

// PageSize is the number of results every provider returns per page
const PageSize = 10

// SearchItem is one provider search hit
type SearchItem struct {
	ExternalID string           `json:"id"`
	Title      string           `json:"title"`
	Year       string           `json:"year,omitempty"`
	Type       store.EntityType `json:"type"`
}

// SearchPage is one page of provider search results
type SearchPage struct {
	Items []SearchItem
	Total int
}

// Detail is a provider detail payload mapped onto the canonical entity.
// Ratings without a numeric value are already dropped.
type Detail struct {
	Entity  store.Entity
	Ratings []store.Rating
}

// Provider searches a metadata source and fetches single records
type Provider interface {
	Kind() Kind
	Search(ctx context.Context, query string, page int) (*SearchPage, error)
	FetchDetail(ctx context.Context, externalID string) (*Detail, error)
}

// Set maps provider kinds to clients
type Set map[Kind]Provider

// Get returns the provider for kind, or ErrUnavailable when none is configured
func (s Set) Get(kind Kind) (Provider, error) {
	p, ok := s[kind]
	if !ok || p == nil {
		return nil, errors.Join(ErrUnavailable, errors.New("provider "+string(kind)+" not configured"))
	}
	return p, nil
}
