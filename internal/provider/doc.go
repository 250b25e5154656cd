// Package provider defines the contract for external movie and TV metadata
// sources and the plumbing their clients share.
//
// Two implementations live in subpackages:
//
//   - kinopoisk: api.kinopoisk.dev, used for queries containing Cyrillic
//   - omdb: www.omdbapi.com, used for everything else
//
// Each client owns a small decoder that maps its payload onto store.Entity
// and store.Rating. Provider quirks (rating scales, "N/A" markers, which
// external id is native) stay inside those decoders.
//
// All clients issue requests through a Transport, which rate-limits with
// golang.org/x/time/rate, retries 429 and 5xx responses with exponential
// backoff, and converts failures into ErrUnavailable or ErrNotFound.
package provider
