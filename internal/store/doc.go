// Package store provides persistent storage for vistly-bot.
//
// # Architecture
//
// A single Store interface covers everything the bot persists:
//
//   - Users: chat identities keyed by (frontend, external id) with a language
//   - Catalog: provider-independent entities and their per-source ratings
//   - Watch list: one entry per (user, entity) with status, rating and season
//   - Sessions: opaque conversation blobs owned by the bot engine
//
// SQLiteStore and PostgresStore implement the interface for production.
// MockStore keeps everything in maps for unit tests.
//
// # Entity Identity
//
// An entity carries up to two external ids: SourceID (the IMDb id) and KPID
// (the Kinopoisk id). UpsertEntity matches an existing row by either one, so
// a title found through both providers converges to a single row. A missing
// id is adopted only when no other row already holds it.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode and foreign keys:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Title filters compare against a Go case-folded column because SQLite's
// lower() only folds ASCII.
//
// # Error Handling
//
//   - ErrNotFound: requested row does not exist
//   - ErrConflict: a get-or-create raced with another writer; retry once
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore with a t.TempDir()
// path for integration tests. Postgres tests run only when
// VISTLY_TEST_POSTGRES_DSN is set.
package store
