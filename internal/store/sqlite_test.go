// ABOUTME: Tests for SQLite store implementation plus a contract suite shared by every Store
// ABOUTME: Covers users, entity convergence, list paging and filtering, patches and sessions

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestNewSQLiteStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestNewSQLiteStore_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	u, err := store.GetOrCreateUser(ctx, "telegram", "42", "neo", "Thomas")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}
	store.Close()

	store, err = NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("reopening store failed: %v", err)
	}
	defer store.Close()

	got, err := store.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser after reopen failed: %v", err)
	}
	if got.ExternalID != "42" {
		t.Errorf("ExternalID = %q, want %q", got.ExternalID, "42")
	}
}

func TestSQLiteMigration_BackfillsFoldedTitles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// Build a database from before the title_folded column existed
	legacy, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening legacy db: %v", err)
	}
	now := formatTime(time.Now())
	_, err = legacy.Exec(`
		CREATE TABLE entities (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id     TEXT UNIQUE,
			kp_id         TEXT UNIQUE,
			title         TEXT NOT NULL,
			type          TEXT NOT NULL DEFAULT 'undefined',
			description   TEXT NOT NULL DEFAULT '',
			poster_url    TEXT NOT NULL DEFAULT '',
			duration      INTEGER NOT NULL DEFAULT 0,
			genres        TEXT NOT NULL DEFAULT '[]',
			authors       TEXT NOT NULL DEFAULT '[]',
			actors        TEXT NOT NULL DEFAULT '[]',
			countries     TEXT NOT NULL DEFAULT '[]',
			release_date  TEXT,
			year_start    INTEGER NOT NULL DEFAULT 0,
			year_end      INTEGER NOT NULL DEFAULT 0,
			total_seasons INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL,
			updated_at    TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating legacy schema: %v", err)
	}
	_, err = legacy.Exec(`INSERT INTO entities (kp_id, title, created_at, updated_at) VALUES ('41519', 'Брат', ?, ?)`, now, now)
	if err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}
	legacy.Close()

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()

	found, err := store.SearchEntities(context.Background(), "БРАТ", 10)
	if err != nil {
		t.Fatalf("SearchEntities failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 entity after backfill, got %d", len(found))
	}
	if found[0].KPID != "41519" {
		t.Errorf("KPID = %q, want 41519", found[0].KPID)
	}
}

func TestSQLiteStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return newTestStore(t)
	})
}

// runStoreContract exercises behavior every Store implementation must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("GetOrCreateUser", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		first, err := s.GetOrCreateUser(ctx, "telegram", "100", "neo", "Thomas")
		if err != nil {
			t.Fatalf("GetOrCreateUser failed: %v", err)
		}
		if first.Language != "" {
			t.Errorf("new user Language = %q, want empty", first.Language)
		}

		again, err := s.GetOrCreateUser(ctx, "telegram", "100", "neo_2", "Thomas A.")
		if err != nil {
			t.Fatalf("second GetOrCreateUser failed: %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("ID changed: got %d, want %d", again.ID, first.ID)
		}
		if again.Username != "neo_2" || again.Name != "Thomas A." {
			t.Errorf("profile not refreshed: %q / %q", again.Username, again.Name)
		}

		other, err := s.GetOrCreateUser(ctx, "matrix", "100", "", "")
		if err != nil {
			t.Fatalf("GetOrCreateUser on another frontend failed: %v", err)
		}
		if other.ID == first.ID {
			t.Error("same external id on another frontend should be a different user")
		}
	})

	t.Run("SetUserLanguage", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		if err := s.SetUserLanguage(ctx, u.ID, "ru"); err != nil {
			t.Fatalf("SetUserLanguage failed: %v", err)
		}
		got, err := s.GetUser(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if got.Language != "ru" {
			t.Errorf("Language = %q, want ru", got.Language)
		}

		if err := s.SetUserLanguage(ctx, 9999, "en"); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetUserLanguage on missing user: got %v, want ErrNotFound", err)
		}
		if _, err := s.GetUser(ctx, 9999); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUser on missing user: got %v, want ErrNotFound", err)
		}
	})

	t.Run("UpsertEntity round trip", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		release := time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC)
		e := &Entity{
			SourceID:    "tt1375666",
			Title:       "Inception",
			Type:        EntityMovie,
			Description: "A thief who steals corporate secrets.",
			PosterURL:   "https://example.com/inception.jpg",
			Duration:    148,
			Genres:      []string{"Action", "Sci-Fi"},
			Authors:     []string{"Christopher Nolan"},
			Actors:      []string{"Leonardo DiCaprio", "Joseph Gordon-Levitt"},
			Countries:   []string{"USA", "UK"},
			ReleaseDate: &release,
			YearStart:   2010,
		}
		id, err := s.UpsertEntity(ctx, e)
		if err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
		if id == 0 || e.ID != id {
			t.Fatalf("UpsertEntity id = %d, entity.ID = %d", id, e.ID)
		}

		if err := s.UpsertRating(ctx, id, Rating{Source: "Internet Movie Database", Value: 8.8, MaxValue: 10}); err != nil {
			t.Fatalf("UpsertRating failed: %v", err)
		}
		if err := s.UpsertRating(ctx, id, Rating{Source: "Rotten Tomatoes", Value: 87, MaxValue: 100, Percent: true}); err != nil {
			t.Fatalf("UpsertRating failed: %v", err)
		}
		// Re-rating the same source replaces the score
		if err := s.UpsertRating(ctx, id, Rating{Source: "Internet Movie Database", Value: 8.7, MaxValue: 10}); err != nil {
			t.Fatalf("UpsertRating update failed: %v", err)
		}

		got, err := s.GetEntity(ctx, id)
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if got.Title != "Inception" || got.Type != EntityMovie || got.Duration != 148 {
			t.Errorf("unexpected entity: %+v", got)
		}
		if len(got.Actors) != 2 || got.Actors[1] != "Joseph Gordon-Levitt" {
			t.Errorf("Actors = %v", got.Actors)
		}
		if got.ReleaseDate == nil || !got.ReleaseDate.Equal(release) {
			t.Errorf("ReleaseDate = %v, want %v", got.ReleaseDate, release)
		}
		if len(got.Ratings) != 2 {
			t.Fatalf("expected 2 ratings, got %d", len(got.Ratings))
		}
		if got.Ratings[0].Source != "Internet Movie Database" || got.Ratings[0].Value != 8.7 {
			t.Errorf("first rating = %+v", got.Ratings[0])
		}
		if !got.Ratings[1].Percent {
			t.Error("Rotten Tomatoes rating should be a percentage")
		}

		if err := s.UpsertRating(ctx, 9999, Rating{Source: "x", Value: 1, MaxValue: 10}); !errors.Is(err, ErrNotFound) {
			t.Errorf("UpsertRating on missing entity: got %v, want ErrNotFound", err)
		}
	})

	t.Run("UpsertEntity requires an external id", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		if _, err := s.UpsertEntity(context.Background(), &Entity{Title: "Nameless"}); err == nil {
			t.Error("expected error for entity without external ids")
		}
	})

	t.Run("UpsertEntity converges across providers", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		// Seen first through Kinopoisk, which cross-references the IMDb id
		kp := &Entity{KPID: "447301", SourceID: "tt1375666", Title: "Начало", Type: EntityMovie}
		kpID, err := s.UpsertEntity(ctx, kp)
		if err != nil {
			t.Fatalf("UpsertEntity (kp) failed: %v", err)
		}

		omdb := &Entity{SourceID: "tt1375666", Title: "Inception", Type: EntityMovie}
		omdbID, err := s.UpsertEntity(ctx, omdb)
		if err != nil {
			t.Fatalf("UpsertEntity (omdb) failed: %v", err)
		}
		if omdbID != kpID {
			t.Errorf("expected one row, got ids %d and %d", kpID, omdbID)
		}

		got, err := s.GetEntity(ctx, kpID)
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if got.KPID != "447301" {
			t.Errorf("KPID lost on update: %q", got.KPID)
		}
		if got.Title != "Inception" {
			t.Errorf("Title = %q, want latest write", got.Title)
		}

		// An OMDb-only row later gains its Kinopoisk id
		series := &Entity{SourceID: "tt0903747", Title: "Breaking Bad", Type: EntitySeries}
		seriesID, err := s.UpsertEntity(ctx, series)
		if err != nil {
			t.Fatalf("UpsertEntity (series) failed: %v", err)
		}
		if _, err := s.UpsertEntity(ctx, &Entity{SourceID: "tt0903747", KPID: "404900", Title: "Во все тяжкие", Type: EntitySeries}); err != nil {
			t.Fatalf("UpsertEntity (series kp) failed: %v", err)
		}
		got, err = s.GetEntity(ctx, seriesID)
		if err != nil {
			t.Fatalf("GetEntity failed: %v", err)
		}
		if got.KPID != "404900" {
			t.Errorf("KPID = %q, want adopted 404900", got.KPID)
		}
	})

	t.Run("UpsertListEntry", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		e := mustEntity(t, s, "tt1", "Inception", EntityMovie)

		id, created, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusPlanning)
		if err != nil {
			t.Fatalf("UpsertListEntry failed: %v", err)
		}
		if !created {
			t.Error("first upsert should create")
		}

		again, created, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusCompleted)
		if err != nil {
			t.Fatalf("second UpsertListEntry failed: %v", err)
		}
		if created || again != id {
			t.Errorf("second upsert: id=%d created=%v, want id=%d created=false", again, created, id)
		}

		le, err := s.GetListEntry(ctx, id)
		if err != nil {
			t.Fatalf("GetListEntry failed: %v", err)
		}
		if le.Status != StatusCompleted {
			t.Errorf("Status = %q, want completed", le.Status)
		}
		if le.Entity == nil || le.Entity.Title != "Inception" {
			t.Errorf("entry entity not populated: %+v", le.Entity)
		}
		if le.Rating != nil || le.Season != nil {
			t.Errorf("fresh entry should have no rating or season: %v %v", le.Rating, le.Season)
		}

		if _, _, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusAll); err == nil {
			t.Error("StatusAll must not be storable")
		}
		if _, _, err := s.UpsertListEntry(ctx, u.ID, 9999, StatusPlanning); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing entity: got %v, want ErrNotFound", err)
		}
	})

	t.Run("UpdateListEntry", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		e := mustEntity(t, s, "tt0903747", "Breaking Bad", EntitySeries)
		id, _, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusInProgress)
		if err != nil {
			t.Fatalf("UpsertListEntry failed: %v", err)
		}

		completed := StatusCompleted
		if err := s.UpdateListEntry(ctx, id, EntryPatch{Status: &completed, Rating: intPtr(5), Season: intPtr(3)}); err != nil {
			t.Fatalf("UpdateListEntry failed: %v", err)
		}
		le, err := s.GetListEntry(ctx, id)
		if err != nil {
			t.Fatalf("GetListEntry failed: %v", err)
		}
		if le.Status != StatusCompleted || le.Rating == nil || *le.Rating != 5 || le.Season == nil || *le.Season != 3 {
			t.Errorf("patch not applied: status=%q rating=%v season=%v", le.Status, le.Rating, le.Season)
		}

		if err := s.UpdateListEntry(ctx, id, EntryPatch{ClearSeason: true}); err != nil {
			t.Fatalf("clearing season failed: %v", err)
		}
		le, _ = s.GetListEntry(ctx, id)
		if le.Season != nil {
			t.Errorf("Season = %v, want cleared", *le.Season)
		}
		if le.Rating == nil || *le.Rating != 5 {
			t.Error("clearing season must not touch rating")
		}

		if err := s.UpdateListEntry(ctx, id, EntryPatch{Rating: intPtr(6)}); err == nil {
			t.Error("rating above 5 should be rejected")
		}
		if err := s.UpdateListEntry(ctx, id, EntryPatch{Season: intPtr(0)}); err == nil {
			t.Error("season below 1 should be rejected")
		}
		if err := s.UpdateListEntry(ctx, 9999, EntryPatch{Rating: intPtr(3)}); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing entry: got %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteListEntry", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		e := mustEntity(t, s, "tt1", "Inception", EntityMovie)
		id, _, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusPlanning)
		if err != nil {
			t.Fatalf("UpsertListEntry failed: %v", err)
		}

		if err := s.DeleteListEntry(ctx, id); err != nil {
			t.Fatalf("DeleteListEntry failed: %v", err)
		}
		if _, err := s.GetListEntry(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetListEntry after delete: got %v, want ErrNotFound", err)
		}
		// Second delete of the same entry reports NotFound
		if err := s.DeleteListEntry(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete: got %v, want ErrNotFound", err)
		}
		// The catalog entity survives
		if _, err := s.GetEntity(ctx, e.ID); err != nil {
			t.Errorf("entity should survive entry delete: %v", err)
		}
	})

	t.Run("FindListEntry matches external ids", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		kp := &Entity{KPID: "41519", Title: "Брат", Type: EntityMovie}
		if _, err := s.UpsertEntity(ctx, kp); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
		entryID, _, err := s.UpsertListEntry(ctx, u.ID, kp.ID, StatusPlanning)
		if err != nil {
			t.Fatalf("UpsertListEntry failed: %v", err)
		}

		found, err := s.FindListEntry(ctx, u.ID, &Entity{KPID: "41519"})
		if err != nil {
			t.Fatalf("FindListEntry by kp id failed: %v", err)
		}
		if found.ID != entryID {
			t.Errorf("found entry %d, want %d", found.ID, entryID)
		}

		if _, err := s.FindListEntry(ctx, u.ID, &Entity{SourceID: "tt999"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("unrelated entity: got %v, want ErrNotFound", err)
		}
		other := mustUser(t, s, "2")
		if _, err := s.FindListEntry(ctx, other.ID, kp); !errors.Is(err, ErrNotFound) {
			t.Errorf("other user: got %v, want ErrNotFound", err)
		}
	})

	t.Run("UpsertListEntry is one get-or-create under concurrency", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		e := mustEntity(t, s, "tt1375666", "Inception", EntityMovie)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			ids     = map[int64]bool{}
			created int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id, fresh, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusPlanning)
				if errors.Is(err, ErrConflict) {
					id, fresh, err = s.UpsertListEntry(ctx, u.ID, e.ID, StatusPlanning)
				}
				if err != nil {
					t.Errorf("UpsertListEntry failed: %v", err)
					return
				}
				mu.Lock()
				defer mu.Unlock()
				ids[id] = true
				if fresh {
					created++
				}
			}()
		}
		wg.Wait()

		if len(ids) != 1 || created != 1 {
			t.Errorf("got entry ids %v with %d creations, want one entry created once", ids, created)
		}
		if n, err := s.CountListEntries(ctx, u.ID); err != nil || n != 1 {
			t.Errorf("CountListEntries = %d, %v; want 1", n, err)
		}
	})

	t.Run("UpsertListEntry reuses the entry of a converged title", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		kp := &Entity{KPID: "41519", Title: "Брат", Type: EntityMovie}
		if _, err := s.UpsertEntity(ctx, kp); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
		first, _, err := s.UpsertListEntry(ctx, u.ID, kp.ID, StatusPlanning)
		if err != nil {
			t.Fatalf("UpsertListEntry failed: %v", err)
		}

		both := &Entity{KPID: "41519", SourceID: "tt0118767", Title: "Brother", Type: EntityMovie}
		if _, err := s.UpsertEntity(ctx, both); err != nil {
			t.Fatalf("UpsertEntity failed: %v", err)
		}
		again, created, err := s.UpsertListEntry(ctx, u.ID, both.ID, StatusCompleted)
		if err != nil {
			t.Fatalf("second UpsertListEntry failed: %v", err)
		}
		if again != first || created {
			t.Errorf("got entry %d (created=%v), want existing %d", again, created, first)
		}
		le, err := s.GetListEntry(ctx, first)
		if err != nil {
			t.Fatalf("GetListEntry failed: %v", err)
		}
		if le.Status != StatusCompleted {
			t.Errorf("Status = %q, want completed", le.Status)
		}
	})

	t.Run("QueryListEntries pages newest first", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		var ids []int64
		for i := 0; i < 23; i++ {
			e := mustEntity(t, s, fmt.Sprintf("tt%03d", i), fmt.Sprintf("Movie %02d", i), EntityMovie)
			id, _, err := s.UpsertListEntry(ctx, u.ID, e.ID, StatusPlanning)
			if err != nil {
				t.Fatalf("UpsertListEntry failed: %v", err)
			}
			ids = append(ids, id)
		}

		sizes := []int{10, 10, 3}
		for page, want := range sizes {
			entries, total, err := s.QueryListEntries(ctx, ListQuery{UserID: u.ID, Status: StatusAll, Limit: 10, Offset: page * 10})
			if err != nil {
				t.Fatalf("QueryListEntries page %d failed: %v", page+1, err)
			}
			if total != 23 {
				t.Errorf("total = %d, want 23", total)
			}
			if len(entries) != want {
				t.Errorf("page %d has %d entries, want %d", page+1, len(entries), want)
			}
		}

		first, _, err := s.QueryListEntries(ctx, ListQuery{UserID: u.ID, Limit: 1})
		if err != nil {
			t.Fatalf("QueryListEntries failed: %v", err)
		}
		if len(first) != 1 || first[0].ID != ids[22] {
			t.Errorf("newest entry should come first")
		}
		if first[0].Entity == nil || first[0].Entity.Title != "Movie 22" {
			t.Errorf("entry entity not populated: %+v", first[0].Entity)
		}

		// Touching an old entry moves it to the front
		rating := 4
		if err := s.UpdateListEntry(ctx, ids[0], EntryPatch{Rating: &rating}); err != nil {
			t.Fatalf("UpdateListEntry failed: %v", err)
		}
		first, _, _ = s.QueryListEntries(ctx, ListQuery{UserID: u.ID, Limit: 1})
		if len(first) != 1 || first[0].ID != ids[0] {
			t.Errorf("updated entry should come first")
		}
	})

	t.Run("QueryListEntries filters", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		u := mustUser(t, s, "1")
		add := func(src, title string, status Status) {
			t.Helper()
			e := mustEntity(t, s, src, title, EntityMovie)
			if _, _, err := s.UpsertListEntry(ctx, u.ID, e.ID, status); err != nil {
				t.Fatalf("UpsertListEntry failed: %v", err)
			}
		}
		add("tt1", "Брат", StatusCompleted)
		add("tt2", "Брат 2", StatusPlanning)
		add("tt3", "Inception", StatusCompleted)
		add("tt4", "100% Wolf", StatusPlanning)

		tests := []struct {
			name   string
			filter string
			status Status
			want   int
		}{
			{"all", "", StatusAll, 4},
			{"empty status means all", "", "", 4},
			{"completed", "", StatusCompleted, 2},
			{"cyrillic case-insensitive", "БРАТ", StatusAll, 2},
			{"title and status", "брат", StatusPlanning, 1},
			{"latin case-insensitive", "inCEPtion", StatusAll, 1},
			{"percent is literal", "100%", StatusAll, 1},
			{"underscore is literal", "_", StatusAll, 0},
			{"no match", "matrix", StatusAll, 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				entries, total, err := s.QueryListEntries(ctx, ListQuery{UserID: u.ID, TitleFilter: tt.filter, Status: tt.status, Limit: 10})
				if err != nil {
					t.Fatalf("QueryListEntries failed: %v", err)
				}
				if total != tt.want || len(entries) != tt.want {
					t.Errorf("got total=%d len=%d, want %d", total, len(entries), tt.want)
				}
			})
		}

		n, err := s.CountListEntries(ctx, u.ID)
		if err != nil {
			t.Fatalf("CountListEntries failed: %v", err)
		}
		if n != 4 {
			t.Errorf("CountListEntries = %d, want 4", n)
		}
	})

	t.Run("Sessions", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		if _, err := s.GetSession(ctx, "telegram:1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing session: got %v, want ErrNotFound", err)
		}
		if err := s.SaveSession(ctx, "telegram:1", []byte(`{"state":"a"}`)); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
		if err := s.SaveSession(ctx, "telegram:1", []byte(`{"state":"b"}`)); err != nil {
			t.Fatalf("SaveSession overwrite failed: %v", err)
		}
		got, err := s.GetSession(ctx, "telegram:1")
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if string(got) != `{"state":"b"}` {
			t.Errorf("session = %s", got)
		}
		if err := s.DeleteSession(ctx, "telegram:1"); err != nil {
			t.Fatalf("DeleteSession failed: %v", err)
		}
		if err := s.DeleteSession(ctx, "telegram:1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete: got %v, want ErrNotFound", err)
		}
	})

	t.Run("Stats and ListUsers", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()
		ctx := context.Background()

		a := mustUser(t, s, "1")
		mustUser(t, s, "2")
		e1 := mustEntity(t, s, "tt1", "Inception", EntityMovie)
		e2 := mustEntity(t, s, "tt2", "Heat", EntityMovie)
		if _, _, err := s.UpsertListEntry(ctx, a.ID, e1.ID, StatusPlanning); err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.UpsertListEntry(ctx, a.ID, e2.ID, StatusCompleted); err != nil {
			t.Fatal(err)
		}
		if err := s.SaveSession(ctx, "telegram:1", []byte("{}")); err != nil {
			t.Fatal(err)
		}

		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if st.Users != 2 || st.Entities != 2 || st.Entries != 2 || st.Sessions != 1 {
			t.Errorf("unexpected stats: %+v", st)
		}
		if st.ByStatus[StatusPlanning] != 1 || st.ByStatus[StatusCompleted] != 1 {
			t.Errorf("ByStatus = %v", st.ByStatus)
		}

		users, err := s.ListUsers(ctx, 10)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("ListUsers returned %d users, want 2", len(users))
		}
		if users[0].ID != a.ID || users[0].Entries != 2 {
			t.Errorf("most active user first: got id=%d entries=%d", users[0].ID, users[0].Entries)
		}
	})
}

func mustUser(t *testing.T, s Store, externalID string) *User {
	t.Helper()
	u, err := s.GetOrCreateUser(context.Background(), "telegram", externalID, "user"+externalID, "")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}
	return u
}

func mustEntity(t *testing.T, s Store, sourceID, title string, typ EntityType) *Entity {
	t.Helper()
	e := &Entity{SourceID: sourceID, Title: title, Type: typ}
	if _, err := s.UpsertEntity(context.Background(), e); err != nil {
		t.Fatalf("UpsertEntity failed: %v", err)
	}
	return e
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}

	return store
}
