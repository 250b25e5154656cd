// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user, catalog, watch-list and session persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Single writer keeps get-or-create transactions from tripping SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			frontend    TEXT NOT NULL,
			external_id TEXT NOT NULL,
			username    TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT '',
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL,

			UNIQUE (frontend, external_id)
		);

		CREATE TABLE IF NOT EXISTS entities (
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
		);

		CREATE TABLE IF NOT EXISTS ratings (
			entity_id INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			source    TEXT NOT NULL,
			value     REAL NOT NULL,
			max_value REAL NOT NULL,
			percent   INTEGER NOT NULL DEFAULT 0,

			PRIMARY KEY (entity_id, source)
		);

		CREATE TABLE IF NOT EXISTS list_entries (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id        INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			entity_id      INTEGER NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			status         TEXT NOT NULL,
			user_rating    INTEGER,
			current_season INTEGER,
			comment        TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			updated_at     TEXT NOT NULL,

			UNIQUE (user_id, entity_id),
			CHECK (status IN ('in_progress', 'completed', 'planning')),
			CHECK (user_rating IS NULL OR user_rating BETWEEN 1 AND 5),
			CHECK (current_season IS NULL OR current_season >= 1)
		);

		CREATE INDEX IF NOT EXISTS idx_list_entries_user_updated
			ON list_entries(user_id, updated_at DESC);

		CREATE TABLE IF NOT EXISTS sessions (
			conversation_key TEXT PRIMARY KEY,
			state            BLOB NOT NULL,
			updated_at       TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// runMigrations applies incremental schema changes to existing databases
func (s *SQLiteStore) runMigrations() error {
	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pragma_table_info('entities') WHERE name = 'title_folded'`).Scan(&exists)
	if err == nil {
		return nil
	}

	if _, err := s.db.Exec(`ALTER TABLE entities ADD COLUMN title_folded TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("adding title_folded column to entities: %w", err)
	}

	// Backfill folded titles in Go; SQLite lower() is ASCII-only
	rows, err := s.db.Query(`SELECT id, title FROM entities`)
	if err != nil {
		return fmt.Errorf("reading titles for backfill: %w", err)
	}
	folded := make(map[int64]string)
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			rows.Close()
			return fmt.Errorf("scanning title for backfill: %w", err)
		}
		folded[id] = FoldTitle(title)
	}
	rows.Close()

	for id, title := range folded {
		if _, err := s.db.Exec(`UPDATE entities SET title_folded = ? WHERE id = ?`, title, id); err != nil {
			return fmt.Errorf("backfilling title_folded: %w", err)
		}
	}

	s.logger.Info("applied migration", "column", "title_folded", "table", "entities", "rows", len(folded))
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUniqueViolation checks if the error is a SQLite UNIQUE constraint violation
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

// isForeignKeyViolation checks if the error references a missing parent row
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// --- users ---

// GetOrCreateUser returns the user for a frontend identity, creating it on
// first contact. Username and name are refreshed when they change.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, frontend, externalID, username, name string) (*User, error) {
	user, err := s.getUserByExternalID(ctx, frontend, externalID)
	if err == nil {
		if user.Username != username || user.Name != name {
			now := time.Now()
			_, err := s.db.ExecContext(ctx,
				`UPDATE users SET username = ?, name = ?, updated_at = ? WHERE id = ?`,
				username, name, formatTime(now), user.ID)
			if err != nil {
				return nil, fmt.Errorf("refreshing user profile: %w", err)
			}
			user.Username, user.Name, user.UpdatedAt = username, name, now
		}
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (frontend, external_id, username, name, language, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, ?)
	`, frontend, externalID, username, name, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			// Another turn created the user first
			return s.getUserByExternalID(ctx, frontend, externalID)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "frontend", frontend, "external_id", externalID)
	return s.getUserByExternalID(ctx, frontend, externalID)
}

const userColumns = `id, frontend, external_id, username, name, language, created_at, updated_at`

func scanUser(row rowScanner) (*User, error) {
	var u User
	var createdAt, updatedAt string
	if err := row.Scan(&u.ID, &u.Frontend, &u.ExternalID, &u.Username, &u.Name, &u.Language, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) getUserByExternalID(ctx context.Context, frontend, externalID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE frontend = ? AND external_id = ?`,
		frontend, externalID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUser retrieves a user by ID.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// SetUserLanguage stores the user's chosen interface language
func (s *SQLiteStore) SetUserLanguage(ctx context.Context, userID int64, language string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET language = ?, updated_at = ? WHERE id = ?`,
		language, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("updating user language: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns users with their entry counts, most recently active first
func (s *SQLiteStore) ListUsers(ctx context.Context, limit int) ([]*UserSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.frontend, u.external_id, u.username, u.name, u.language, u.created_at, u.updated_at,
		       COUNT(le.id), COALESCE(MAX(le.updated_at), u.updated_at) AS last_active
		FROM users u
		LEFT JOIN list_entries le ON le.user_id = u.id
		GROUP BY u.id
		ORDER BY last_active DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*UserSummary
	for rows.Next() {
		var us UserSummary
		var createdAt, updatedAt, lastActive string
		if err := rows.Scan(&us.ID, &us.Frontend, &us.ExternalID, &us.Username, &us.Name, &us.Language,
			&createdAt, &updatedAt, &us.Entries, &lastActive); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		us.CreatedAt, _ = parseTime(createdAt)
		us.UpdatedAt, _ = parseTime(updatedAt)
		us.LastActive, _ = parseTime(lastActive)
		users = append(users, &us)
	}
	return users, rows.Err()
}

// --- catalog ---

// UpsertEntity inserts or updates an entity, matching existing rows by
// either external id. An entity first seen through one provider picks up
// the other provider's id when it is later fetched there.
func (s *SQLiteStore) UpsertEntity(ctx context.Context, entity *Entity) (int64, error) {
	if entity.SourceID == "" && entity.KPID == "" {
		return 0, fmt.Errorf("upserting entity %q: no external id", entity.Title)
	}

	id, err := s.upsertEntityTx(ctx, entity)
	if isUniqueViolation(err) {
		// Lost an insert race; the second attempt sees the winner's row
		id, err = s.upsertEntityTx(ctx, entity)
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
	}
	if err != nil {
		return 0, err
	}
	entity.ID = id
	return id, nil
}

func (s *SQLiteStore) upsertEntityTx(ctx context.Context, e *Entity) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())

	var id int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM entities
		WHERE (source_id IS NOT NULL AND source_id = ?) OR (kp_id IS NOT NULL AND kp_id = ?)
		ORDER BY id
		LIMIT 1
	`, nullString(e.SourceID), nullString(e.KPID)).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx, `
			INSERT INTO entities (source_id, kp_id, title, title_folded, type, description, poster_url, duration,
			                      genres, authors, actors, countries, release_date, year_start, year_end,
			                      total_seasons, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			nullString(e.SourceID), nullString(e.KPID), e.Title, FoldTitle(e.Title), string(e.Type),
			e.Description, e.PosterURL, e.Duration,
			encodeList(e.Genres), encodeList(e.Authors), encodeList(e.Actors), encodeList(e.Countries),
			nullDate(e.ReleaseDate), e.YearStart, e.YearEnd, e.TotalSeasons, now, now,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting entity: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("reading entity id: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("looking up entity: %w", err)
	default:
		// Adopt the missing external id unless another row already holds it
		_, err := tx.ExecContext(ctx, `
			UPDATE entities SET
				source_id = CASE WHEN source_id IS NULL AND ?1 IS NOT NULL
				                  AND NOT EXISTS (SELECT 1 FROM entities o WHERE o.source_id = ?1)
				            THEN ?1 ELSE source_id END,
				kp_id = CASE WHEN kp_id IS NULL AND ?2 IS NOT NULL
				              AND NOT EXISTS (SELECT 1 FROM entities o WHERE o.kp_id = ?2)
				        THEN ?2 ELSE kp_id END,
				title = ?3, title_folded = ?4, type = ?5, description = ?6, poster_url = ?7, duration = ?8,
				genres = ?9, authors = ?10, actors = ?11, countries = ?12, release_date = ?13,
				year_start = ?14, year_end = ?15, total_seasons = ?16, updated_at = ?17
			WHERE id = ?18
		`,
			nullString(e.SourceID), nullString(e.KPID), e.Title, FoldTitle(e.Title), string(e.Type),
			e.Description, e.PosterURL, e.Duration,
			encodeList(e.Genres), encodeList(e.Authors), encodeList(e.Actors), encodeList(e.Countries),
			nullDate(e.ReleaseDate), e.YearStart, e.YearEnd, e.TotalSeasons, now, id,
		)
		if err != nil {
			return 0, fmt.Errorf("updating entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing entity: %w", err)
	}

	s.logger.Debug("upserted entity", "id", id, "source_id", e.SourceID, "kp_id", e.KPID)
	return id, nil
}

// UpsertRating stores a score keyed by (entity, source)
func (s *SQLiteStore) UpsertRating(ctx context.Context, entityID int64, r Rating) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ratings (entity_id, source, value, max_value, percent)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, source)
		DO UPDATE SET value = excluded.value, max_value = excluded.max_value, percent = excluded.percent
	`, entityID, r.Source, r.Value, r.MaxValue, r.Percent)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("upserting rating: %w", err)
	}
	return nil
}

const entityColumns = `e.id, COALESCE(e.source_id, ''), COALESCE(e.kp_id, ''), e.title, e.type, e.description,
	e.poster_url, e.duration, e.genres, e.authors, e.actors, e.countries, COALESCE(e.release_date, ''),
	e.year_start, e.year_end, e.total_seasons, e.created_at, e.updated_at`

func scanEntity(row rowScanner, extra ...any) (*Entity, error) {
	var e Entity
	var typ, genres, authors, actors, countries, release, createdAt, updatedAt string
	dest := []any{
		&e.ID, &e.SourceID, &e.KPID, &e.Title, &typ, &e.Description,
		&e.PosterURL, &e.Duration, &genres, &authors, &actors, &countries, &release,
		&e.YearStart, &e.YearEnd, &e.TotalSeasons, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.Type = EntityType(typ)
	e.Genres = decodeList(genres)
	e.Authors = decodeList(authors)
	e.Actors = decodeList(actors)
	e.Countries = decodeList(countries)

	var err error
	if e.ReleaseDate, err = parseDate(release); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &e, nil
}

// GetEntity retrieves an entity with its ratings.
// Returns ErrNotFound if the entity doesn't exist.
func (s *SQLiteStore) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities e WHERE e.id = ?`, id)
	e, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entity: %w", err)
	}

	if e.Ratings, err = s.listRatings(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *SQLiteStore) listRatings(ctx context.Context, entityID int64) ([]Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, value, max_value, percent FROM ratings WHERE entity_id = ? ORDER BY source`,
		entityID)
	if err != nil {
		return nil, fmt.Errorf("querying ratings: %w", err)
	}
	defer rows.Close()

	var ratings []Rating
	for rows.Next() {
		var r Rating
		if err := rows.Scan(&r.Source, &r.Value, &r.MaxValue, &r.Percent); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings = append(ratings, r)
	}
	return ratings, rows.Err()
}

// SearchEntities finds catalog entities whose title contains the filter
func (s *SQLiteStore) SearchEntities(ctx context.Context, titleFilter string, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entityColumns+` FROM entities e
		WHERE e.title_folded LIKE ? ESCAPE '\'
		ORDER BY e.updated_at DESC
		LIMIT ?
	`, likePattern(titleFilter), limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// --- watch list ---

// UpsertListEntry sets the status of the user's entry for the entity,
// creating it when absent. An entry under another entity row with the same
// source or Kinopoisk id counts as the same title and is updated instead.
// Returns the entry id and whether it was created. A lost insert race
// surfaces as ErrConflict so the caller can retry once.
func (s *SQLiteStore) UpsertListEntry(ctx context.Context, userID, entityID int64, status Status) (int64, bool, error) {
	if !status.Valid() {
		return 0, false, fmt.Errorf("invalid status %q", status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())

	var id int64
	created := false
	err = tx.QueryRowContext(ctx, `
		SELECT le.id
		FROM list_entries le
		JOIN entities e ON e.id = le.entity_id
		JOIN entities t ON t.id = ?
		WHERE le.user_id = ?
		  AND (le.entity_id = t.id
		       OR (t.source_id IS NOT NULL AND e.source_id = t.source_id)
		       OR (t.kp_id IS NOT NULL AND e.kp_id = t.kp_id))
		ORDER BY le.id
		LIMIT 1
	`, entityID, userID).Scan(&id)

	switch {
	case err == sql.ErrNoRows:
		result, err := tx.ExecContext(ctx, `
			INSERT INTO list_entries (user_id, entity_id, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, userID, entityID, string(status), now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, false, ErrConflict
			}
			if isForeignKeyViolation(err) {
				return 0, false, ErrNotFound
			}
			return 0, false, fmt.Errorf("inserting list entry: %w", err)
		}
		if id, err = result.LastInsertId(); err != nil {
			return 0, false, fmt.Errorf("reading list entry id: %w", err)
		}
		created = true
	case err != nil:
		return 0, false, fmt.Errorf("looking up list entry: %w", err)
	default:
		if _, err := tx.ExecContext(ctx,
			`UPDATE list_entries SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), now, id); err != nil {
			return 0, false, fmt.Errorf("updating list entry status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing list entry: %w", err)
	}

	s.logger.Debug("upserted list entry", "id", id, "user_id", userID, "entity_id", entityID, "created", created)
	return id, created, nil
}

// UpdateListEntry applies a patch to an existing entry.
// Returns ErrNotFound if the entry doesn't exist.
func (s *SQLiteStore) UpdateListEntry(ctx context.Context, entryID int64, patch EntryPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return fmt.Errorf("invalid status %q", *patch.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, string(*patch.Status))
	}
	if patch.Rating != nil {
		if *patch.Rating < MinUserRating || *patch.Rating > MaxUserRating {
			return fmt.Errorf("rating %d out of range", *patch.Rating)
		}
		sets = append(sets, "user_rating = ?")
		args = append(args, *patch.Rating)
	}
	switch {
	case patch.ClearSeason:
		sets = append(sets, "current_season = NULL")
	case patch.Season != nil:
		if *patch.Season < 1 {
			return fmt.Errorf("season %d out of range", *patch.Season)
		}
		sets = append(sets, "current_season = ?")
		args = append(args, *patch.Season)
	}
	args = append(args, entryID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE list_entries SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("updating list entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteListEntry removes an entry permanently.
// Returns ErrNotFound if the entry doesn't exist.
func (s *SQLiteStore) DeleteListEntry(ctx context.Context, entryID int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM list_entries WHERE id = ?`, entryID)
	if err != nil {
		return fmt.Errorf("deleting list entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	s.logger.Debug("deleted list entry", "id", entryID)
	return nil
}

const entryColumns = `le.id, le.user_id, le.entity_id, le.status, le.user_rating, le.current_season,
	le.comment, le.created_at, le.updated_at`

// scanEntryWithEntity scans entryColumns followed by entityColumns
func scanEntryWithEntity(row rowScanner) (*ListEntry, error) {
	var le ListEntry
	var status, createdAt, updatedAt string
	var rating, season sql.NullInt64

	e, err := scanEntryPrefix(row, &le, &status, &rating, &season, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	le.Status = Status(status)
	if rating.Valid {
		v := int(rating.Int64)
		le.Rating = &v
	}
	if season.Valid {
		v := int(season.Int64)
		le.Season = &v
	}
	if le.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if le.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	le.Entity = e
	return &le, nil
}

// scanEntryPrefix reads the entry columns first, then the joined entity
func scanEntryPrefix(row rowScanner, le *ListEntry, status *string, rating, season *sql.NullInt64, createdAt, updatedAt *string) (*Entity, error) {
	return scanEntity(prefixScanner{row: row, prefix: []any{
		&le.ID, &le.UserID, &le.EntityID, status, rating, season, &le.Comment, createdAt, updatedAt,
	}})
}

// prefixScanner prepends destinations so entry and entity columns share one Scan
type prefixScanner struct {
	row    rowScanner
	prefix []any
}

func (p prefixScanner) Scan(dest ...any) error {
	return p.row.Scan(append(append([]any{}, p.prefix...), dest...)...)
}

// GetListEntry retrieves an entry with its entity and ratings.
// Returns ErrNotFound if the entry doesn't exist.
func (s *SQLiteStore) GetListEntry(ctx context.Context, entryID int64) (*ListEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`, `+entityColumns+`
		FROM list_entries le
		JOIN entities e ON e.id = le.entity_id
		WHERE le.id = ?
	`, entryID)
	le, err := scanEntryWithEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying list entry: %w", err)
	}

	if le.Entity.Ratings, err = s.listRatings(ctx, le.EntityID); err != nil {
		return nil, err
	}
	return le, nil
}

// FindListEntry returns the user's entry for an entity, matching either the
// exact entity id or the same external id on another row. This keeps a
// title discovered through both providers from being added twice.
func (s *SQLiteStore) FindListEntry(ctx context.Context, userID int64, entity *Entity) (*ListEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`, `+entityColumns+`
		FROM list_entries le
		JOIN entities e ON e.id = le.entity_id
		WHERE le.user_id = ?
		  AND (le.entity_id = ?
		       OR (e.source_id IS NOT NULL AND e.source_id = ?)
		       OR (e.kp_id IS NOT NULL AND e.kp_id = ?))
		ORDER BY le.id
		LIMIT 1
	`, userID, entity.ID, nullString(entity.SourceID), nullString(entity.KPID))
	le, err := scanEntryWithEntity(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding list entry: %w", err)
	}
	return le, nil
}

// QueryListEntries returns one page of a user's entries with the total
// matching count, most recently updated first.
func (s *SQLiteStore) QueryListEntries(ctx context.Context, q ListQuery) ([]*ListEntry, int, error) {
	where := ` FROM list_entries le JOIN entities e ON e.id = le.entity_id WHERE le.user_id = ?`
	args := []any{q.UserID}
	if strings.TrimSpace(q.TitleFilter) != "" {
		where += ` AND e.title_folded LIKE ? ESCAPE '\'`
		args = append(args, likePattern(q.TitleFilter))
	}
	if q.Status != "" && q.Status != StatusAll {
		where += ` AND le.status = ?`
		args = append(args, string(q.Status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting list entries: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+`, `+entityColumns+where+` ORDER BY le.updated_at DESC, le.id DESC LIMIT ? OFFSET ?`,
		append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying list entries: %w", err)
	}
	defer rows.Close()

	var entries []*ListEntry
	for rows.Next() {
		le, err := scanEntryWithEntity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning list entry: %w", err)
		}
		entries = append(entries, le)
	}
	return entries, total, rows.Err()
}

// CountListEntries returns how many entries a user has
func (s *SQLiteStore) CountListEntries(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM list_entries WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting list entries: %w", err)
	}
	return n, nil
}

// --- sessions ---

// SaveSession saves or updates a conversation session blob
func (s *SQLiteStore) SaveSession(ctx context.Context, key string, state []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (conversation_key, state, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (conversation_key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at
	`, key, state, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	s.logger.Debug("saved session", "conversation", key, "size", len(state))
	return nil
}

// GetSession retrieves a conversation session blob.
// Returns ErrNotFound if the conversation has no saved session.
func (s *SQLiteStore) GetSession(ctx context.Context, key string) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM sessions WHERE conversation_key = ?`, key).Scan(&state)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return state, nil
}

// DeleteSession removes a conversation session
func (s *SQLiteStore) DeleteSession(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE conversation_key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns database-wide counters
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByStatus: make(map[Status]int)}
	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &st.Users},
		{`SELECT COUNT(*) FROM entities`, &st.Entities},
		{`SELECT COUNT(*) FROM list_entries`, &st.Entries},
		{`SELECT COUNT(*) FROM sessions`, &st.Sessions},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM list_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		st.ByStatus[Status(status)] = n
	}
	return st, rows.Err()
}
