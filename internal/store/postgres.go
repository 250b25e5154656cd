// ABOUTME: PostgreSQL implementation of the Store interface using pgx connection pools
// ABOUTME: Mirrors the SQLite schema with native arrays, timestamptz and ON CONFLICT upserts

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface on PostgreSQL
type PostgresStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the DSN and creates the schema if needed.
// Every query runs under the given timeout.
func NewPostgresStore(ctx context.Context, dsn string, timeout time.Duration) (*PostgresStore, error) {
	logger := slog.Default().With("component", "store")
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}

	s := &PostgresStore{db: pool, timeout: timeout, logger: logger}

	if err := s.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if err := s.createSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("Postgres store initialized")
	return s, nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *PostgresStore) createSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id          BIGSERIAL PRIMARY KEY,
			frontend    TEXT NOT NULL,
			external_id TEXT NOT NULL,
			username    TEXT NOT NULL DEFAULT '',
			name        TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (frontend, external_id)
		);

		CREATE TABLE IF NOT EXISTS entities (
			id            BIGSERIAL PRIMARY KEY,
			source_id     TEXT UNIQUE,
			kp_id         TEXT UNIQUE,
			title         TEXT NOT NULL,
			title_folded  TEXT NOT NULL DEFAULT '',
			type          TEXT NOT NULL DEFAULT 'undefined',
			description   TEXT NOT NULL DEFAULT '',
			poster_url    TEXT NOT NULL DEFAULT '',
			duration      INTEGER NOT NULL DEFAULT 0,
			genres        TEXT[] NOT NULL DEFAULT '{}',
			authors       TEXT[] NOT NULL DEFAULT '{}',
			actors        TEXT[] NOT NULL DEFAULT '{}',
			countries     TEXT[] NOT NULL DEFAULT '{}',
			release_date  DATE,
			year_start    INTEGER NOT NULL DEFAULT 0,
			year_end      INTEGER NOT NULL DEFAULT 0,
			total_seasons INTEGER NOT NULL DEFAULT 0,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS ratings (
			entity_id BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			source    TEXT NOT NULL,
			value     DOUBLE PRECISION NOT NULL,
			max_value DOUBLE PRECISION NOT NULL,
			percent   BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (entity_id, source)
		);

		CREATE TABLE IF NOT EXISTS list_entries (
			id             BIGSERIAL PRIMARY KEY,
			user_id        BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			entity_id      BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			status         TEXT NOT NULL CHECK (status IN ('in_progress', 'completed', 'planning')),
			user_rating    INTEGER CHECK (user_rating IS NULL OR user_rating BETWEEN 1 AND 5),
			current_season INTEGER CHECK (current_season IS NULL OR current_season >= 1),
			comment        TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, entity_id)
		);

		CREATE INDEX IF NOT EXISTS idx_list_entries_user_updated
			ON list_entries(user_id, updated_at DESC);

		CREATE TABLE IF NOT EXISTS sessions (
			conversation_key TEXT PRIMARY KEY,
			state            BYTEA NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.logger.Info("closing Postgres store")
	s.db.Close()
	return nil
}

// Ping verifies the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.db.Ping(ctx)
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isPgUnique(err error) bool     { return pgCode(err) == "23505" }
func isPgForeignKey(err error) bool { return pgCode(err) == "23503" }

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// --- users ---

// GetOrCreateUser returns the user for a frontend identity, creating it on first contact
func (s *PostgresStore) GetOrCreateUser(ctx context.Context, frontend, externalID, username, name string) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.db.QueryRow(ctx, `
		INSERT INTO users (frontend, external_id, username, name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (frontend, external_id)
		DO UPDATE SET username = EXCLUDED.username, name = EXCLUDED.name,
		              updated_at = CASE WHEN users.username <> EXCLUDED.username OR users.name <> EXCLUDED.name
		                                THEN NOW() ELSE users.updated_at END
		RETURNING id, frontend, external_id, username, name, language, created_at, updated_at
	`, frontend, externalID, username, name)

	var u User
	if err := row.Scan(&u.ID, &u.Frontend, &u.ExternalID, &u.Username, &u.Name, &u.Language, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}
	return &u, nil
}

// GetUser retrieves a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var u User
	err := s.db.QueryRow(ctx, `
		SELECT id, frontend, external_id, username, name, language, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Frontend, &u.ExternalID, &u.Username, &u.Name, &u.Language, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// SetUserLanguage stores the user's chosen interface language
func (s *PostgresStore) SetUserLanguage(ctx context.Context, userID int64, language string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `UPDATE users SET language = $1, updated_at = NOW() WHERE id = $2`, language, userID)
	if err != nil {
		return fmt.Errorf("updating user language: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsers returns users with their entry counts, most recently active first
func (s *PostgresStore) ListUsers(ctx context.Context, limit int) ([]*UserSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.frontend, u.external_id, u.username, u.name, u.language, u.created_at, u.updated_at,
		       COUNT(le.id), COALESCE(MAX(le.updated_at), u.updated_at) AS last_active
		FROM users u
		LEFT JOIN list_entries le ON le.user_id = u.id
		GROUP BY u.id
		ORDER BY last_active DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer rows.Close()

	var users []*UserSummary
	for rows.Next() {
		var us UserSummary
		if err := rows.Scan(&us.ID, &us.Frontend, &us.ExternalID, &us.Username, &us.Name, &us.Language,
			&us.CreatedAt, &us.UpdatedAt, &us.Entries, &us.LastActive); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, &us)
	}
	return users, rows.Err()
}

// --- catalog ---

// UpsertEntity inserts or updates an entity, matching by either external id
func (s *PostgresStore) UpsertEntity(ctx context.Context, entity *Entity) (int64, error) {
	if entity.SourceID == "" && entity.KPID == "" {
		return 0, fmt.Errorf("upserting entity %q: no external id", entity.Title)
	}

	id, err := s.upsertEntityTx(ctx, entity)
	if isPgUnique(err) {
		id, err = s.upsertEntityTx(ctx, entity)
		if isPgUnique(err) {
			return 0, ErrConflict
		}
	}
	if err != nil {
		return 0, err
	}
	entity.ID = id
	return id, nil
}

func (s *PostgresStore) upsertEntityTx(ctx context.Context, e *Entity) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		SELECT id FROM entities
		WHERE (source_id IS NOT NULL AND source_id = $1) OR (kp_id IS NOT NULL AND kp_id = $2)
		ORDER BY id
		LIMIT 1
		FOR UPDATE
	`, nullString(e.SourceID), nullString(e.KPID)).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO entities (source_id, kp_id, title, title_folded, type, description, poster_url, duration,
			                      genres, authors, actors, countries, release_date, year_start, year_end, total_seasons)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			RETURNING id
		`,
			nullString(e.SourceID), nullString(e.KPID), e.Title, FoldTitle(e.Title), string(e.Type),
			e.Description, e.PosterURL, e.Duration,
			nonNil(e.Genres), nonNil(e.Authors), nonNil(e.Actors), nonNil(e.Countries),
			e.ReleaseDate, e.YearStart, e.YearEnd, e.TotalSeasons,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("inserting entity: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("looking up entity: %w", err)
	default:
		_, err := tx.Exec(ctx, `
			UPDATE entities SET
				source_id = CASE WHEN source_id IS NULL AND $1::text IS NOT NULL
				                  AND NOT EXISTS (SELECT 1 FROM entities o WHERE o.source_id = $1::text)
				            THEN $1::text ELSE source_id END,
				kp_id = CASE WHEN kp_id IS NULL AND $2::text IS NOT NULL
				              AND NOT EXISTS (SELECT 1 FROM entities o WHERE o.kp_id = $2::text)
				        THEN $2::text ELSE kp_id END,
				title = $3, title_folded = $4, type = $5, description = $6, poster_url = $7, duration = $8,
				genres = $9, authors = $10, actors = $11, countries = $12, release_date = $13,
				year_start = $14, year_end = $15, total_seasons = $16, updated_at = NOW()
			WHERE id = $17
		`,
			nullString(e.SourceID), nullString(e.KPID), e.Title, FoldTitle(e.Title), string(e.Type),
			e.Description, e.PosterURL, e.Duration,
			nonNil(e.Genres), nonNil(e.Authors), nonNil(e.Actors), nonNil(e.Countries),
			e.ReleaseDate, e.YearStart, e.YearEnd, e.TotalSeasons, id,
		)
		if err != nil {
			return 0, fmt.Errorf("updating entity: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing entity: %w", err)
	}
	return id, nil
}

// UpsertRating stores a score keyed by (entity, source)
func (s *PostgresStore) UpsertRating(ctx context.Context, entityID int64, r Rating) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO ratings (entity_id, source, value, max_value, percent)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (entity_id, source)
		DO UPDATE SET value = EXCLUDED.value, max_value = EXCLUDED.max_value, percent = EXCLUDED.percent
	`, entityID, r.Source, r.Value, r.MaxValue, r.Percent)
	if err != nil {
		if isPgForeignKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("upserting rating: %w", err)
	}
	return nil
}

const pgEntityColumns = `e.id, COALESCE(e.source_id, ''), COALESCE(e.kp_id, ''), e.title, e.type, e.description,
	e.poster_url, e.duration, e.genres, e.authors, e.actors, e.countries, e.release_date,
	e.year_start, e.year_end, e.total_seasons, e.created_at, e.updated_at`

func pgEntityDest(e *Entity, typ *string) []any {
	return []any{
		&e.ID, &e.SourceID, &e.KPID, &e.Title, typ, &e.Description,
		&e.PosterURL, &e.Duration, &e.Genres, &e.Authors, &e.Actors, &e.Countries, &e.ReleaseDate,
		&e.YearStart, &e.YearEnd, &e.TotalSeasons, &e.CreatedAt, &e.UpdatedAt,
	}
}

func finishEntity(e *Entity, typ string) {
	e.Type = EntityType(typ)
	for _, list := range []*[]string{&e.Genres, &e.Authors, &e.Actors, &e.Countries} {
		if len(*list) == 0 {
			*list = nil
		}
	}
}

// GetEntity retrieves an entity with its ratings
func (s *PostgresStore) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var e Entity
	var typ string
	err := s.db.QueryRow(ctx, `SELECT `+pgEntityColumns+` FROM entities e WHERE e.id = $1`, id).
		Scan(pgEntityDest(&e, &typ)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying entity: %w", err)
	}
	finishEntity(&e, typ)

	if e.Ratings, err = s.listRatings(ctx, id); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) listRatings(ctx context.Context, entityID int64) ([]Rating, error) {
	rows, err := s.db.Query(ctx,
		`SELECT source, value, max_value, percent FROM ratings WHERE entity_id = $1 ORDER BY source`, entityID)
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
func (s *PostgresStore) SearchEntities(ctx context.Context, titleFilter string, limit int) ([]*Entity, error) {
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT `+pgEntityColumns+` FROM entities e
		WHERE e.title_folded LIKE $1
		ORDER BY e.updated_at DESC
		LIMIT $2
	`, likePattern(titleFilter), limit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		var e Entity
		var typ string
		if err := rows.Scan(pgEntityDest(&e, &typ)...); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		finishEntity(&e, typ)
		entities = append(entities, &e)
	}
	return entities, rows.Err()
}

// --- watch list ---

// UpsertListEntry sets the status of the user's entry for the entity,
// creating it when absent. An entry under another entity row with the same
// source or Kinopoisk id is updated instead. The user row is locked so the
// lookup and the insert are atomic per user.
func (s *PostgresStore) UpsertListEntry(ctx context.Context, userID, entityID int64, status Status) (int64, bool, error) {
	if !status.Valid() {
		return 0, false, fmt.Errorf("invalid status %q", status)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("locking user: %w", err)
	}

	var id int64
	created := false
	err = tx.QueryRow(ctx, `
		SELECT le.id
		FROM list_entries le
		JOIN entities e ON e.id = le.entity_id
		JOIN entities t ON t.id = $1
		WHERE le.user_id = $2
		  AND (le.entity_id = t.id
		       OR (t.source_id IS NOT NULL AND e.source_id = t.source_id)
		       OR (t.kp_id IS NOT NULL AND e.kp_id = t.kp_id))
		ORDER BY le.id
		LIMIT 1
	`, entityID, userID).Scan(&id)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `
			INSERT INTO list_entries (user_id, entity_id, status)
			VALUES ($1, $2, $3)
			RETURNING id
		`, userID, entityID, string(status)).Scan(&id)
		if err != nil {
			if isPgForeignKey(err) {
				return 0, false, ErrNotFound
			}
			if isPgUnique(err) {
				return 0, false, ErrConflict
			}
			return 0, false, fmt.Errorf("inserting list entry: %w", err)
		}
		created = true
	case err != nil:
		return 0, false, fmt.Errorf("looking up list entry: %w", err)
	default:
		if _, err := tx.Exec(ctx,
			`UPDATE list_entries SET status = $1, updated_at = NOW() WHERE id = $2`,
			string(status), id); err != nil {
			return 0, false, fmt.Errorf("updating list entry status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("committing list entry: %w", err)
	}
	return id, created, nil
}

// UpdateListEntry applies a patch to an existing entry
func (s *PostgresStore) UpdateListEntry(ctx context.Context, entryID int64, patch EntryPatch) error {
	sets := []string{"updated_at = NOW()"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return fmt.Errorf("invalid status %q", *patch.Status)
		}
		sets = append(sets, "status = "+arg(string(*patch.Status)))
	}
	if patch.Rating != nil {
		if *patch.Rating < MinUserRating || *patch.Rating > MaxUserRating {
			return fmt.Errorf("rating %d out of range", *patch.Rating)
		}
		sets = append(sets, "user_rating = "+arg(*patch.Rating))
	}
	switch {
	case patch.ClearSeason:
		sets = append(sets, "current_season = NULL")
	case patch.Season != nil:
		if *patch.Season < 1 {
			return fmt.Errorf("season %d out of range", *patch.Season)
		}
		sets = append(sets, "current_season = "+arg(*patch.Season))
	}
	where := arg(entryID)

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `UPDATE list_entries SET `+strings.Join(sets, ", ")+` WHERE id = `+where, args...)
	if err != nil {
		return fmt.Errorf("updating list entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteListEntry removes an entry permanently
func (s *PostgresStore) DeleteListEntry(ctx context.Context, entryID int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM list_entries WHERE id = $1`, entryID)
	if err != nil {
		return fmt.Errorf("deleting list entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const pgEntryColumns = `le.id, le.user_id, le.entity_id, le.status, le.user_rating, le.current_season,
	le.comment, le.created_at, le.updated_at`

func scanPgEntry(row pgx.Row) (*ListEntry, error) {
	var le ListEntry
	var e Entity
	var status, typ string
	dest := append([]any{
		&le.ID, &le.UserID, &le.EntityID, &status, &le.Rating, &le.Season,
		&le.Comment, &le.CreatedAt, &le.UpdatedAt,
	}, pgEntityDest(&e, &typ)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	le.Status = Status(status)
	finishEntity(&e, typ)
	le.Entity = &e
	return &le, nil
}

// GetListEntry retrieves an entry with its entity and ratings
func (s *PostgresStore) GetListEntry(ctx context.Context, entryID int64) (*ListEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	le, err := scanPgEntry(s.db.QueryRow(ctx, `
		SELECT `+pgEntryColumns+`, `+pgEntityColumns+`
		FROM list_entries le JOIN entities e ON e.id = le.entity_id
		WHERE le.id = $1
	`, entryID))
	if errors.Is(err, pgx.ErrNoRows) {
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

// FindListEntry returns the user's entry for an entity by id or by either external id
func (s *PostgresStore) FindListEntry(ctx context.Context, userID int64, entity *Entity) (*ListEntry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	le, err := scanPgEntry(s.db.QueryRow(ctx, `
		SELECT `+pgEntryColumns+`, `+pgEntityColumns+`
		FROM list_entries le JOIN entities e ON e.id = le.entity_id
		WHERE le.user_id = $1
		  AND (le.entity_id = $2
		       OR (e.source_id IS NOT NULL AND e.source_id = $3)
		       OR (e.kp_id IS NOT NULL AND e.kp_id = $4))
		ORDER BY le.id
		LIMIT 1
	`, userID, entity.ID, nullString(entity.SourceID), nullString(entity.KPID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding list entry: %w", err)
	}
	return le, nil
}

// QueryListEntries returns one page of a user's entries with the total count
func (s *PostgresStore) QueryListEntries(ctx context.Context, q ListQuery) ([]*ListEntry, int, error) {
	where := ` FROM list_entries le JOIN entities e ON e.id = le.entity_id WHERE le.user_id = $1`
	args := []any{q.UserID}
	if strings.TrimSpace(q.TitleFilter) != "" {
		args = append(args, likePattern(q.TitleFilter))
		where += fmt.Sprintf(` AND e.title_folded LIKE $%d`, len(args))
	}
	if q.Status != "" && q.Status != StatusAll {
		args = append(args, string(q.Status))
		where += fmt.Sprintf(` AND le.status = $%d`, len(args))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting list entries: %w", err)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	page := fmt.Sprintf(` ORDER BY le.updated_at DESC, le.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := s.db.Query(ctx, `SELECT `+pgEntryColumns+`, `+pgEntityColumns+where+page,
		append(args, limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying list entries: %w", err)
	}
	defer rows.Close()

	var entries []*ListEntry
	for rows.Next() {
		le, err := scanPgEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning list entry: %w", err)
		}
		entries = append(entries, le)
	}
	return entries, total, rows.Err()
}

// CountListEntries returns how many entries a user has
func (s *PostgresStore) CountListEntries(ctx context.Context, userID int64) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM list_entries WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting list entries: %w", err)
	}
	return n, nil
}

// --- sessions ---

// SaveSession saves or updates a conversation session blob
func (s *PostgresStore) SaveSession(ctx context.Context, key string, state []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (conversation_key, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (conversation_key) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, key, state)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// GetSession retrieves a conversation session blob
func (s *PostgresStore) GetSession(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var state []byte
	err := s.db.QueryRow(ctx, `SELECT state FROM sessions WHERE conversation_key = $1`, key).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return state, nil
}

// DeleteSession removes a conversation session
func (s *PostgresStore) DeleteSession(ctx context.Context, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM sessions WHERE conversation_key = $1`, key)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats returns database-wide counters
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st := &Stats{ByStatus: make(map[Status]int)}
	err := s.db.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM users), (SELECT COUNT(*) FROM entities),
		       (SELECT COUNT(*) FROM list_entries), (SELECT COUNT(*) FROM sessions)
	`).Scan(&st.Users, &st.Entities, &st.Entries, &st.Sessions)
	if err != nil {
		return nil, fmt.Errorf("counting: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM list_entries GROUP BY status`)
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
