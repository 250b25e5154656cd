// ABOUTME: Store interface and data types for vistly-bot persistence
// ABOUTME: Defines users, catalog entities, ratings, watch-list entries and session blobs

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert collides with a unique key
var ErrDuplicate = errors.New("already exists")

// ErrConflict is returned when a get-or-create raced with another writer.
// Callers may retry the operation once.
var ErrConflict = errors.New("concurrent write conflict")

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// EntityType classifies a catalog entity
type EntityType string

const (
	EntityMovie     EntityType = "movie"
	EntitySeries    EntityType = "series"
	EntityGame      EntityType = "game"
	EntityBook      EntityType = "book"
	EntityMixed     EntityType = "mixed"
	EntityUndefined EntityType = "undefined"
)

// ParseEntityType maps a provider type string onto an EntityType.
// Unknown values become EntityUndefined.
func ParseEntityType(s string) EntityType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "film", "cartoon", "anime":
		return EntityMovie
	case "series", "tv-series", "animated-series", "episode":
		return EntitySeries
	case "game":
		return EntityGame
	case "book":
		return EntityBook
	case "mixed":
		return EntityMixed
	default:
		return EntityUndefined
	}
}

// Status is the watch state of a list entry
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusPlanning   Status = "planning"

	// StatusAll is a query filter only; it is never stored on an entry.
	StatusAll Status = "all"
)

// Statuses lists the storable statuses in display order
var Statuses = []Status{StatusCompleted, StatusInProgress, StatusPlanning}

// Valid reports whether s can be stored on a list entry
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusPlanning:
		return true
	}
	return false
}

// ValidFilter reports whether s can be used as a list filter
func (s Status) ValidFilter() bool {
	return s == StatusAll || s.Valid()
}

// Rating bounds for user ratings on list entries
const (
	MinUserRating = 1
	MaxUserRating = 5
)

// User is a chat user known to the bot. Frontend+ExternalID is unique.
type User struct {
	ID         int64
	Frontend   string
	ExternalID string
	Username   string
	Name       string
	Language   string // empty until the user picks one
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName returns the best available human name for the user
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Username != "" {
		return u.Username
	}
	return u.ExternalID
}

// Entity is the canonical movie/series record independent of provider.
// SourceID holds the cross-referenced IMDb id, KPID the Kinopoisk id;
// either may be empty but an entity found via both converges to one row.
type Entity struct {
	ID           int64
	SourceID     string
	KPID         string
	Title        string
	Type         EntityType
	Description  string
	PosterURL    string
	Duration     int // minutes
	Genres       []string
	Authors      []string
	Actors       []string
	Countries    []string
	ReleaseDate  *time.Time
	YearStart    int
	YearEnd      int
	TotalSeasons int
	Ratings      []Rating
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsSeries reports whether season tracking applies to the entity
func (e *Entity) IsSeries() bool {
	return e.Type == EntitySeries
}

// Rating is a provider score for an entity, keyed by (entity, source)
type Rating struct {
	Source   string
	Value    float64
	MaxValue float64
	Percent  bool
}

// ListEntry is a user's tracking record for one entity.
// Rating and Season are nil when unset.
type ListEntry struct {
	ID        int64
	UserID    int64
	EntityID  int64
	Status    Status
	Rating    *int
	Season    *int
	Comment   string
	Entity    *Entity // populated by GetListEntry and QueryListEntries
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryPatch describes an in-place list entry mutation.
// Nil fields are left unchanged; ClearSeason unsets the season.
type EntryPatch struct {
	Status      *Status
	Rating      *int
	Season      *int
	ClearSeason bool
}

// Empty reports whether the patch changes nothing
func (p EntryPatch) Empty() bool {
	return p.Status == nil && p.Rating == nil && p.Season == nil && !p.ClearSeason
}

// ListQuery selects a page of a user's list entries.
// TitleFilter is a case-insensitive substring match applied before Status.
type ListQuery struct {
	UserID      int64
	TitleFilter string
	Status      Status
	Limit       int
	Offset      int
}

// UserSummary is a user row with aggregate list counts for operators
type UserSummary struct {
	User
	Entries    int
	LastActive time.Time
}

// Stats are database-wide counters for operators
type Stats struct {
	Users    int
	Entities int
	Entries  int
	ByStatus map[Status]int
	Sessions int
}

// Store defines the persistence operations used by the bot
type Store interface {
	// Users
	GetOrCreateUser(ctx context.Context, frontend, externalID, username, name string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	SetUserLanguage(ctx context.Context, userID int64, language string) error
	ListUsers(ctx context.Context, limit int) ([]*UserSummary, error)

	// Catalog
	UpsertEntity(ctx context.Context, entity *Entity) (int64, error)
	UpsertRating(ctx context.Context, entityID int64, rating Rating) error
	GetEntity(ctx context.Context, id int64) (*Entity, error)
	SearchEntities(ctx context.Context, titleFilter string, limit int) ([]*Entity, error)

	// Watch list. UpsertListEntry and FindListEntry treat entries whose
	// entity shares a source or Kinopoisk id as the same title.
	UpsertListEntry(ctx context.Context, userID, entityID int64, status Status) (int64, bool, error)
	UpdateListEntry(ctx context.Context, entryID int64, patch EntryPatch) error
	DeleteListEntry(ctx context.Context, entryID int64) error
	GetListEntry(ctx context.Context, entryID int64) (*ListEntry, error)
	FindListEntry(ctx context.Context, userID int64, entity *Entity) (*ListEntry, error)
	QueryListEntries(ctx context.Context, q ListQuery) ([]*ListEntry, int, error)
	CountListEntries(ctx context.Context, userID int64) (int, error)

	// Conversation sessions (opaque blobs owned by the bot engine)
	SaveSession(ctx context.Context, key string, state []byte) error
	GetSession(ctx context.Context, key string) ([]byte, error)
	DeleteSession(ctx context.Context, key string) error

	Stats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
	Close() error
}
