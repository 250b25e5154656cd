// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite while keeping the same lookup and error semantics

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu        sync.RWMutex
	nextID    int64
	ticks     int64
	users     map[int64]*User
	userIndex map[string]int64 // keyed by "frontend:externalID"
	entities  map[int64]*Entity
	ratings   map[int64]map[string]Rating // keyed by entity ID, then source
	entries   map[int64]*ListEntry
	sessions  map[string][]byte

	// clock lets tests control timestamps; defaults to time.Now
	clock func() time.Time

	// FailNext makes the next mutating call return this error, then clears it.
	FailNext error
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:     make(map[int64]*User),
		userIndex: make(map[string]int64),
		entities:  make(map[int64]*Entity),
		ratings:   make(map[int64]map[string]Rating),
		entries:   make(map[int64]*ListEntry),
		sessions:  make(map[string][]byte),
		clock:     time.Now,
	}
}

// now returns a strictly increasing timestamp so ordering by updated_at is stable
func (m *MockStore) now() time.Time {
	m.ticks++
	return m.clock().UTC().Add(time.Duration(m.ticks) * time.Microsecond)
}

func (m *MockStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MockStore) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// --- users ---

// GetOrCreateUser returns the user for a frontend identity, creating it on first contact.
func (m *MockStore) GetOrCreateUser(ctx context.Context, frontend, externalID, username, name string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	key := frontend + ":" + externalID
	if id, ok := m.userIndex[key]; ok {
		u := m.users[id]
		if u.Username != username || u.Name != name {
			u.Username = username
			u.Name = name
			u.UpdatedAt = m.now()
		}
		cp := *u
		return &cp, nil
	}

	now := m.now()
	u := &User{
		ID:         m.id(),
		Frontend:   frontend,
		ExternalID: externalID,
		Username:   username,
		Name:       name,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.users[u.ID] = u
	m.userIndex[key] = u.ID

	cp := *u
	return &cp, nil
}

// GetUser retrieves a user by ID.
func (m *MockStore) GetUser(ctx context.Context, id int64) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// SetUserLanguage stores the user's chosen interface language.
func (m *MockStore) SetUserLanguage(ctx context.Context, userID int64, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Language = language
	u.UpdatedAt = m.now()
	return nil
}

// ListUsers returns users with their entry counts, most recently active first.
func (m *MockStore) ListUsers(ctx context.Context, limit int) ([]*UserSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	summaries := make([]*UserSummary, 0, len(m.users))
	for _, u := range m.users {
		us := &UserSummary{User: *u, LastActive: u.UpdatedAt}
		for _, e := range m.entries {
			if e.UserID != u.ID {
				continue
			}
			us.Entries++
			if e.UpdatedAt.After(us.LastActive) {
				us.LastActive = e.UpdatedAt
			}
		}
		summaries = append(summaries, us)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastActive.After(summaries[j].LastActive)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// --- catalog ---

func (m *MockStore) findEntity(sourceID, kpID string) *Entity {
	var found *Entity
	for _, e := range m.entities {
		if (sourceID != "" && e.SourceID == sourceID) || (kpID != "" && e.KPID == kpID) {
			if found == nil || e.ID < found.ID {
				found = e
			}
		}
	}
	return found
}

func (m *MockStore) externalIDTaken(sourceID, kpID string) bool {
	for _, e := range m.entities {
		if (sourceID != "" && e.SourceID == sourceID) || (kpID != "" && e.KPID == kpID) {
			return true
		}
	}
	return false
}

// UpsertEntity inserts or updates an entity, matching by either external id.
// A missing external id is adopted only when no other row already holds it.
func (m *MockStore) UpsertEntity(ctx context.Context, entity *Entity) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return 0, err
	}
	if entity.SourceID == "" && entity.KPID == "" {
		return 0, fmt.Errorf("upserting entity %q: no external id", entity.Title)
	}

	now := m.now()
	existing := m.findEntity(entity.SourceID, entity.KPID)
	if existing == nil {
		e := cloneEntity(entity)
		e.ID = m.id()
		e.Ratings = nil
		e.CreatedAt = now
		e.UpdatedAt = now
		m.entities[e.ID] = e
		entity.ID = e.ID
		return e.ID, nil
	}

	if existing.SourceID == "" && entity.SourceID != "" && !m.externalIDTaken(entity.SourceID, "") {
		existing.SourceID = entity.SourceID
	}
	if existing.KPID == "" && entity.KPID != "" && !m.externalIDTaken("", entity.KPID) {
		existing.KPID = entity.KPID
	}
	existing.Title = entity.Title
	existing.Type = entity.Type
	existing.Description = entity.Description
	existing.PosterURL = entity.PosterURL
	existing.Duration = entity.Duration
	existing.Genres = cloneList(entity.Genres)
	existing.Authors = cloneList(entity.Authors)
	existing.Actors = cloneList(entity.Actors)
	existing.Countries = cloneList(entity.Countries)
	existing.ReleaseDate = entity.ReleaseDate
	existing.YearStart = entity.YearStart
	existing.YearEnd = entity.YearEnd
	existing.TotalSeasons = entity.TotalSeasons
	existing.UpdatedAt = now

	entity.ID = existing.ID
	return existing.ID, nil
}

// UpsertRating stores a score keyed by (entity, source).
func (m *MockStore) UpsertRating(ctx context.Context, entityID int64, r Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[entityID]; !ok {
		return ErrNotFound
	}
	if m.ratings[entityID] == nil {
		m.ratings[entityID] = make(map[string]Rating)
	}
	m.ratings[entityID][r.Source] = r
	return nil
}

func (m *MockStore) entityWithRatings(id int64) *Entity {
	e := cloneEntity(m.entities[id])
	sources := make([]string, 0, len(m.ratings[id]))
	for src := range m.ratings[id] {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		e.Ratings = append(e.Ratings, m.ratings[id][src])
	}
	return e
}

// GetEntity retrieves an entity with its ratings.
func (m *MockStore) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.entities[id]; !ok {
		return nil, ErrNotFound
	}
	return m.entityWithRatings(id), nil
}

// SearchEntities finds catalog entities whose title contains the filter.
func (m *MockStore) SearchEntities(ctx context.Context, titleFilter string, limit int) ([]*Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	needle := FoldTitle(titleFilter)

	var out []*Entity
	for _, e := range m.entities {
		if strings.Contains(FoldTitle(e.Title), needle) {
			out = append(out, cloneEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- watch list ---

// UpsertListEntry sets the status of the (user, entity) entry, creating it if needed.
func (m *MockStore) UpsertListEntry(ctx context.Context, userID, entityID int64, status Status) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return 0, false, err
	}
	if !status.Valid() {
		return 0, false, fmt.Errorf("invalid status %q", status)
	}
	if _, ok := m.users[userID]; !ok {
		return 0, false, ErrNotFound
	}
	target, ok := m.entities[entityID]
	if !ok {
		return 0, false, ErrNotFound
	}

	now := m.now()
	if found := m.matchEntry(userID, target); found != nil {
		found.Status = status
		found.UpdatedAt = now
		return found.ID, false, nil
	}

	e := &ListEntry{
		ID:        m.id(),
		UserID:    userID,
		EntityID:  entityID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.entries[e.ID] = e
	return e.ID, true, nil
}

// UpdateListEntry applies a patch to an existing entry.
func (m *MockStore) UpdateListEntry(ctx context.Context, entryID int64, patch EntryPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}

	e, ok := m.entries[entryID]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return fmt.Errorf("invalid status %q", *patch.Status)
	}
	if patch.Rating != nil && (*patch.Rating < MinUserRating || *patch.Rating > MaxUserRating) {
		return fmt.Errorf("rating %d out of range", *patch.Rating)
	}
	if !patch.ClearSeason && patch.Season != nil && *patch.Season < 1 {
		return fmt.Errorf("season %d out of range", *patch.Season)
	}

	if patch.Status != nil {
		e.Status = *patch.Status
	}
	if patch.Rating != nil {
		e.Rating = intPtr(*patch.Rating)
	}
	switch {
	case patch.ClearSeason:
		e.Season = nil
	case patch.Season != nil:
		e.Season = intPtr(*patch.Season)
	}
	e.UpdatedAt = m.now()
	return nil
}

// DeleteListEntry removes an entry permanently.
func (m *MockStore) DeleteListEntry(ctx context.Context, entryID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.entries[entryID]; !ok {
		return ErrNotFound
	}
	delete(m.entries, entryID)
	return nil
}

func (m *MockStore) entryWithEntity(e *ListEntry, withRatings bool) *ListEntry {
	cp := *e
	if e.Rating != nil {
		cp.Rating = intPtr(*e.Rating)
	}
	if e.Season != nil {
		cp.Season = intPtr(*e.Season)
	}
	if withRatings {
		cp.Entity = m.entityWithRatings(e.EntityID)
	} else {
		cp.Entity = cloneEntity(m.entities[e.EntityID])
	}
	return &cp
}

// GetListEntry retrieves an entry with its entity and ratings.
func (m *MockStore) GetListEntry(ctx context.Context, entryID int64) (*ListEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.entryWithEntity(e, true), nil
}

// FindListEntry returns the user's entry for an entity by id or by either external id.
func (m *MockStore) FindListEntry(ctx context.Context, userID int64, entity *Entity) (*ListEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := m.matchEntry(userID, entity)
	if found == nil {
		return nil, ErrNotFound
	}
	return m.entryWithEntity(found, false), nil
}

// matchEntry returns the oldest entry of userID for entity's id or either
// external id. Callers hold m.mu.
func (m *MockStore) matchEntry(userID int64, entity *Entity) *ListEntry {
	var found *ListEntry
	for _, e := range m.entries {
		if e.UserID != userID {
			continue
		}
		ent := m.entities[e.EntityID]
		match := e.EntityID == entity.ID ||
			(entity.SourceID != "" && ent.SourceID == entity.SourceID) ||
			(entity.KPID != "" && ent.KPID == entity.KPID)
		if match && (found == nil || e.ID < found.ID) {
			found = e
		}
	}
	return found
}

// QueryListEntries returns one page of a user's entries with the total count.
func (m *MockStore) QueryListEntries(ctx context.Context, q ListQuery) ([]*ListEntry, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := FoldTitle(q.TitleFilter)

	var matched []*ListEntry
	for _, e := range m.entries {
		if e.UserID != q.UserID {
			continue
		}
		if needle != "" && !strings.Contains(FoldTitle(m.entities[e.EntityID].Title), needle) {
			continue
		}
		if q.Status != "" && q.Status != StatusAll && e.Status != q.Status {
			continue
		}
		matched = append(matched, e)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	start := q.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	page := make([]*ListEntry, 0, end-start)
	for _, e := range matched[start:end] {
		page = append(page, m.entryWithEntity(e, false))
	}
	return page, total, nil
}

// CountListEntries returns how many entries a user has.
func (m *MockStore) CountListEntries(ctx context.Context, userID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.entries {
		if e.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- sessions ---

// SaveSession saves or updates a conversation session blob.
func (m *MockStore) SaveSession(ctx context.Context, key string, state []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeFailure(); err != nil {
		return err
	}
	m.sessions[key] = append([]byte(nil), state...)
	return nil
}

// GetSession retrieves a conversation session blob.
func (m *MockStore) GetSession(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), state...), nil
}

// DeleteSession removes a conversation session.
func (m *MockStore) DeleteSession(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[key]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, key)
	return nil
}

// Stats returns counters over the in-memory maps.
func (m *MockStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &Stats{
		Users:    len(m.users),
		Entities: len(m.entities),
		Entries:  len(m.entries),
		Sessions: len(m.sessions),
		ByStatus: make(map[Status]int),
	}
	for _, e := range m.entries {
		st.ByStatus[e.Status]++
	}
	return st, nil
}

// Ping always succeeds unless FailNext is set.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// SetClock replaces the time source used for new timestamps.
func (m *MockStore) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clock = clock
}

func cloneList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	return append([]string(nil), items...)
}

func cloneEntity(e *Entity) *Entity {
	cp := *e
	cp.Genres = cloneList(e.Genres)
	cp.Authors = cloneList(e.Authors)
	cp.Actors = cloneList(e.Actors)
	cp.Countries = cloneList(e.Countries)
	cp.Ratings = append([]Rating(nil), e.Ratings...)
	if len(cp.Ratings) == 0 {
		cp.Ratings = nil
	}
	return &cp
}
