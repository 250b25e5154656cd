// ABOUTME: Conversation session persistence: in-memory map or JSON blobs in the store
// ABOUTME: Missing and unreadable sessions load as a fresh session so a conversation never wedges

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/store"
)

// SessionStore loads and saves conversation sessions by conversation id
type SessionStore interface {
	// Load returns the saved session, or a new one when none exists
	Load(ctx context.Context, conversationID string) (*flow.Session, error)
	Save(ctx context.Context, s *flow.Session) error
	Delete(ctx context.Context, conversationID string) error
}

// MemorySessions keeps sessions in process memory. Sessions are copied on
// the way in and out so callers never share state.
type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]flow.Session
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]flow.Session)}
}

func copySession(s flow.Session) *flow.Session {
	s.Results = slices.Clone(s.Results)
	return &s
}

func (m *MemorySessions) Load(_ context.Context, conversationID string) (*flow.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[conversationID]; ok {
		return copySession(s), nil
	}
	return flow.NewSession(conversationID), nil
}

func (m *MemorySessions) Save(_ context.Context, s *flow.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ConversationID] = *copySession(*s)
	return nil
}

func (m *MemorySessions) Delete(_ context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
	return nil
}

// Len returns the number of stored sessions
func (m *MemorySessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StoreSessions persists sessions as JSON through store.Store so they
// survive restarts.
type StoreSessions struct {
	store  store.Store
	logger *slog.Logger
}

func NewStoreSessions(s store.Store, logger *slog.Logger) *StoreSessions {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSessions{store: s, logger: logger.With("component", "sessions")}
}

func (s *StoreSessions) Load(ctx context.Context, conversationID string) (*flow.Session, error) {
	data, err := s.store.GetSession(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return flow.NewSession(conversationID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess flow.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("discarding unreadable session", "conversation", conversationID, "error", err)
		return flow.NewSession(conversationID), nil
	}
	sess.ConversationID = conversationID
	sess.Normalize()
	return &sess, nil
}

func (s *StoreSessions) Save(ctx context.Context, sess *flow.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.store.SaveSession(ctx, sess.ConversationID, data); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *StoreSessions) Delete(ctx context.Context, conversationID string) error {
	err := s.store.DeleteSession(ctx, conversationID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
