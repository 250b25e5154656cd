// ABOUTME: Typed per-conversation session owned by the state machine
// ABOUTME: Reset returns to the root query state; Normalize drops fields foreign to the current state

package flow

import (
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

// Session is the conversation state carried between turns. It is JSON
// encoded when persisted.
type Session struct {
	ConversationID string `json:"conversation_id"`
	State          State  `json:"state"`
	Language       string `json:"language,omitempty"`

	PendingQuery string        `json:"pending_query,omitempty"`
	Provider     provider.Kind `json:"provider,omitempty"`
	Page         int           `json:"page"`

	StatusFilter store.Status `json:"status_filter,omitempty"`
	TitleFilter  string       `json:"title_filter,omitempty"`

	CurrentEntityID  int64 `json:"current_entity_id,omitempty"`
	CurrentEntryID   int64 `json:"current_entry_id,omitempty"`
	PendingSeason    int   `json:"pending_season,omitempty"`
	DeepLinkEntityID int64 `json:"deep_link_entity_id,omitempty"`
	// Entry removed by the last confirmed delete; only its confirm may repeat
	DeletedEntryID   int64 `json:"deleted_entry_id,omitempty"`

	// Last search page, kept so "back" can redraw without a provider call
	Results      []provider.SearchItem `json:"results,omitempty"`
	ResultsPage  int                   `json:"results_page,omitempty"`
	ResultsTotal int                   `json:"results_total,omitempty"`

	ListTotal int `json:"list_total,omitempty"`
}

// NewSession returns a fresh session at the root query state
func NewSession(conversationID string) *Session {
	return &Session{ConversationID: conversationID, State: RootAwaitingQuery, Page: 1}
}

// Reset clears every field except the conversation id and language and
// returns to RootAwaitingQuery.
func (s *Session) Reset() {
	*s = Session{
		ConversationID: s.ConversationID,
		Language:       s.Language,
		State:          RootAwaitingQuery,
		Page:           1,
	}
}

// Normalize enforces the per-state field rules. An unknown state resets the
// session.
func (s *Session) Normalize() {
	if !s.State.Valid() {
		s.Reset()
		return
	}
	if s.Page < 1 {
		s.Page = 1
	}
	if !s.State.holdsEntity() {
		s.CurrentEntityID = 0
	}
	if !s.State.holdsEntry() {
		s.CurrentEntryID = 0
	}
	if s.State != ListAwaitingSeasonChoice {
		s.PendingSeason = 0
	}
	if s.State != RootAwaitingLanguage {
		s.DeepLinkEntityID = 0
	}
	if s.State != ListAwaitingSelection {
		s.DeletedEntryID = 0
	}
	if !s.State.IsSearch() {
		s.PendingQuery = ""
		s.Provider = ""
		s.clearResults()
	}
	if s.State.IsList() {
		if !s.StatusFilter.ValidFilter() {
			s.StatusFilter = store.StatusAll
		}
	} else {
		s.StatusFilter = ""
		s.TitleFilter = ""
		s.ListTotal = 0
	}
}

func (s *Session) clearResults() {
	s.Results = nil
	s.ResultsPage = 0
	s.ResultsTotal = 0
}

// cachedResults reports whether the session holds search results for page
func (s *Session) cachedResults(page int) bool {
	return len(s.Results) > 0 && s.ResultsPage == page
}

// hasResult reports whether externalID is on the cached result page. With
// nothing cached every id is accepted.
func (s *Session) hasResult(externalID string) bool {
	if len(s.Results) == 0 {
		return true
	}
	for _, it := range s.Results {
		if it.ExternalID == externalID {
			return true
		}
	}
	return false
}
