// ABOUTME: Effects the machine asks the engine to perform and the outcomes reported back
// ABOUTME: Effects are plain data; the engine owns all I/O and rendering

package flow

import (
	"fmt"

	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

// MaxRedirects bounds how many replacement plans Observe may return per turn
const MaxRedirects = 3

// Effect is one instruction in a Plan
type Effect interface {
	// Name identifies the effect in logs and metrics
	Name() string
}

// Plan is the ordered list of effects for a turn
type Plan struct {
	Effects []Effect
}

func plan(effects ...Effect) Plan {
	return Plan{Effects: effects}
}

func redirect(effects ...Effect) *Plan {
	p := plan(effects...)
	return &p
}

// Origin tells entity screens which flow drew them, which decides their buttons
type Origin string

const (
	OriginSearch   Origin = "search"
	OriginDeepLink Origin = "deep_link"
)

// Collaborator effects

type SearchProvider struct {
	Provider provider.Kind
	Query    string
	Page     int
}

type FetchAndUpsert struct {
	Provider   provider.Kind
	ExternalID string
	Page       int
}

// QueryList loads one page of the acting user's list. Notice is carried
// through to the list render.
type QueryList struct {
	TitleFilter string
	Status      store.Status
	Page        int
	Notice      string
}

type UpsertListEntry struct {
	EntityID int64
	Status   store.Status
}

type UpdateListEntry struct {
	EntryID int64
	Patch   store.EntryPatch
}

type DeleteListEntry struct {
	EntryID int64
}

type SetLanguage struct {
	Language string
}

// Render effects. The engine turns the last one in a turn into the reply.

// RenderMessage shows a localized text. Menu attaches the main reply keyboard.
type RenderMessage struct {
	Key    string
	Params map[string]string
	Menu   bool
}

type RenderLanguageChoice struct{}

type RenderSearchType struct {
	Query string
}

type RenderSearchPage struct {
	Query    string
	Provider provider.Kind
	Page     int
	Total    int
	Items    []provider.SearchItem
}

type RenderEntityDetail struct {
	EntityID int64
	Origin   Origin
	Page     int
}

type RenderStatusPick struct {
	EntityID int64
	Origin   Origin
	Page     int
}

type RenderAdded struct {
	EntityID int64
	Status   store.Status
}

type RenderList struct {
	Entries     []*store.ListEntry
	Page        int
	Total       int
	Status      store.Status
	TitleFilter string
	Notice      string
}

type RenderEntry struct {
	EntryID int64
	Page    int
}

type RenderRatingChoice struct {
	EntryID int64
	Page    int
}

type RenderStatusEdit struct {
	EntryID int64
	Page    int
}

// RenderSeasonChoice draws the season stepper. Season 0 starts from the
// stored value, or 1 when none is set.
type RenderSeasonChoice struct {
	EntryID int64
	Page    int
	Season  int
}

type RenderDeleteConfirm struct {
	EntryID int64
	Page    int
}

type RenderProfile struct{}

type RenderHelp struct{}

// Acknowledge answers a button press without a new message. An empty Key
// answers silently.
type Acknowledge struct {
	Key   string
	Alert bool
}

func (SearchProvider) Name() string       { return "search_provider" }
func (FetchAndUpsert) Name() string       { return "fetch_and_upsert" }
func (QueryList) Name() string            { return "query_list" }
func (UpsertListEntry) Name() string      { return "upsert_list_entry" }
func (UpdateListEntry) Name() string      { return "update_list_entry" }
func (DeleteListEntry) Name() string      { return "delete_list_entry" }
func (SetLanguage) Name() string          { return "set_language" }
func (RenderMessage) Name() string        { return "render_message" }
func (RenderLanguageChoice) Name() string { return "render_language_choice" }
func (RenderSearchType) Name() string     { return "render_search_type" }
func (RenderSearchPage) Name() string     { return "render_search_page" }
func (RenderEntityDetail) Name() string   { return "render_entity_detail" }
func (RenderStatusPick) Name() string     { return "render_status_pick" }
func (RenderAdded) Name() string          { return "render_added" }
func (RenderList) Name() string           { return "render_list" }
func (RenderEntry) Name() string          { return "render_entry" }
func (RenderRatingChoice) Name() string   { return "render_rating_choice" }
func (RenderStatusEdit) Name() string     { return "render_status_edit" }
func (RenderSeasonChoice) Name() string   { return "render_season_choice" }
func (RenderDeleteConfirm) Name() string  { return "render_delete_confirm" }
func (RenderProfile) Name() string        { return "render_profile" }
func (RenderHelp) Name() string           { return "render_help" }
func (Acknowledge) Name() string          { return "acknowledge" }

// Outcome is the engine's report on one executed effect
type Outcome interface {
	isOutcome()
}

// Done reports success with nothing to hand back
type Done struct{}

type SearchDone struct {
	Items []provider.SearchItem
	Total int
}

type EntityResolved struct {
	ID int64
}

type ListDone struct {
	Entries []*store.ListEntry
	Total   int
	Count   int
}

// EntryResolved reports the list entry an entry screen was drawn for.
// Season is the stored season, 0 when unset.
type EntryResolved struct {
	EntityID int64
	Season   int
	IsSeries bool
}

// FailureKind classifies a failed effect
type FailureKind int

const (
	FailureInternal FailureKind = iota
	FailureProviderUnavailable
	FailureNotFound
	FailurePersistenceConflict
)

func (k FailureKind) String() string {
	switch k {
	case FailureProviderUnavailable:
		return "provider_unavailable"
	case FailureNotFound:
		return "not_found"
	case FailurePersistenceConflict:
		return "persistence_conflict"
	default:
		return "internal"
	}
}

type Failed struct {
	Kind FailureKind
	Err  error
}

func (f Failed) Error() string {
	if f.Err == nil {
		return f.Kind.String()
	}
	return fmt.Sprintf("%s: %v", f.Kind, f.Err)
}

func (Done) isOutcome()           {}
func (SearchDone) isOutcome()     {}
func (EntityResolved) isOutcome() {}
func (ListDone) isOutcome()       {}
func (EntryResolved) isOutcome()  {}
func (Failed) isOutcome()         {}
