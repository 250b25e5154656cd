// ABOUTME: Conversation state enumeration and per-state scoping rules
// ABOUTME: States are grouped by flow; helpers report which session fields a state may hold

package flow

import "strings"

// State is the position of a conversation inside one of the flows
type State string

const (
	RootAwaitingLanguage State = "Root.AwaitingLanguage"
	RootAwaitingQuery    State = "Root.AwaitingQuery"

	SearchAwaitingSearchType      State = "Search.AwaitingSearchTypeChoice"
	SearchAwaitingResultSelection State = "Search.AwaitingResultSelection"
	SearchAwaitingEntityAction    State = "Search.AwaitingEntityAction"
	SearchAwaitingStatusChoice    State = "Search.AwaitingStatusChoice"

	ListAwaitingSelection     State = "List.AwaitingSelection"
	ListAwaitingEntityAction  State = "List.AwaitingEntityAction"
	ListAwaitingRatingChoice  State = "List.AwaitingRatingChoice"
	ListAwaitingStatusChoice  State = "List.AwaitingStatusChoice"
	ListAwaitingSeasonChoice  State = "List.AwaitingSeasonChoice"
	ListAwaitingDeleteConfirm State = "List.AwaitingDeleteConfirm"

	DeepLinkAwaitingEntityAction State = "DeepLink.AwaitingEntityAction"
	DeepLinkAwaitingStatusChoice State = "DeepLink.AwaitingStatusChoice"

	ProfileAwaitingAction State = "Profile.AwaitingAction"
)

// States lists every declared state
var States = []State{
	RootAwaitingLanguage, RootAwaitingQuery,
	SearchAwaitingSearchType, SearchAwaitingResultSelection, SearchAwaitingEntityAction, SearchAwaitingStatusChoice,
	ListAwaitingSelection, ListAwaitingEntityAction, ListAwaitingRatingChoice, ListAwaitingStatusChoice,
	ListAwaitingSeasonChoice, ListAwaitingDeleteConfirm,
	DeepLinkAwaitingEntityAction, DeepLinkAwaitingStatusChoice,
	ProfileAwaitingAction,
}

// Valid reports whether s is one of the declared states
func (s State) Valid() bool {
	for _, st := range States {
		if s == st {
			return true
		}
	}
	return false
}

// Flow returns the flow prefix of s, e.g. "List"
func (s State) Flow() string {
	flow, _, _ := strings.Cut(string(s), ".")
	return flow
}

func (s State) IsRoot() bool     { return s.Flow() == "Root" }
func (s State) IsSearch() bool   { return s.Flow() == "Search" }
func (s State) IsList() bool     { return s.Flow() == "List" }
func (s State) IsDeepLink() bool { return s.Flow() == "DeepLink" }

// holdsEntity reports whether a current entity id belongs in s
func (s State) holdsEntity() bool {
	switch s {
	case SearchAwaitingEntityAction, SearchAwaitingStatusChoice,
		DeepLinkAwaitingEntityAction, DeepLinkAwaitingStatusChoice:
		return true
	}
	return s.holdsEntry()
}

// holdsEntry reports whether a current list entry id belongs in s
func (s State) holdsEntry() bool {
	switch s {
	case ListAwaitingEntityAction, ListAwaitingRatingChoice, ListAwaitingStatusChoice,
		ListAwaitingSeasonChoice, ListAwaitingDeleteConfirm:
		return true
	}
	return false
}
