// ABOUTME: Finite-state controller mapping (session, event) to a plan of effects
// ABOUTME: Global commands run first; button presses dispatch through an explicit state-to-handler map

package flow

import (
	"fmt"
	"strings"

	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/store"
)

// MenuResolver maps reply-keyboard labels back to commands.
// *i18n.Catalog implements it.
type MenuResolver interface {
	MenuCommand(text string) (i18n.Command, bool)
}

// handler processes a parsed button press for one state. It returns an error
// wrapping ErrInvalidPayload when the payload does not belong to the state.
type handler func(s *Session, p Payload) (Plan, error)

// Machine is the conversation state machine. It performs no I/O and is safe
// for concurrent use; all per-conversation data lives in the Session.
type Machine struct {
	handlers map[State]handler
	menu     MenuResolver
}

// NewMachine builds the machine with its state-to-handler table
func NewMachine(menu MenuResolver) *Machine {
	m := &Machine{menu: menu}
	m.handlers = map[State]handler{
		RootAwaitingLanguage: m.chooseLanguage,

		SearchAwaitingSearchType:      m.chooseSearchType,
		SearchAwaitingResultSelection: m.selectResult,
		SearchAwaitingEntityAction:    m.searchEntityAction,
		SearchAwaitingStatusChoice:    m.searchStatusChoice,

		ListAwaitingSelection:     m.listSelection,
		ListAwaitingEntityAction:  m.listEntityAction,
		ListAwaitingRatingChoice:  m.listRatingChoice,
		ListAwaitingStatusChoice:  m.listStatusChoice,
		ListAwaitingSeasonChoice:  m.listSeasonChoice,
		ListAwaitingDeleteConfirm: m.listDeleteConfirm,

		DeepLinkAwaitingEntityAction: m.deepLinkEntityAction,
		DeepLinkAwaitingStatusChoice: m.deepLinkStatusChoice,

		ProfileAwaitingAction: m.profileAction,
	}
	return m
}

// Step applies one event to the session and returns the effects to run
func (m *Machine) Step(s *Session, ev Event) Plan {
	s.Normalize()
	var p Plan
	switch e := ev.(type) {
	case Text:
		p = m.text(s, e.Body)
	case ButtonPress:
		p = m.button(s, e.Data)
	default:
		p = plan(RenderMessage{Key: i18n.KeyInvalidInput})
	}
	s.Normalize()
	return p
}

func (m *Machine) text(s *Session, body string) Plan {
	body = strings.TrimSpace(body)
	if body == "" {
		return plan(RenderMessage{Key: i18n.KeyInvalidInput})
	}
	if strings.HasPrefix(body, "/") {
		return m.command(s, body)
	}
	if m.menu != nil {
		if cmd, ok := m.menu.MenuCommand(body); ok {
			return m.menuCommand(s, cmd)
		}
	}

	switch s.State {
	case RootAwaitingLanguage:
		return plan(RenderLanguageChoice{})
	default:
		return startQuery(s, body)
	}
}

func (m *Machine) command(s *Session, body string) Plan {
	fields := strings.Fields(body)
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")

	switch name {
	case "/start":
		if len(fields) > 1 {
			if id, ok := ParseStartParam(fields[1]); ok {
				return openDeepLink(s, id)
			}
		}
		if s.Language == "" {
			s.Reset()
			s.State = RootAwaitingLanguage
			return plan(RenderLanguageChoice{})
		}
		return restart(s)
	case "/restart":
		return restart(s)
	case "/help":
		s.Reset()
		return plan(RenderHelp{})
	case "/list":
		return m.menuCommand(s, i18n.CommandList)
	case "/profile":
		return m.menuCommand(s, i18n.CommandProfile)
	default:
		return plan(RenderMessage{Key: i18n.KeyUnknownCommand})
	}
}

func (m *Machine) menuCommand(s *Session, cmd i18n.Command) Plan {
	switch cmd {
	case i18n.CommandList:
		return startList(s, "", store.StatusAll)
	case i18n.CommandProfile:
		s.Reset()
		s.State = ProfileAwaitingAction
		return plan(RenderProfile{})
	default:
		return restart(s)
	}
}

func (m *Machine) button(s *Session, data string) Plan {
	p, err := ParsePayload(data)
	if err != nil {
		return invalid()
	}

	switch p.Action {
	case ActCancel, ActSearchCancel, ActDeepLinkCancel:
		return restart(s)
	case ActNoop:
		return plan(Acknowledge{})
	case ActSearchAdded:
		return plan(Acknowledge{Key: i18n.KeyAlreadyAdded})
	}

	h, ok := m.handlers[s.State]
	if !ok {
		return invalid()
	}
	out, err := h(s, p)
	if err != nil {
		return invalid()
	}
	return out
}

// Observe feeds the outcome of an executed effect back into the machine. A
// non-nil plan replaces whatever effects remained in the turn.
func (m *Machine) Observe(s *Session, eff Effect, out Outcome) *Plan {
	next := m.observe(s, eff, out)
	s.Normalize()
	return next
}

func (m *Machine) observe(s *Session, eff Effect, out Outcome) *Plan {
	failed, isFailure := out.(Failed)

	switch e := eff.(type) {
	case SearchProvider:
		if isFailure {
			return fail(s, i18n.KeyErrorResults)
		}
		return observeSearch(s, e, out)
	case FetchAndUpsert:
		if isFailure {
			return failEntity(s, failed)
		}
		if r, ok := out.(EntityResolved); ok {
			s.CurrentEntityID = r.ID
			return redirect(RenderEntityDetail{EntityID: r.ID, Origin: OriginSearch, Page: e.Page})
		}
	case RenderEntityDetail, RenderStatusPick, RenderAdded:
		if isFailure {
			return fail(s, i18n.KeyErrorEntity)
		}
	case QueryList:
		if isFailure {
			return fail(s, i18n.KeyError)
		}
		return observeList(s, e, out)
	case RenderEntry, RenderRatingChoice, RenderStatusEdit, RenderDeleteConfirm:
		if isFailure {
			return fail(s, i18n.KeyErrorEntity)
		}
		if r, ok := out.(EntryResolved); ok {
			s.CurrentEntityID = r.EntityID
		}
	case RenderSeasonChoice:
		if isFailure {
			return fail(s, i18n.KeyErrorEntity)
		}
		return observeSeasonChoice(s, e, out)
	case UpsertListEntry:
		if isFailure {
			return failEntity(s, failed)
		}
	case UpdateListEntry:
		if isFailure {
			return failEntity(s, failed)
		}
	case DeleteListEntry:
		// An entry that is already gone counts as deleted; the list redraw
		// queued behind the delete shows the notice either way.
		if isFailure && failed.Kind != FailureNotFound {
			return fail(s, i18n.KeyError)
		}
	case SetLanguage:
		if isFailure {
			return fail(s, i18n.KeyError)
		}
	}
	return nil
}

func invalid() Plan {
	return plan(Acknowledge{Key: i18n.KeyInvalidInput})
}

func restart(s *Session) Plan {
	s.Reset()
	return plan(RenderMessage{Key: i18n.KeyStart, Menu: true})
}

// fail resets the session and replaces the rest of the turn with a message
func fail(s *Session, key string) *Plan {
	s.Reset()
	return redirect(RenderMessage{Key: key, Menu: true})
}

func failEntity(s *Session, f Failed) *Plan {
	if f.Kind == FailureNotFound || f.Kind == FailureProviderUnavailable {
		return fail(s, i18n.KeyErrorEntity)
	}
	return fail(s, i18n.KeyError)
}

func invalidf(p Payload) error {
	return fmt.Errorf("%w: %s not accepted here", ErrInvalidPayload, p)
}
