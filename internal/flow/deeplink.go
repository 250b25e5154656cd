// ABOUTME: Deep-link and root handlers: /start entity_<id>, language choice and profile actions
// ABOUTME: A deep link from a user without a language detours through the language prompt first

package flow

import (
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/store"
)

// openDeepLink jumps straight to the detail screen of entityID
func openDeepLink(s *Session, entityID int64) Plan {
	s.Reset()
	if s.Language == "" {
		s.State = RootAwaitingLanguage
		s.DeepLinkEntityID = entityID
		return plan(RenderLanguageChoice{})
	}
	s.State = DeepLinkAwaitingEntityAction
	s.CurrentEntityID = entityID
	return plan(RenderEntityDetail{EntityID: entityID, Origin: OriginDeepLink, Page: 1})
}

func (m *Machine) chooseLanguage(s *Session, p Payload) (Plan, error) {
	if p.Action != ActLang {
		return Plan{}, invalidf(p)
	}
	lang := p.Arg(0)
	if lang != i18n.English && lang != i18n.Russian {
		return Plan{}, invalidf(p)
	}
	s.Language = lang
	set := SetLanguage{Language: lang}

	if id := s.DeepLinkEntityID; id != 0 {
		next := openDeepLink(s, id)
		return plan(append([]Effect{set}, next.Effects...)...), nil
	}
	s.Reset()
	return plan(set, RenderMessage{Key: i18n.KeyStart, Menu: true}), nil
}

func (m *Machine) deepLinkEntityAction(s *Session, p Payload) (Plan, error) {
	if p.Action != ActDeepLinkAdd {
		return Plan{}, invalidf(p)
	}
	if err := s.requireEntity(p, 0); err != nil {
		return Plan{}, err
	}
	s.State = DeepLinkAwaitingStatusChoice
	return plan(RenderStatusPick{EntityID: s.CurrentEntityID, Origin: OriginDeepLink, Page: 1}), nil
}

func (m *Machine) deepLinkStatusChoice(s *Session, p Payload) (Plan, error) {
	if err := s.requireEntity(p, 0); err != nil {
		return Plan{}, err
	}
	entityID := s.CurrentEntityID

	switch p.Action {
	case ActDeepLinkBack:
		s.State = DeepLinkAwaitingEntityAction
		return plan(RenderEntityDetail{EntityID: entityID, Origin: OriginDeepLink, Page: 1}), nil
	case ActDeepLinkStatus:
		status := store.Status(p.Arg(1))
		if !status.Valid() {
			break
		}
		s.Reset()
		return plan(
			UpsertListEntry{EntityID: entityID, Status: status},
			RenderAdded{EntityID: entityID, Status: status},
		), nil
	}
	return Plan{}, invalidf(p)
}

func (m *Machine) profileAction(s *Session, p Payload) (Plan, error) {
	switch p.Action {
	case ActProfileLang:
		lang := i18n.Russian
		if s.Language == i18n.Russian {
			lang = i18n.English
		}
		s.Language = lang
		return plan(SetLanguage{Language: lang}, RenderProfile{}), nil
	case ActProfileShare:
		return plan(Acknowledge{Key: i18n.KeyFeatureDeveloping}), nil
	}
	return Plan{}, invalidf(p)
}
