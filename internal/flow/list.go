// ABOUTME: List flow handlers: filtering, paging and the rate/status/season/delete sub-flows
// ABOUTME: Every mutation is scoped to the entry the session points at and returns to the entry screen

package flow

import (
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/store"
)

// startList opens the user's list, optionally filtered by a title substring
func startList(s *Session, titleFilter string, status store.Status) Plan {
	s.Reset()
	s.State = ListAwaitingSelection
	s.TitleFilter = titleFilter
	s.StatusFilter = status
	return plan(s.queryList(1, ""))
}

func (s *Session) queryList(page int, notice string) QueryList {
	s.Page = page
	return QueryList{TitleFilter: s.TitleFilter, Status: s.StatusFilter, Page: page, Notice: notice}
}

func (m *Machine) listSelection(s *Session, p Payload) (Plan, error) {
	switch p.Action {
	case ActListPage:
		page, err := p.Page(0)
		if err != nil {
			return Plan{}, err
		}
		if s.ListTotal > 0 {
			page = ClampPage(page, TotalPages(s.ListTotal))
		}
		return plan(s.queryList(page, "")), nil
	case ActListStatus:
		status := store.Status(p.Arg(0))
		if !status.ValidFilter() {
			break
		}
		s.StatusFilter = status
		return plan(s.queryList(1, "")), nil
	case ActListSelect:
		page, err := p.Page(0)
		if err != nil {
			return Plan{}, err
		}
		id, err := p.ID(1)
		if err != nil {
			return Plan{}, err
		}
		s.State = ListAwaitingEntityAction
		s.CurrentEntryID = id
		s.Page = page
		return plan(RenderEntry{EntryID: id, Page: page}), nil
	case ActSetDelete:
		// A repeated "yes" on the confirm message just answered
		id, err := p.ID(1)
		if err != nil {
			return Plan{}, err
		}
		if s.DeletedEntryID == 0 || id != s.DeletedEntryID {
			break
		}
		return deleteEntry(s, p)
	}
	return Plan{}, invalidf(p)
}

func (m *Machine) listEntityAction(s *Session, p Payload) (Plan, error) {
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}
	if p.Action == ActListBack {
		if len(p.Args) != 1 {
			return Plan{}, invalidf(p)
		}
		s.State = ListAwaitingSelection
		return plan(s.queryList(page, "")), nil
	}

	id, err := s.requireEntry(p, 1)
	if err != nil {
		return Plan{}, err
	}

	var next State
	var eff Effect
	switch p.Action {
	case ActListSelectRate:
		next, eff = ListAwaitingRatingChoice, RenderRatingChoice{EntryID: id, Page: page}
	case ActListSelectStatus:
		next, eff = ListAwaitingStatusChoice, RenderStatusEdit{EntryID: id, Page: page}
	case ActListSelectSeason:
		next, eff = ListAwaitingSeasonChoice, RenderSeasonChoice{EntryID: id, Page: page}
	case ActListSelectDelete:
		next, eff = ListAwaitingDeleteConfirm, RenderDeleteConfirm{EntryID: id, Page: page}
	default:
		return Plan{}, invalidf(p)
	}
	s.State = next
	s.Page = page
	return plan(eff), nil
}

// backToEntry handles the two-argument ls_back shared by every sub-flow
func backToEntry(s *Session, p Payload) (Plan, bool, error) {
	if p.Action != ActListBack {
		return Plan{}, false, nil
	}
	if len(p.Args) != 2 {
		return Plan{}, true, invalidf(p)
	}
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, true, err
	}
	id, err := s.requireEntry(p, 1)
	if err != nil {
		return Plan{}, true, err
	}
	s.State = ListAwaitingEntityAction
	s.Page = page
	return plan(RenderEntry{EntryID: id, Page: page}), true, nil
}

// applyPatch updates the entry and returns to its screen
func applyPatch(s *Session, id int64, page int, patch store.EntryPatch) Plan {
	s.State = ListAwaitingEntityAction
	s.Page = page
	return plan(
		UpdateListEntry{EntryID: id, Patch: patch},
		RenderEntry{EntryID: id, Page: page},
	)
}

func (m *Machine) listRatingChoice(s *Session, p Payload) (Plan, error) {
	if out, handled, err := backToEntry(s, p); handled {
		return out, err
	}
	if p.Action != ActSetRating {
		return Plan{}, invalidf(p)
	}
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}
	id, err := s.requireEntry(p, 1)
	if err != nil {
		return Plan{}, err
	}
	rating, err := p.Int(2)
	if err != nil || rating < store.MinUserRating || rating > store.MaxUserRating {
		return Plan{}, invalidf(p)
	}
	return applyPatch(s, id, page, store.EntryPatch{Rating: &rating}), nil
}

func (m *Machine) listStatusChoice(s *Session, p Payload) (Plan, error) {
	if out, handled, err := backToEntry(s, p); handled {
		return out, err
	}
	if p.Action != ActSetStatus {
		return Plan{}, invalidf(p)
	}
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}
	id, err := s.requireEntry(p, 1)
	if err != nil {
		return Plan{}, err
	}
	status := store.Status(p.Arg(2))
	if !status.Valid() {
		return Plan{}, invalidf(p)
	}
	return applyPatch(s, id, page, store.EntryPatch{Status: &status}), nil
}

func (m *Machine) listSeasonChoice(s *Session, p Payload) (Plan, error) {
	if out, handled, err := backToEntry(s, p); handled {
		return out, err
	}
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}
	id, err := s.requireEntry(p, 1)
	if err != nil {
		return Plan{}, err
	}

	switch p.Action {
	case ActSetSeason:
		n, err := p.Int(2)
		if err != nil {
			return Plan{}, err
		}
		s.PendingSeason = StepSeason(n, 0)
		s.Page = page
		return plan(RenderSeasonChoice{EntryID: id, Page: page, Season: s.PendingSeason}), nil
	case ActSetSeasonConfirm:
		n, err := p.Int(2)
		if err != nil {
			return Plan{}, err
		}
		season := StepSeason(n, 0)
		return applyPatch(s, id, page, store.EntryPatch{Season: &season}), nil
	case ActSetSeasonClean:
		return applyPatch(s, id, page, store.EntryPatch{ClearSeason: true}), nil
	}
	return Plan{}, invalidf(p)
}

func (m *Machine) listDeleteConfirm(s *Session, p Payload) (Plan, error) {
	if out, handled, err := backToEntry(s, p); handled {
		return out, err
	}
	if p.Action != ActSetDelete {
		return Plan{}, invalidf(p)
	}
	if _, err := s.requireEntry(p, 1); err != nil {
		return Plan{}, err
	}
	return deleteEntry(s, p)
}

// deleteEntry removes the entry and returns to the first list page
func deleteEntry(s *Session, p Payload) (Plan, error) {
	if _, err := p.Page(0); err != nil {
		return Plan{}, err
	}
	id, err := p.ID(1)
	if err != nil {
		return Plan{}, err
	}
	if p.Arg(2) != deleteConfirm {
		return Plan{}, invalidf(p)
	}
	s.State = ListAwaitingSelection
	s.DeletedEntryID = id
	return plan(DeleteListEntry{EntryID: id}, s.queryList(1, i18n.KeyDeleted)), nil
}

func observeList(s *Session, e QueryList, out Outcome) *Plan {
	res, ok := out.(ListDone)
	if !ok {
		return nil
	}

	if res.Total == 0 {
		switch {
		case e.Status.Valid():
			// Stay in the list so the status buttons remain usable
			s.ListTotal = 0
			s.Page = 1
			return redirect(RenderList{Page: 1, Status: e.Status, TitleFilter: e.TitleFilter, Notice: e.Notice})
		case e.TitleFilter != "":
			s.Reset()
			return redirect(RenderMessage{
				Key:    i18n.KeyNothingFound,
				Params: map[string]string{"query": e.TitleFilter},
				Menu:   true,
			})
		default:
			s.Reset()
			return redirect(RenderMessage{Key: i18n.KeyListEmpty, Menu: true})
		}
	}

	if len(res.Entries) == 0 {
		last := ClampPage(e.Page, TotalPages(res.Total))
		if last == e.Page {
			return fail(s, i18n.KeyError)
		}
		return redirect(s.queryList(last, e.Notice))
	}

	s.ListTotal = res.Total
	s.Page = e.Page
	return redirect(RenderList{
		Entries:     res.Entries,
		Page:        e.Page,
		Total:       res.Total,
		Status:      e.Status,
		TitleFilter: e.TitleFilter,
		Notice:      e.Notice,
	})
}

func observeSeasonChoice(s *Session, e RenderSeasonChoice, out Outcome) *Plan {
	r, ok := out.(EntryResolved)
	if !ok {
		return nil
	}
	s.CurrentEntityID = r.EntityID
	if !r.IsSeries {
		s.State = ListAwaitingEntityAction
		return redirect(RenderEntry{EntryID: e.EntryID, Page: e.Page})
	}
	if e.Season > 0 {
		s.PendingSeason = e.Season
	} else {
		s.PendingSeason = StepSeason(r.Season, 0)
	}
	return nil
}
