// ABOUTME: Search flow handlers: search type choice, result paging, detail and add-to-list
// ABOUTME: Provider results are cached on the session so "back" can redraw without a new request

package flow

import (
	"github.com/vistly/vistly-bot/internal/i18n"
	"github.com/vistly/vistly-bot/internal/store"
)

// startQuery begins a new search for text typed by the user
func startQuery(s *Session, query string) Plan {
	s.Reset()
	s.State = SearchAwaitingSearchType
	s.PendingQuery = query
	return plan(RenderSearchType{Query: query})
}

func (m *Machine) chooseSearchType(s *Session, p Payload) (Plan, error) {
	switch p.Action {
	case ActSearchGlobal:
		s.Provider = SelectProvider(s.PendingQuery)
		s.State = SearchAwaitingResultSelection
		s.Page = 1
		s.clearResults()
		return plan(SearchProvider{Provider: s.Provider, Query: s.PendingQuery, Page: 1}), nil
	case ActSearchLocal:
		return startList(s, s.PendingQuery, store.StatusAll), nil
	}
	return Plan{}, invalidf(p)
}

func (m *Machine) selectResult(s *Session, p Payload) (Plan, error) {
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}

	switch p.Action {
	case ActResultsPage:
		if s.ResultsTotal > 0 {
			page = ClampPage(page, TotalPages(s.ResultsTotal))
		}
		s.Page = page
		if s.cachedResults(page) {
			return plan(s.searchPage()), nil
		}
		return plan(SearchProvider{Provider: s.Provider, Query: s.PendingQuery, Page: page}), nil
	case ActResultSelect:
		id := p.Arg(1)
		if !s.hasResult(id) {
			return Plan{}, invalidf(p)
		}
		s.State = SearchAwaitingEntityAction
		s.Page = page
		return plan(FetchAndUpsert{Provider: s.Provider, ExternalID: id, Page: page}), nil
	case ActResultsFilter:
		return plan(Acknowledge{Key: i18n.KeyFeatureDeveloping}), nil
	}
	return Plan{}, invalidf(p)
}

func (m *Machine) searchEntityAction(s *Session, p Payload) (Plan, error) {
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}

	switch p.Action {
	case ActSearchAdd:
		if err := s.requireEntity(p, 1); err != nil {
			return Plan{}, err
		}
		s.State = SearchAwaitingStatusChoice
		return plan(RenderStatusPick{EntityID: s.CurrentEntityID, Origin: OriginSearch, Page: page}), nil
	case ActSearchBack:
		if len(p.Args) != 1 {
			break
		}
		s.State = SearchAwaitingResultSelection
		s.Page = page
		if s.cachedResults(page) {
			return plan(s.searchPage()), nil
		}
		return plan(SearchProvider{Provider: s.Provider, Query: s.PendingQuery, Page: page}), nil
	}
	return Plan{}, invalidf(p)
}

func (m *Machine) searchStatusChoice(s *Session, p Payload) (Plan, error) {
	page, err := p.Page(0)
	if err != nil {
		return Plan{}, err
	}
	if err := s.requireEntity(p, 1); err != nil {
		return Plan{}, err
	}
	entityID := s.CurrentEntityID

	switch p.Action {
	case ActSearchBack:
		if len(p.Args) != 2 {
			break
		}
		s.State = SearchAwaitingEntityAction
		return plan(RenderEntityDetail{EntityID: entityID, Origin: OriginSearch, Page: page}), nil
	case ActSearchStatus:
		status := store.Status(p.Arg(2))
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

func observeSearch(s *Session, e SearchProvider, out Outcome) *Plan {
	res, ok := out.(SearchDone)
	if !ok {
		return nil
	}
	if res.Total <= 0 || (len(res.Items) == 0 && e.Page <= 1) {
		s.Reset()
		return redirect(RenderMessage{
			Key:    i18n.KeyNothingFound,
			Params: map[string]string{"query": e.Query},
			Menu:   true,
		})
	}
	if len(res.Items) == 0 {
		// Paged past the end; the total tells us where the end is
		last := ClampPage(e.Page, TotalPages(res.Total))
		if last == e.Page {
			return fail(s, i18n.KeyErrorResults)
		}
		s.Page = last
		return redirect(SearchProvider{Provider: e.Provider, Query: e.Query, Page: last})
	}

	s.Page = e.Page
	s.Results = res.Items
	s.ResultsPage = e.Page
	s.ResultsTotal = res.Total
	return redirect(s.searchPage())
}

func (s *Session) searchPage() RenderSearchPage {
	return RenderSearchPage{
		Query:    s.PendingQuery,
		Provider: s.Provider,
		Page:     s.ResultsPage,
		Total:    s.ResultsTotal,
		Items:    s.Results,
	}
}

// requireEntity checks that argument i names the entity the session points at
func (s *Session) requireEntity(p Payload, i int) error {
	id, err := p.ID(i)
	if err != nil {
		return err
	}
	if s.CurrentEntityID == 0 || id != s.CurrentEntityID {
		return invalidf(p)
	}
	return nil
}

// requireEntry checks that argument i names the list entry the session points at
func (s *Session) requireEntry(p Payload, i int) (int64, error) {
	id, err := p.ID(i)
	if err != nil {
		return 0, err
	}
	if s.CurrentEntryID == 0 || id != s.CurrentEntryID {
		return 0, invalidf(p)
	}
	return id, nil
}
