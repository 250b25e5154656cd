// ABOUTME: Executes state-machine effects against providers, the store and the renderer
// ABOUTME: Every collaborator error becomes a classified Failed outcome; render effects also yield the reply

package bot

import (
	"errors"
	"fmt"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/render"
	"github.com/vistly/vistly-bot/internal/store"
)

// execute runs one effect. The instruction is non-nil for render effects
// that succeeded.
func (t *turn) execute(eff flow.Effect) (flow.Outcome, *render.Instruction) {
	r := t.engine.renderer
	lang := t.lang()
	show := func(in render.Instruction, out flow.Outcome) (flow.Outcome, *render.Instruction) {
		return out, &in
	}

	switch e := eff.(type) {
	case flow.SearchProvider:
		return t.search(e), nil
	case flow.FetchAndUpsert:
		return t.fetchAndUpsert(e), nil
	case flow.QueryList:
		return t.queryList(e), nil
	case flow.UpsertListEntry:
		return t.upsertListEntry(e), nil
	case flow.UpdateListEntry:
		if _, err := t.ownEntry(e.EntryID); err != nil {
			return failed(err), nil
		}
		if err := t.engine.store.UpdateListEntry(t.ctx, e.EntryID, e.Patch); err != nil {
			return failed(fmt.Errorf("updating list entry %d: %w", e.EntryID, err)), nil
		}
		return flow.Done{}, nil
	case flow.DeleteListEntry:
		if _, err := t.ownEntry(e.EntryID); err != nil {
			return failed(err), nil
		}
		if err := t.engine.store.DeleteListEntry(t.ctx, e.EntryID); err != nil {
			return failed(fmt.Errorf("deleting list entry %d: %w", e.EntryID, err)), nil
		}
		return flow.Done{}, nil
	case flow.SetLanguage:
		if err := t.engine.store.SetUserLanguage(t.ctx, t.user.ID, e.Language); err != nil {
			return failed(fmt.Errorf("setting language: %w", err)), nil
		}
		t.user.Language = e.Language
		return flow.Done{}, nil

	case flow.RenderMessage:
		return show(r.Message(lang, e.Key, e.Params, e.Menu), flow.Done{})
	case flow.RenderLanguageChoice:
		return show(r.LanguageChoice(t.preferred), flow.Done{})
	case flow.RenderHelp:
		return show(r.Help(lang), flow.Done{})
	case flow.RenderSearchType:
		return show(r.SearchType(lang), flow.Done{})
	case flow.RenderSearchPage:
		return show(r.SearchPage(lang, e.Query, e.Page, e.Total, e.Items), flow.Done{})
	case flow.Acknowledge:
		return show(r.Ack(lang, e.Key, e.Alert), flow.Done{})

	case flow.RenderEntityDetail:
		ent, err := t.entity(e.EntityID)
		if err != nil {
			return failed(err), nil
		}
		added, err := t.inList(ent)
		if err != nil {
			return failed(err), nil
		}
		return show(r.EntityDetail(lang, ent, e.Origin, e.Page, added), flow.Done{})
	case flow.RenderStatusPick:
		ent, err := t.entity(e.EntityID)
		if err != nil {
			return failed(err), nil
		}
		return show(r.StatusPick(lang, ent, e.Origin, e.Page), flow.Done{})
	case flow.RenderAdded:
		ent, err := t.entity(e.EntityID)
		if err != nil {
			return failed(err), nil
		}
		return show(r.Added(lang, ent, e.Status), flow.Done{})
	case flow.RenderList:
		return show(r.List(lang, render.ListPage{
			Entries:     e.Entries,
			Page:        e.Page,
			Total:       e.Total,
			Status:      e.Status,
			TitleFilter: e.TitleFilter,
			Notice:      e.Notice,
		}), flow.Done{})

	case flow.RenderEntry:
		return t.entryScreen(e.EntryID, func(le *store.ListEntry) render.Instruction {
			return r.Entry(lang, le, e.Page)
		})
	case flow.RenderRatingChoice:
		return t.entryScreen(e.EntryID, func(le *store.ListEntry) render.Instruction {
			return r.RatingChoice(lang, le, e.Page)
		})
	case flow.RenderStatusEdit:
		return t.entryScreen(e.EntryID, func(le *store.ListEntry) render.Instruction {
			return r.StatusEdit(lang, le, e.Page)
		})
	case flow.RenderDeleteConfirm:
		return t.entryScreen(e.EntryID, func(le *store.ListEntry) render.Instruction {
			return r.DeleteConfirm(lang, le, e.Page)
		})
	case flow.RenderSeasonChoice:
		return t.entryScreen(e.EntryID, func(le *store.ListEntry) render.Instruction {
			season := e.Season
			if season <= 0 {
				season = flow.StepSeason(storedSeason(le), 0)
			}
			return r.SeasonChoice(lang, le, e.Page, season)
		})

	case flow.RenderProfile:
		n, err := t.engine.store.CountListEntries(t.ctx, t.user.ID)
		if err != nil {
			return failed(fmt.Errorf("counting list entries: %w", err)), nil
		}
		return show(r.Profile(lang, t.user, n), flow.Done{})
	}

	return flow.Failed{Kind: flow.FailureInternal, Err: fmt.Errorf("unhandled effect %s", eff.Name())}, nil
}

func (t *turn) search(e flow.SearchProvider) flow.Outcome {
	p, err := t.engine.providers.Get(e.Provider)
	if err != nil {
		return failed(err)
	}
	page, err := p.Search(t.ctx, e.Query, e.Page)
	if err != nil {
		return failed(fmt.Errorf("searching %s: %w", e.Provider, err))
	}
	return flow.SearchDone{Items: page.Items, Total: page.Total}
}

// fetchAndUpsert loads the provider detail and stores it as a canonical
// entity with its ratings.
func (t *turn) fetchAndUpsert(e flow.FetchAndUpsert) flow.Outcome {
	p, err := t.engine.providers.Get(e.Provider)
	if err != nil {
		return failed(err)
	}
	d, err := p.FetchDetail(t.ctx, e.ExternalID)
	if err != nil {
		return failed(fmt.Errorf("fetching %s %s: %w", e.Provider, e.ExternalID, err))
	}

	ent := d.Entity
	id, err := retryConflict(func() (int64, error) {
		return t.engine.store.UpsertEntity(t.ctx, &ent)
	})
	if err != nil {
		return failed(fmt.Errorf("upserting entity %s: %w", e.ExternalID, err))
	}
	for _, rating := range d.Ratings {
		if err := t.engine.store.UpsertRating(t.ctx, id, rating); err != nil {
			return failed(fmt.Errorf("upserting rating %s: %w", rating.Source, err))
		}
	}
	return flow.EntityResolved{ID: id}
}

func (t *turn) queryList(e flow.QueryList) flow.Outcome {
	page := max(e.Page, 1)
	entries, total, err := t.engine.store.QueryListEntries(t.ctx, store.ListQuery{
		UserID:      t.user.ID,
		TitleFilter: e.TitleFilter,
		Status:      e.Status,
		Limit:       flow.PageSize,
		Offset:      (page - 1) * flow.PageSize,
	})
	if err != nil {
		return failed(fmt.Errorf("querying list: %w", err))
	}
	return flow.ListDone{Entries: entries, Total: total, Count: len(entries)}
}

// upsertListEntry adds the entity to the user's list. The store resolves a
// title already listed under the other provider's entity row to that entry.
func (t *turn) upsertListEntry(e flow.UpsertListEntry) flow.Outcome {
	_, err := retryConflict(func() (int64, error) {
		id, _, err := t.engine.store.UpsertListEntry(t.ctx, t.user.ID, e.EntityID, e.Status)
		return id, err
	})
	if err != nil {
		return failed(fmt.Errorf("adding entity %d to list: %w", e.EntityID, err))
	}
	return flow.Done{}
}

func (t *turn) entity(id int64) (*store.Entity, error) {
	ent, err := t.engine.store.GetEntity(t.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading entity %d: %w", id, err)
	}
	return ent, nil
}

func (t *turn) inList(ent *store.Entity) (bool, error) {
	_, err := t.engine.store.FindListEntry(t.ctx, t.user.ID, ent)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("checking list for entity %d: %w", ent.ID, err)
	}
}

// ownEntry loads a list entry and checks it belongs to the acting user.
// Another user's entry is reported as not found.
func (t *turn) ownEntry(id int64) (*store.ListEntry, error) {
	le, err := t.engine.store.GetListEntry(t.ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading list entry %d: %w", id, err)
	}
	if le.UserID != t.user.ID {
		return nil, fmt.Errorf("list entry %d: %w", id, store.ErrNotFound)
	}
	return le, nil
}

func (t *turn) entryScreen(id int64, draw func(*store.ListEntry) render.Instruction) (flow.Outcome, *render.Instruction) {
	le, err := t.ownEntry(id)
	if err != nil {
		return failed(err), nil
	}
	if le.Entity == nil {
		return failed(fmt.Errorf("list entry %d has no entity: %w", id, store.ErrNotFound)), nil
	}
	in := draw(le)
	return flow.EntryResolved{
		EntityID: le.EntityID,
		Season:   storedSeason(le),
		IsSeries: le.Entity.IsSeries(),
	}, &in
}

func storedSeason(le *store.ListEntry) int {
	if le.Season == nil {
		return 0
	}
	return *le.Season
}
