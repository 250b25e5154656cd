// ABOUTME: Tests for memory and store-backed session persistence
// ABOUTME: Checks copy isolation, JSON round trips and recovery from unreadable blobs

package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vistly/vistly-bot/internal/flow"
	"github.com/vistly/vistly-bot/internal/provider"
	"github.com/vistly/vistly-bot/internal/store"
)

func searchSession(id string) *flow.Session {
	s := flow.NewSession(id)
	s.State = flow.SearchAwaitingResultSelection
	s.Language = "ru"
	s.PendingQuery = "Брат"
	s.Provider = provider.Kinopoisk
	s.Page = 2
	s.Results = []provider.SearchItem{{ExternalID: "41519", Title: "Брат", Type: store.EntityMovie}}
	s.ResultsPage = 2
	s.ResultsTotal = 23
	return s
}

func TestMemorySessions(t *testing.T) {
	ctx := context.Background()
	m := NewMemorySessions()

	fresh, err := m.Load(ctx, "telegram:1")
	require.NoError(t, err)
	assert.Equal(t, flow.RootAwaitingQuery, fresh.State)
	assert.Equal(t, "telegram:1", fresh.ConversationID)
	assert.Zero(t, m.Len(), "loading does not create")

	s := searchSession("telegram:1")
	require.NoError(t, m.Save(ctx, s))
	s.Results[0].Title = "mutated after save"

	got, err := m.Load(ctx, "telegram:1")
	require.NoError(t, err)
	assert.Equal(t, "Брат", got.Results[0].Title, "saved sessions are copies")

	got.Results[0].Title = "mutated after load"
	again, _ := m.Load(ctx, "telegram:1")
	assert.Equal(t, "Брат", again.Results[0].Title)

	require.NoError(t, m.Delete(ctx, "telegram:1"))
	assert.Zero(t, m.Len())
}

func TestStoreSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	ss := NewStoreSessions(st, nil)

	s := searchSession("matrix:!room")
	require.NoError(t, ss.Save(ctx, s))

	got, err := ss.Load(ctx, "matrix:!room")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	require.NoError(t, ss.Delete(ctx, "matrix:!room"))
	require.NoError(t, ss.Delete(ctx, "matrix:!room"), "deleting twice is fine")

	fresh, err := ss.Load(ctx, "matrix:!room")
	require.NoError(t, err)
	assert.Equal(t, flow.NewSession("matrix:!room"), fresh)
}

func TestStoreSessionsUnreadableBlob(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	require.NoError(t, st.SaveSession(ctx, "telegram:9", []byte("{not json")))

	got, err := NewStoreSessions(st, nil).Load(ctx, "telegram:9")
	require.NoError(t, err)
	assert.Equal(t, flow.RootAwaitingQuery, got.State)
}

func TestStoreSessionsNormalizesUnknownState(t *testing.T) {
	ctx := context.Background()
	st := store.NewMockStore()
	require.NoError(t, st.SaveSession(ctx, "telegram:9", []byte(`{"state":"Legacy.State","language":"en","page":0}`)))

	got, err := NewStoreSessions(st, nil).Load(ctx, "telegram:9")
	require.NoError(t, err)
	assert.Equal(t, flow.RootAwaitingQuery, got.State)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, 1, got.Page)
}
