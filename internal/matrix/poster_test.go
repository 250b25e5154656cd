// ABOUTME: Tests for poster downloads
// ABOUTME: Uses an httptest server with a plain client since the safe client refuses loopback

package matrix

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func posterServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posters/i.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte{0xff, 0xd8, 0xff})
		case "/big.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPosterFetch(t *testing.T) {
	server := posterServer(t)
	p := &PosterFetcher{client: server.Client(), maxBytes: 32}
	ctx := context.Background()

	poster, err := p.Fetch(ctx, server.URL+"/posters/i.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", poster.ContentType)
	assert.Equal(t, "i.jpg", poster.Name)
	assert.Len(t, poster.Data, 3)

	_, err = p.Fetch(ctx, server.URL+"/page")
	assert.ErrorIs(t, err, ErrNotImage)

	_, err = p.Fetch(ctx, server.URL+"/big.png")
	assert.ErrorContains(t, err, "exceeds")

	_, err = p.Fetch(ctx, server.URL+"/missing.jpg")
	assert.ErrorContains(t, err, "status 404")
}

func TestSafeFetcherRefusesLoopback(t *testing.T) {
	server := posterServer(t)
	_, err := NewPosterFetcher(time.Second).Fetch(context.Background(), server.URL+"/posters/i.jpg")
	assert.Error(t, err)
}
