// ABOUTME: Downloads entity posters for upload to the Matrix media repository
// ABOUTME: Uses an SSRF-safe client since poster URLs come from third-party metadata

package matrix

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

const (
	// DefaultPosterTimeout bounds one poster download
	DefaultPosterTimeout = 10 * time.Second

	// maxPosterBytes caps poster size
	maxPosterBytes = 5 << 20
)

// ErrNotImage is returned when a poster URL serves something other than an image
var ErrNotImage = errors.New("poster is not an image")

// Poster is a downloaded image ready for upload
type Poster struct {
	Data        []byte
	ContentType string
	Name        string
}

// PosterFetcher downloads posters. Private, loopback and link-local
// addresses are refused at dial time.
type PosterFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewPosterFetcher builds a fetcher restricted to public http(s) hosts
func NewPosterFetcher(timeout time.Duration) *PosterFetcher {
	if timeout <= 0 {
		timeout = DefaultPosterTimeout
	}
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return &PosterFetcher{client: safeurl.Client(cfg).Client, maxBytes: maxPosterBytes}
}

// Fetch downloads rawURL
func (p *PosterFetcher) Fetch(ctx context.Context, rawURL string) (*Poster, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building poster request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching poster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching poster: status %d", resp.StatusCode)
	}
	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrNotImage, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading poster: %w", err)
	}
	if int64(len(data)) > p.maxBytes {
		return nil, fmt.Errorf("poster exceeds %d bytes", p.maxBytes)
	}

	name := path.Base(req.URL.Path)
	if name == "" || name == "/" || name == "." {
		name = "poster"
	}
	return &Poster{Data: data, ContentType: contentType, Name: name}, nil
}
