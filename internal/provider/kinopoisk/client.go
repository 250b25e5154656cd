// ABOUTME: Kinopoisk.dev API client implementing provider.Provider
// ABOUTME: Searches /v1.4/movie/search and fetches /v1.4/movie/{id} with an X-API-KEY header

package kinopoisk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vistly/vistly-bot/internal/provider"
)

// DefaultBaseURL is the public Kinopoisk.dev endpoint
const DefaultBaseURL = "https://api.kinopoisk.dev"

// Client provides access to the Kinopoisk.dev API.
type Client struct {
	apiKey    string
	baseURL   string
	transport *provider.Transport
}

var _ provider.Provider = (*Client)(nil)

// New creates a Kinopoisk client. An empty baseURL uses DefaultBaseURL.
func New(apiKey, baseURL string, transport *provider.Transport) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("kinopoisk api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if transport == nil {
		transport = provider.NewTransport(provider.Kinopoisk, 0, 0, 0)
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		transport: transport,
	}, nil
}

// Kind returns provider.Kinopoisk.
func (c *Client) Kind() provider.Kind {
	return provider.Kinopoisk
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("X-API-KEY", c.apiKey)
	return h
}

// Search looks up movies and series by title.
func (c *Client) Search(ctx context.Context, query string, page int) (*provider.SearchPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if page < 1 {
		page = 1
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(provider.PageSize))
	endpoint := c.baseURL + "/v1.4/movie/search?" + params.Encode()

	var resp searchResponse
	if err := c.transport.GetJSON(ctx, endpoint, c.header(), &resp); err != nil {
		return nil, fmt.Errorf("kinopoisk search %q: %w", query, err)
	}
	return decodeSearch(&resp), nil
}

// FetchDetail loads a single title by its Kinopoisk id.
func (c *Client) FetchDetail(ctx context.Context, externalID string) (*provider.Detail, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid kinopoisk id %q", provider.ErrNotFound, externalID)
	}

	endpoint := fmt.Sprintf("%s/v1.4/movie/%d", c.baseURL, id)

	var m movie
	if err := c.transport.GetJSON(ctx, endpoint, c.header(), &m); err != nil {
		return nil, fmt.Errorf("kinopoisk movie %d: %w", id, err)
	}
	if m.ID == 0 {
		return nil, fmt.Errorf("%w: kinopoisk movie %d", provider.ErrNotFound, id)
	}
	return decodeDetail(&m), nil
}
