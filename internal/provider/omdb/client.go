// ABOUTME: OMDb API client implementing provider.Provider
// ABOUTME: Searches with ?s=&page= and fetches full plots with ?i=&plot=full using an apikey parameter

package omdb

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/vistly/vistly-bot/internal/provider"
)

// DefaultBaseURL is the public OMDb endpoint
const DefaultBaseURL = "https://www.omdbapi.com/"

// Client provides access to the OMDb API.
type Client struct {
	apiKey    string
	baseURL   string
	transport *provider.Transport
}

var _ provider.Provider = (*Client)(nil)

// New creates an OMDb client. An empty baseURL uses DefaultBaseURL.
func New(apiKey, baseURL string, transport *provider.Transport) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("omdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse omdb url: %w", err)
	}
	if transport == nil {
		transport = provider.NewTransport(provider.OMDb, 0, 0, 0)
	}
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/") + "/",
		transport: transport,
	}, nil
}

// Kind returns provider.OMDb.
func (c *Client) Kind() provider.Kind {
	return provider.OMDb
}

func (c *Client) endpoint(params url.Values) string {
	params.Set("apikey", c.apiKey)
	return c.baseURL + "?" + params.Encode()
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
	params.Set("s", query)
	params.Set("page", strconv.Itoa(page))

	var resp searchResponse
	if err := c.transport.GetJSON(ctx, c.endpoint(params), nil, &resp); err != nil {
		return nil, fmt.Errorf("omdb search %q: %w", query, err)
	}
	return decodeSearch(&resp)
}

// FetchDetail loads a single title by its IMDb id.
func (c *Client) FetchDetail(ctx context.Context, externalID string) (*provider.Detail, error) {
	id := strings.TrimSpace(externalID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty imdb id", provider.ErrNotFound)
	}

	params := url.Values{}
	params.Set("i", id)
	params.Set("plot", "full")

	var t title
	if err := c.transport.GetJSON(ctx, c.endpoint(params), nil, &t); err != nil {
		return nil, fmt.Errorf("omdb title %s: %w", id, err)
	}
	return decodeDetail(&t)
}
