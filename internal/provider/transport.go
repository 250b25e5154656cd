// ABOUTME: Rate-limited, retrying JSON-over-HTTP transport shared by provider clients
// ABOUTME: Retries 429 and 5xx with exponential backoff and maps failures onto provider sentinels

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// RequestObserver records provider request outcomes (see metrics.Collector)
type RequestObserver interface {
	ObserveProviderRequest(provider, outcome string, elapsed time.Duration)
}

// Request outcomes reported to a RequestObserver
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
)

// Transport performs GET requests that decode JSON bodies
type Transport struct {
	kind       Kind
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	observer   RequestObserver
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		if client != nil {
			t.httpClient = client
		}
	}
}

// WithBackoff sets the first retry delay; later retries double it.
func WithBackoff(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.backoff = d
		}
	}
}

// WithObserver reports every request outcome to o.
func WithObserver(o RequestObserver) TransportOption {
	return func(t *Transport) {
		t.observer = o
	}
}

// NewTransport creates a transport allowing rps requests per second with
// the given per-request timeout.
func NewTransport(kind Kind, timeout time.Duration, rps float64, maxRetries int, opts ...TransportOption) *Transport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if rps <= 0 {
		rps = 5
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	t := &Transport{
		kind:       kind,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetJSON fetches url and decodes the body into target. A 404 maps to
// ErrNotFound; everything else that is not a 200 maps to ErrUnavailable.
func (t *Transport) GetJSON(ctx context.Context, url string, header http.Header, target any) error {
	start := time.Now()
	err := t.get(ctx, url, header, target)
	if t.observer != nil {
		t.observer.ObserveProviderRequest(string(t.kind), outcomeOf(err), time.Since(start))
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	default:
		return OutcomeUnavailable
	}
}

func (t *Transport) get(ctx context.Context, url string, header http.Header, target any) error {
	var lastErr error
	for i := 0; i <= t.maxRetries; i++ {
		if i > 0 {
			// Backoff: 1s, 2s, 4s...
			delay := t.backoff * time.Duration(1<<uint(i-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			}
		}

		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
		}

		retry, err := t.once(ctx, url, header, target)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("after %d retries: %w", t.maxRetries, lastErr)
}

// once performs a single attempt and reports whether a failure is retryable
func (t *Transport) once(ctx context.Context, url string, header http.Header, target any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%w: %s request: %v", ErrUnavailable, t.kind, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: %s returned 404", ErrNotFound, t.kind)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return true, fmt.Errorf("%w: %s returned %d", ErrUnavailable, t.kind, resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return false, fmt.Errorf("%w: %s returned %d", ErrUnavailable, t.kind, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return false, fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, t.kind, err)
	}
	return false, nil
}
