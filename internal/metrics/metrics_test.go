// ABOUTME: Tests for the Prometheus collector and scrape handler
// ABOUTME: Checks counter values via testutil and the exposition output

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveTurn(TurnOK, 20*time.Millisecond)
	c.ObserveTurn(TurnOK, 30*time.Millisecond)
	c.ObserveTurn(TurnPanic, time.Millisecond)
	c.RecordDuplicate("telegram")
	c.RecordEffectFailure("search_provider", "provider_unavailable")
	c.RecordRedirect()
	c.ObserveProviderRequest("omdb", "ok", 100*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turns.WithLabelValues(TurnOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.turns.WithLabelValues(TurnPanic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.duplicates.WithLabelValues("telegram")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.effectFailures.WithLabelValues("search_provider", "provider_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.redirects))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.providerCalls.WithLabelValues("omdb", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.turnLatency))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordDuplicate("matrix")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := rec.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `vistly_duplicate_events_total{frontend="matrix"} 1`) {
		t.Errorf("exposition missing duplicate counter:\n%s", body)
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.ObserveTurn(TurnOK, time.Second)
	r.RecordDuplicate("telegram")
	r.RecordEffectFailure("x", "y")
	r.RecordRedirect()
	r.ObserveProviderRequest("omdb", "ok", time.Second)
}
