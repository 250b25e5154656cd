// ABOUTME: Prometheus collector for turns, duplicates, effect failures and provider calls
// ABOUTME: Recorder is the interface the engine and provider transport report through

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives bot observations. Collector and Nop implement it.
type Recorder interface {
	ObserveTurn(outcome string, elapsed time.Duration)
	RecordDuplicate(frontend string)
	RecordEffectFailure(effect, kind string)
	RecordRedirect()
	ObserveProviderRequest(provider, outcome string, elapsed time.Duration)
}

// Turn outcomes
const (
	TurnOK      = "ok"
	TurnFailed  = "failed"
	TurnTimeout = "timeout"
	TurnPanic   = "panic"
)

// Collector records into Prometheus metrics
type Collector struct {
	turns           *prometheus.CounterVec
	turnLatency     prometheus.Histogram
	duplicates      *prometheus.CounterVec
	effectFailures  *prometheus.CounterVec
	redirects       prometheus.Counter
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vistly_turns_total",
			Help: "Conversation turns handled, by outcome",
		}, []string{"outcome"}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vistly_turn_duration_seconds",
			Help:    "Time from inbound event to render instruction",
			Buckets: prometheus.DefBuckets,
		}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vistly_duplicate_events_total",
			Help: "Inbound events dropped as redeliveries",
		}, []string{"frontend"}),
		effectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vistly_effect_failures_total",
			Help: "Failed effects by effect name and failure kind",
		}, []string{"effect", "kind"}),
		redirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vistly_plan_redirects_total",
			Help: "Replacement plans returned by the state machine",
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vistly_provider_requests_total",
			Help: "Catalog provider HTTP requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vistly_provider_request_duration_seconds",
			Help:    "Catalog provider request latency including retries",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}

	reg.MustRegister(
		c.turns,
		c.turnLatency,
		c.duplicates,
		c.effectFailures,
		c.redirects,
		c.providerCalls,
		c.providerLatency,
	)
	return c
}

func (c *Collector) ObserveTurn(outcome string, elapsed time.Duration) {
	c.turns.WithLabelValues(outcome).Inc()
	c.turnLatency.Observe(elapsed.Seconds())
}

func (c *Collector) RecordDuplicate(frontend string) {
	c.duplicates.WithLabelValues(frontend).Inc()
}

func (c *Collector) RecordEffectFailure(effect, kind string) {
	c.effectFailures.WithLabelValues(effect, kind).Inc()
}

func (c *Collector) RecordRedirect() {
	c.redirects.Inc()
}

// ObserveProviderRequest satisfies provider.RequestObserver
func (c *Collector) ObserveProviderRequest(provider, outcome string, elapsed time.Duration) {
	c.providerCalls.WithLabelValues(provider, outcome).Inc()
	c.providerLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Handler serves the Prometheus scrape endpoint for gatherer
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards every observation
type Nop struct{}

func (Nop) ObserveTurn(string, time.Duration)                    {}
func (Nop) RecordDuplicate(string)                               {}
func (Nop) RecordEffectFailure(string, string)                   {}
func (Nop) RecordRedirect()                                      {}
func (Nop) ObserveProviderRequest(string, string, time.Duration) {}
