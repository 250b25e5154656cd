// ABOUTME: Ops HTTP routes: liveness, readiness against the store, and Prometheus metrics
// ABOUTME: Served on the configured http.addr next to the chat frontends

package app

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vistly/vistly-bot/internal/metrics"
)

// readyTimeout bounds the store ping behind /health/ready
const readyTimeout = 2 * time.Second

// readiness is the /health/ready body
type readiness struct {
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	Frontends []string `json:"frontends"`
	Uptime    string   `json:"uptime"`
}

// Routes returns the ops HTTP handler
func (a *App) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", a.handleHealth)
	r.Get("/health/ready", a.handleReady)
	if a.config.Metrics.Enabled {
		r.Method(http.MethodGet, a.config.Metrics.Path, metrics.Handler(a.registry))
	}
	return r
}

// handleHealth returns 200 OK if the process is alive
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 when the store answers a ping
func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	a.mu.Lock()
	frontends := slices.Clone(a.frontends)
	a.mu.Unlock()
	slices.Sort(frontends)
	if frontends == nil {
		frontends = []string{}
	}

	body := readiness{
		Status:    "ready",
		Frontends: frontends,
		Uptime:    time.Since(a.startedAt).Truncate(time.Second).String(),
	}
	status := http.StatusOK
	if err := a.store.Ping(ctx); err != nil {
		a.logger.Warn("readiness check failed", "error", err)
		body.Status = "unavailable"
		body.Error = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
