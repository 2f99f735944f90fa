// Package server exposes the operational HTTP surface: health, readiness,
// a small status document, and Prometheus metrics. It injects correlation
// IDs into request contexts for consistent logging.
package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/botkit/command"
	"github.com/onnwee/botkit/telemetry"
)

// Handlers carries the dependencies the endpoints need. db may be nil when
// the bot runs on the in-memory store.
type Handlers struct {
	db       *sql.DB
	registry *command.Registry
	prefix   string
	started  time.Time
}

// NewHandlers builds the handler set.
func NewHandlers(db *sql.DB, registry *command.Registry, prefix string) *Handlers {
	return &Handlers{db: db, registry: registry, prefix: prefix, started: time.Now()}
}

// NewMux returns the HTTP handler with all routes, wrapped with the
// correlation-id middleware.
func NewMux(h *Handlers) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", h.HandleHealthz)
	mux.HandleFunc("/readyz", h.HandleReadyz)
	mux.HandleFunc("/status", h.HandleStatus)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corr := r.Header.Get("X-Correlation-ID")
		if corr == "" {
			corr = uuid.New().String()
		}
		ctx := telemetry.WithCorrelation(r.Context(), corr)
		w.Header().Set("X-Correlation-ID", corr)
		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleHealthz responds to liveness probes; with a database configured it
// also checks connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz reports readiness: the static command set must be loaded
// and, when configured, the database reachable.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	type check struct {
		name string
		fn   func() error
	}
	checks := []check{
		{"commands", func() error {
			if len(h.registry.StaticCommands()) == 0 {
				return errNoCommands
			}
			return nil
		}},
	}
	if h.db != nil {
		checks = append(checks, check{"database", func() error { return h.db.PingContext(r.Context()) }})
	}

	w.Header().Set("Content-Type", "application/json")
	for _, c := range checks {
		if err := c.fn(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": c.name,
				"error":        err.Error(),
			})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a small JSON document for dashboards.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cmds := h.registry.StaticCommands()
	names := make([]string, 0, len(cmds))
	for _, c := range cmds {
		names = append(names, c.Name)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"prefix":         h.prefix,
		"command_count":  len(cmds),
		"commands":       names,
	})
}

var errNoCommands = errors.New("no static commands registered")
