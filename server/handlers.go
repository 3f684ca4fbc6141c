// Package server exposes the HTTP API handlers.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/onnwee/streamherald/registry"
)

// StatusStore is the read-only registry surface the status endpoints use.
type StatusStore interface {
	Load(ctx context.Context) (registry.Registry, error)
	KV(ctx context.Context, key string) (string, error)
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	db    *sql.DB
	store StatusStore
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(db *sql.DB, store StatusStore) *Handlers {
	return &Handlers{db: db, store: store}
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests. Ready means the database
// answers and the registry loads.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"registry", func() error { _, err := h.store.Load(r.Context()); return err }},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a lightweight status summary: guild and streamer
// counts plus the last poll heartbeat markers.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	resp := map[string]any{}

	reg, err := h.store.Load(ctx)
	if err != nil {
		http.Error(w, "registry unavailable", http.StatusServiceUnavailable)
		return
	}
	resp["guilds"] = len(reg)
	resp["tracked_streamers"] = reg.StreamerCount()
	resp["live_streamers"] = reg.LiveCount()

	if v, err := h.store.KV(ctx, "poll_last_cycle"); err == nil && v != "" {
		resp["poll_last_cycle"] = v
	}
	if v, err := h.store.KV(ctx, "poll_last_change"); err == nil && v != "" {
		resp["poll_last_change"] = v
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
