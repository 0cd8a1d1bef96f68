package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/plexsync/internal/shared"
)

// HealthHandler reports liveness.
type HealthHandler struct{}

func (HealthHandler) Routes() []string { return []string{"GET /healthz"} }

func (HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// MetricsHandler exposes the metrics of a dedicated registry.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

type syncStatusResponse struct {
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type messageResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// SyncHandler triggers runs (POST /sync) and reports scheduler state (GET /sync).
//
// Triggered runs use the handler's base context, not the request context,
// so they outlive the request that started them.
type SyncHandler struct {
	scheduler *Scheduler
	ctx       context.Context
}

// NewSyncHandler creates a SyncHandler whose runs are bound to ctx.
func NewSyncHandler(ctx context.Context, scheduler *Scheduler) *SyncHandler {
	return &SyncHandler{scheduler: scheduler, ctx: ctx}
}

func (h *SyncHandler) Routes() []string { return []string{"/sync"} }

func (h *SyncHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.trigger(w)
	case http.MethodGet:
		h.status(w)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SyncHandler) trigger(w http.ResponseWriter) {
	err := h.scheduler.Trigger(h.ctx)
	switch {
	case errors.Is(err, shared.ErrSyncInProgress):
		writeJSON(w, http.StatusConflict, messageResponse{Status: "busy", Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, messageResponse{Status: "error", Error: err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, messageResponse{Status: "started"})
	}
}

func (h *SyncHandler) status(w http.ResponseWriter) {
	st := h.scheduler.Status()
	resp := syncStatusResponse{Running: st.Running, Runs: st.Runs}
	if !st.LastRunAt.IsZero() {
		resp.LastRunAt = &st.LastRunAt
	}
	if st.LastResult != nil {
		resp.Summary = st.LastResult.Summary()
		if err := st.LastResult.Errors(); err != nil {
			resp.Error = err.Error()
		}
	}
	if st.LastErr != nil {
		resp.Error = st.LastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
