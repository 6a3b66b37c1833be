package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer serves liveness and readiness probes plus a status view:
//   - GET /health: liveness, always 200
//   - GET /health/ready: readiness, 200 when ready and 503 otherwise
//   - GET /health/status: 200 with the current run state
type HealthServer struct {
	addr    string
	state   *StateTracker
	isReady atomic.Bool
	server  *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
}

type statusResponse struct {
	Status           string     `json:"status"`
	SchedulerActive  bool       `json:"scheduler_active"`
	ShuttingDown     bool       `json:"shutting_down"`
	CronExpression   string     `json:"cron_expression,omitempty"`
	Timezone         string     `json:"timezone,omitempty"`
	LastRunStartedAt *time.Time `json:"last_run_started_at,omitempty"`
}

// NewHealthServer creates a health server listening on addr, reporting
// run state from the given tracker. It starts not ready; call SetReady
// once the daemon is serving.
func NewHealthServer(addr string, state *StateTracker) *HealthServer {
	return &HealthServer{addr: addr, state: state}
}

// Start serves probes until the context is cancelled. It returns
// http.ErrServerClosed on graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/health/status", h.handleStatus)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		slog.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err != http.ErrServerClosed {
			slog.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady flips the readiness probe.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	slog.Info("health server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeHealth(w, http.StatusOK, "ok")
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if h.isReady.Load() {
		writeHealth(w, http.StatusOK, "ok")
		return
	}
	writeHealth(w, http.StatusServiceUnavailable, "not ready")
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := h.state.Snapshot()

	resp := statusResponse{
		Status:          "ok",
		SchedulerActive: state.SchedulerActive,
		ShuttingDown:    state.ShuttingDown,
		CronExpression:  state.CronExpression,
		Timezone:        state.Timezone,
	}
	if !h.isReady.Load() {
		resp.Status = "not ready"
	}
	if !state.LastRunStartedAt.IsZero() {
		resp.LastRunStartedAt = &state.LastRunStartedAt
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode status response", slog.Any("error", err))
	}
}

func writeHealth(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: status}); err != nil {
		slog.Error("failed to encode health response", slog.Any("error", err))
	}
}
