package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// ReadinessCheck reports whether a dependency can serve. The cache store's
// Ping is the usual check.
type ReadinessCheck func(ctx context.Context) error

// HealthServer provides HTTP endpoints for health checks:
//   - /health: liveness probe (always 200 OK)
//   - /health/ready: readiness probe (200 once ready and every check passes, 503 otherwise)
//
// Example usage:
//
//	healthServer := NewHealthServer(":9091", logger, store.Ping)
//	go func() {
//	    if err := healthServer.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
//	        logger.Error("health server failed", slog.Any("error", err))
//	    }
//	}()
//	healthServer.SetReady(true)
type HealthServer struct {
	addr    string
	logger  *slog.Logger
	checks  []ReadinessCheck
	isReady *atomic.Bool
	server  *http.Server
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewHealthServer creates a health server. It is not started and starts out not ready.
func NewHealthServer(addr string, logger *slog.Logger, checks ...ReadinessCheck) *HealthServer {
	return &HealthServer{
		addr:    addr,
		logger:  logger,
		checks:  checks,
		isReady: &atomic.Bool{},
	}
}

// Handler returns the server's routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	return mux
}

// Start blocks until ctx is cancelled or the listener fails. On cancellation it
// shuts down gracefully within 5 seconds and returns http.ErrServerClosed.
func (h *HealthServer) Start(ctx context.Context) error {
	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		h.logger.Info("health server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady sets the readiness flag reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

// IsReady reports the readiness flag.
func (h *HealthServer) IsReady() bool {
	return h.isReady.Load()
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, r *http.Request) {
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if !h.isReady.Load() {
		h.write(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	for _, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", slog.Any("error", err))
			h.write(w, http.StatusServiceUnavailable, healthResponse{Status: "not ready", Error: err.Error()})
			return
		}
	}
	h.write(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *HealthServer) write(w http.ResponseWriter, status int, body healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode health response", slog.Any("error", err))
	}
}
