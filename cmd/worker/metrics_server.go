package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// startMetricsServer serves GET /metrics in the background and shuts down
// within 5 seconds once ctx is cancelled.
func startMetricsServer(ctx context.Context, logger *slog.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("metrics server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			logger.Info("metrics server stopped")
		}
	}()

	return server
}
