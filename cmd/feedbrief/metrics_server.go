package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	pkgconfig "feedbrief/internal/pkg/config"
)

// startMetricsServer exposes /metrics for Prometheus scraping. The
// server shuts down when ctx is cancelled.
//
// Environment variables:
//   - METRICS_PORT: port to listen on (default 9090)
func startMetricsServer(ctx context.Context) *http.Server {
	port := pkgconfig.Int("METRICS_PORT", 9090, func(v int) error {
		return pkgconfig.ValidateIntRange(v, 1024, 65535)
	}).Value

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("metrics server starting", slog.Int("port", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", slog.Any("error", err))
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", slog.Any("error", err))
		} else {
			slog.Info("metrics server stopped")
		}
	}()

	return server
}
