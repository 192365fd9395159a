package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aton-catalog-admin/internal/config"
	"aton-catalog-admin/internal/handlers"
	"aton-catalog-admin/internal/middleware"
	"aton-catalog-admin/internal/telemetry"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
)

const version = "1.0.0"

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadRelayConfig()

	slog.Info("Starting ATON relay", "version", version)

	ctx := context.Background()
	otelTelemetry, err := telemetry.InitMetrics(ctx, cfg.MetricsExporter, cfg.MetricsAddr)
	if err != nil {
		slog.Error("Failed to initialize metrics", "error", err)
		os.Exit(1)
	}

	relayTelemetry, err := telemetry.NewRelayTelemetry(otel.Meter(telemetry.MeterName))
	if err != nil {
		slog.Error("Failed to initialize relay telemetry", "error", err)
		os.Exit(1)
	}

	r := mux.NewRouter()

	relayHandler := handlers.NewRelayHandler(handlers.UpstreamFromConfig(cfg), nil, relayTelemetry)
	healthHandler := handlers.NewHealthHandler("aton-relay")

	r.Use(telemetry.NewTelemetryMiddleware(relayTelemetry).Middleware)

	rateLimitConfig := middleware.ParseRateLimitConfig(cfg)
	var rateLimiter *middleware.RateLimiter
	if rateLimitConfig.Enabled {
		rateLimiter = middleware.NewRateLimiter(rateLimitConfig)
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
		slog.Info("Rate limiting middleware enabled")
	} else {
		slog.Info("Rate limiting middleware disabled")
	}

	accessKeys := cfg.AccessKeyList()
	if len(accessKeys) > 0 {
		slog.Info("Relay access keys required", "keys", len(accessKeys))
	}

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	// Any method, any path under /api/
	r.PathPrefix(handlers.RelayPrefix + "/").Handler(middleware.AccessKeyMiddleware(accessKeys)(relayHandler))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           corsHandler.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Relay ready to accept connections",
			"address", server.Addr,
			"upstream", cfg.UpstreamBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down relay...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if rateLimiter != nil {
		rateLimiter.Stop()
	}

	otelTelemetry.Shutdown(shutdownCtx)
	slog.Info("Relay exited")
}
