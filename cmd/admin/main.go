package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aton-catalog-admin/internal/client"
	"aton-catalog-admin/internal/config"
	"aton-catalog-admin/internal/handlers"
	"aton-catalog-admin/internal/services"
	"aton-catalog-admin/internal/settings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadAdminConfig(os.Args[1:])
	if err != nil {
		slog.Error("Invalid command line", "error", err)
		os.Exit(2)
	}

	slog.Info("Starting ATON catalog admin", "version", version)

	ctx := context.Background()

	store, err := settings.NewStore(cfg.SettingsBackend, cfg.SettingsPath)
	if err != nil {
		slog.Error("Failed to open settings store", "backend", cfg.SettingsBackend, "error", err)
		os.Exit(1)
	}

	manager := settings.NewManager(store)
	if err := manager.Init(ctx); err != nil {
		slog.Error("Failed to load connection settings", "error", err)
		os.Exit(1)
	}

	atonClient := client.NewAtonClient(manager, nil)

	ttl, cleanupInterval := cfg.SessionDurations()
	sessions := handlers.NewSessionStore(ttl, cleanupInterval, func() *services.CatalogService {
		return services.NewCatalogService(atonClient, manager)
	})

	uiHandler, err := handlers.NewUIHandler(sessions, manager)
	if err != nil {
		slog.Error("Failed to initialize UI", "error", err)
		os.Exit(1)
	}
	apiHandler := handlers.NewAdminAPIHandler(sessions, manager)
	healthHandler := handlers.NewHealthHandler("aton-catalog-admin")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler.Health)
	uiHandler.Routes(r)
	r.Route("/admin", apiHandler.Routes)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Admin UI ready to accept connections", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down admin UI...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	sessions.Stop()

	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			slog.Error("Error closing settings store", "error", err)
		}
	}

	slog.Info("Admin UI exited")
}
