package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Metrics exporters selected by METRICS_EXPORTER
const (
	ExporterNone    = "none"
	ExporterScraper = "scraper"
	ExporterGRPC    = "grpc"
)

// Telemetry owns the meter provider and, for the scraper exporter, the
// /metrics HTTP server.
type Telemetry struct {
	server   *http.Server          // If type of metrics collection == "scraper".
	Provider *metric.MeterProvider // Nil when metrics are disabled.
}

// InitMetrics installs a global meter provider for the selected exporter.
// "none" (or anything unrecognised) leaves the no-op global provider in place.
func InitMetrics(ctx context.Context, exporter, addr string) (*Telemetry, error) {
	t := &Telemetry{}

	switch strings.ToLower(strings.TrimSpace(exporter)) {
	case ExporterScraper:
		slog.Info("Starting metrics with scraper exporter", "addr", addr)
		if err := t.initScrapeMetrics(addr); err != nil {
			return nil, err
		}
	case ExporterGRPC:
		slog.Info("Starting metrics with grpc exporter")
		if err := t.initGRPCMetrics(ctx); err != nil {
			return nil, err
		}
	case ExporterNone, "":
		slog.Info("Metrics disabled")
	default:
		slog.Warn("Unknown metrics exporter, metrics disabled", "exporter", exporter)
	}

	return t, nil
}

// Initialize GRPC metrics exporter. https://opentelemetry.io/docs/languages/go/exporters/#otlp-metrics-over-grpc.
func (t *Telemetry) initGRPCMetrics(ctx context.Context) error {
	// The URL to export is set via environment variable
	// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT and if not set it is "localhost:4317"
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create grpc exporter: %w", err)
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(metric.NewPeriodicReader(exporter)))
	otel.SetMeterProvider(t.Provider)
	return nil
}

// Initialize scrape metrics exporter. https://github.com/open-telemetry/opentelemetry-go/blob/main/example/prometheus/main.go.
func (t *Telemetry) initScrapeMetrics(addr string) error {
	// The exporter embeds a default OpenTelemetry Reader and
	// implements prometheus.Collector.
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("failed to create scrape exporter: %w", err)
	}

	t.Provider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(t.Provider)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	t.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go t.serveMetrics()
	return nil
}

// Run metrics server for "scraper" open telemetry collector
func (t *Telemetry) serveMetrics() {
	slog.Info("Serving metrics", "addr", t.server.Addr, "path", "/metrics")

	if err := t.server.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("Metrics server closed")
		} else {
			slog.Error("Metrics server exited", "error", err)
		}
	}
}

// Shutdown flushes pending metrics and stops the scraper server
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t.server != nil {
		_ = t.server.Shutdown(ctx)
		slog.Info("Shutting down metrics server")
	}
	if t.Provider != nil {
		if err := t.Provider.Shutdown(ctx); err != nil {
			slog.Warn("Meter provider shutdown failed", "error", err)
		}
	}
}
