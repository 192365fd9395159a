package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of the relay metrics
const MeterName = "aton-relay"

// RelayTelemetry provides telemetry for the relay endpoints
type RelayTelemetry struct {
	requestCounter         metric.Int64Counter
	errorCounter           metric.Int64Counter
	durationHistogram      metric.Float64Histogram
	upstreamFailureCounter metric.Int64Counter
}

// RelayMetrics contains the telemetry data for a request
type RelayMetrics struct {
	Method       string
	Endpoint     string
	StatusCode   int
	Duration     time.Duration
	ErrorMessage string
	// Raw IP for logging, ClientIPType for metrics
	ClientIP     string
	ClientIPType string
}

// NewRelayTelemetry creates the relay instruments on the given meter
func NewRelayTelemetry(meter metric.Meter) (*RelayTelemetry, error) {
	slog.Info("Initializing relay telemetry")

	t := &RelayTelemetry{}
	var err error

	t.requestCounter, err = meter.Int64Counter(
		"relay_requests_total",
		metric.WithDescription("Total number of relayed requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	t.errorCounter, err = meter.Int64Counter(
		"relay_errors_total",
		metric.WithDescription("Total number of relayed requests answered with a status of 400 or above"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	t.durationHistogram, err = meter.Float64Histogram(
		"relay_request_duration_seconds",
		metric.WithDescription("Duration of relayed requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	t.upstreamFailureCounter, err = meter.Int64Counter(
		"relay_upstream_failures_total",
		metric.WithDescription("Total number of requests that could not reach the upstream API"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream failure counter: %w", err)
	}

	slog.Info("Relay telemetry initialized successfully")
	return t, nil
}

// RegisterRequestReceived records a relayed request
func (t *RelayTelemetry) RegisterRequestReceived(ctx context.Context, m RelayMetrics) {
	t.requestCounter.Add(ctx, 1, metric.WithAttributes(m.attributes()...))

	slog.Debug("Recorded relay request",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"duration_ms", m.Duration.Milliseconds(),
	)
}

// RegisterRequestError records a relayed request that ended with an error status
func (t *RelayTelemetry) RegisterRequestError(ctx context.Context, m RelayMetrics) {
	attrs := append(m.attributes(), attribute.String("error_type", categorizeStatus(m.StatusCode)))
	t.errorCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	slog.Debug("Recorded relay error",
		"method", m.Method,
		"endpoint", m.Endpoint,
		"status_code", m.StatusCode,
		"client_ip", m.ClientIP,
		"error", m.ErrorMessage,
	)
}

// RegisterRequestDuration records the duration of a relayed request
func (t *RelayTelemetry) RegisterRequestDuration(ctx context.Context, m RelayMetrics) {
	t.durationHistogram.Record(ctx, m.Duration.Seconds(), metric.WithAttributes(m.attributes()...))
}

// RegisterUpstreamFailure records a request that never got an upstream response
func (t *RelayTelemetry) RegisterUpstreamFailure(ctx context.Context, method, endpoint string) {
	t.upstreamFailureCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
	))
}

// attributes returns the low-cardinality attribute set for a request
func (m RelayMetrics) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("method", m.Method),
		attribute.String("endpoint", m.Endpoint),
		attribute.Int("status_code", m.StatusCode),
	}
	if m.ClientIPType != "" {
		attrs = append(attrs, attribute.String("client_ip_type", m.ClientIPType))
	}
	return attrs
}

// categorizeStatus groups error statuses to keep cardinality low
func categorizeStatus(status int) string {
	switch {
	case status == 401:
		return "unauthorized"
	case status == 403:
		return "forbidden"
	case status == 404:
		return "not_found"
	case status == 429:
		return "rate_limited"
	case status >= 400 && status < 500:
		return "client_error"
	case status >= 500:
		return "server_error"
	default:
		return "other"
	}
}

// GetEndpointFromPath normalizes a relay path into a template. The first
// segment after /api names the resource, later segments are identifiers.
func GetEndpointFromPath(path string) string {
	if path != "/api" && !strings.HasPrefix(path, "/api/") {
		return path
	}

	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, "/api"), "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "/api"
	}

	template := "/api/" + segments[0]
	for range segments[1:] {
		template += "/{id}"
	}
	return template
}

// NormalizeClientIP categorizes client IPs to control cardinality
func NormalizeClientIP(clientIP string) string {
	if clientIP == "" {
		return "unknown"
	}

	ip := net.ParseIP(clientIP)
	if ip == nil {
		return "invalid"
	}

	switch {
	case ip.IsLoopback():
		return "localhost"
	case ip.IsPrivate(), ip.IsLinkLocalUnicast():
		return "internal"
	default:
		return "external"
	}
}
