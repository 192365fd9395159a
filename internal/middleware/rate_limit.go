package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"aton-catalog-admin/internal/config"
	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/telemetry"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
}

// rateLimitEntry is one client's fixed window
type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimitInfo contains rate limit information for response headers
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// RateLimiter applies a per-client fixed one-minute window
type RateLimiter struct {
	config        RateLimitConfig
	ipLimits      map[string]*rateLimitEntry
	mutex         sync.Mutex
	now           func() time.Time
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// ParseRateLimitConfig parses rate limiting configuration from the config struct
func ParseRateLimitConfig(cfg *config.RelayConfig) RateLimitConfig {
	rateLimitConfig := RateLimitConfig{
		Enabled:           parseBool(cfg.RateLimitEnabled, false),
		RequestsPerMinute: parseInt(cfg.RateLimitRequestsPerMinute, 600),
	}

	if rateLimitConfig.RequestsPerMinute <= 0 {
		slog.Warn("Invalid rate limit requests per minute, using default",
			"configured", cfg.RateLimitRequestsPerMinute, "default", 600)
		rateLimitConfig.RequestsPerMinute = 600
	}

	return rateLimitConfig
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:      config,
		ipLimits:    make(map[string]*rateLimitEntry),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	rl.cleanupTicker = time.NewTicker(time.Minute)
	go rl.cleanupExpiredEntries()

	slog.Info("Rate limiter initialized",
		"enabled", config.Enabled,
		"requests_per_minute", config.RequestsPerMinute)

	return rl
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		rl.cleanupTicker.Stop()
		close(rl.stopCleanup)
	})
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	for {
		select {
		case <-rl.cleanupTicker.C:
			rl.mutex.Lock()
			now := rl.now()
			for ip, entry := range rl.ipLimits {
				if now.After(entry.resetTime) {
					delete(rl.ipLimits, ip)
				}
			}
			rl.mutex.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

// IsAllowed checks and counts a request from clientIP
func (rl *RateLimiter) IsAllowed(clientIP string) (bool, RateLimitInfo) {
	if !rl.config.Enabled {
		return true, RateLimitInfo{Limit: -1, Remaining: -1}
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	limit := rl.config.RequestsPerMinute

	entry, exists := rl.ipLimits[clientIP]
	if !exists {
		entry = &rateLimitEntry{}
		rl.ipLimits[clientIP] = entry
	}

	// Reset if window has expired
	if now.After(entry.resetTime) {
		entry.count = 0
		entry.resetTime = now.Add(time.Minute)
	}

	if entry.count >= limit {
		return false, RateLimitInfo{Limit: limit, Remaining: 0, ResetTime: entry.resetTime}
	}

	entry.count++
	return true, RateLimitInfo{Limit: limit, Remaining: limit - entry.count, ResetTime: entry.resetTime}
}

// RateLimitMiddleware creates a rate limiting middleware using an existing rate limiter
func RateLimitMiddleware(rateLimiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			clientIP := telemetry.GetClientIP(r)
			allowed, info := rateLimiter.IsAllowed(clientIP)
			setRateLimitHeaders(w, info)

			if !allowed {
				slog.Warn("Rate limit exceeded",
					"client_ip", clientIP,
					"path", r.URL.Path,
					"method", r.Method,
					"limit", info.Limit,
					"reset_time", info.ResetTime.Format(time.RFC3339))

				writeRateLimitErrorResponse(w, info, rateLimiter.now())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets rate limit headers in the response
func setRateLimitHeaders(w http.ResponseWriter, info RateLimitInfo) {
	if info.Limit >= 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		if !info.ResetTime.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
	}
}

// writeRateLimitErrorResponse writes a rate limit exceeded error response
func writeRateLimitErrorResponse(w http.ResponseWriter, info RateLimitInfo, now time.Time) {
	retryAfter := fmt.Sprintf("%.0f", info.ResetTime.Sub(now).Seconds())
	w.Header().Set("Retry-After", retryAfter)

	writeErrorResponse(w, http.StatusTooManyRequests, "rate_limit_exceeded",
		"Rate limit exceeded. Please try again later.",
		[]models.ErrorDetail{
			{Field: "rate_limit", Issue: fmt.Sprintf("Exceeded %d requests per minute", info.Limit)},
			{Field: "retry_after", Issue: fmt.Sprintf("Retry after %s seconds", retryAfter)},
		})
}

// writeErrorResponse is a helper function to write error responses
func writeErrorResponse(w http.ResponseWriter, statusCode int, code, message string, details []models.ErrorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}

// parseBool parses a string to bool with a default value
func parseBool(value string, defaultValue bool) bool {
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on", "enabled":
		return true
	case "false", "0", "no", "off", "disabled":
		return false
	default:
		slog.Warn("Invalid boolean value, using default",
			"value", value, "default", defaultValue)
		return defaultValue
	}
}

// parseInt parses a string to int with a default value
func parseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer value, using default",
			"value", value, "default", defaultValue, "error", err)
		return defaultValue
	}
	return parsed
}
