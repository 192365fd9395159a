package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"aton-catalog-admin/internal/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// RelayConfig holds all configuration for the relay process
type RelayConfig struct {
	Port                       string
	LogLevel                   string
	Environment                string
	UpstreamBaseURL            string
	Token                      string
	TokenHeader                string
	TokenPrefix                string
	AccessKeys                 string
	RateLimitEnabled           string
	RateLimitRequestsPerMinute string
	MetricsExporter            string
	MetricsAddr                string
}

// AdminConfig holds all configuration for the admin UI process
type AdminConfig struct {
	Port                   string
	LogLevel               string
	Environment            string
	SettingsBackend        string
	SettingsPath           string
	SessionTTL             string
	SessionCleanupInterval string
}

// LoadRelayConfig loads configuration from .env file and environment variables.
// Values are read once at process start.
func LoadRelayConfig() *RelayConfig {
	loadDotEnv(".env")

	config := &RelayConfig{
		Port:                       getEnvWithDefault("PORT", "3000"),
		LogLevel:                   getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:                getEnvWithDefault("ENVIRONMENT", "development"),
		UpstreamBaseURL:            getEnvWithDefault("ATON_BASE_URL", ""),
		Token:                      getEnvWithDefault("ATON_TOKEN", ""),
		TokenHeader:                getEnvWithDefault("ATON_TOKEN_HEADER", "Authorization"),
		TokenPrefix:                getEnvAllowEmpty("ATON_TOKEN_PREFIX", "Bearer "),
		AccessKeys:                 getEnvWithDefault("RELAY_ACCESS_KEYS", ""),
		RateLimitEnabled:           getEnvWithDefault("RELAY_RATE_LIMIT_ENABLED", "false"),
		RateLimitRequestsPerMinute: getEnvWithDefault("RELAY_RATE_LIMIT_REQUESTS_PER_MINUTE", "600"),
		MetricsExporter:            getEnvWithDefault("METRICS_EXPORTER", "none"),
		MetricsAddr:                getEnvWithDefault("METRICS_ADDR", ":9080"),
	}

	utils.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"upstreamBaseURL", config.UpstreamBaseURL,
		"tokenHeader", config.TokenHeader,
		"token", utils.MaskSecret(config.Token),
		"accessKeysConfigured", config.AccessKeys != "",
		"rateLimitEnabled", config.RateLimitEnabled,
		"rateLimitRequestsPerMinute", config.RateLimitRequestsPerMinute,
		"metricsExporter", config.MetricsExporter)

	if config.UpstreamBaseURL == "" {
		slog.Warn("ATON_BASE_URL is not set, every relayed request will fail")
	}
	if config.Token == "" {
		slog.Warn("ATON_TOKEN is not set, the credential header will carry only the prefix")
	}

	return config
}

// LoadAdminConfig loads configuration from command-line flags, the .env
// file and environment variables. Flags win over the environment.
func LoadAdminConfig(args []string) (*AdminConfig, error) {
	cmdLine := pflag.NewFlagSet("admin", pflag.ContinueOnError)
	envFile := cmdLine.String("env-file", ".env", "dotenv file to load")
	port := cmdLine.String("port", "", "HTTP listen port (overrides PORT)")
	backend := cmdLine.String("settings-backend", "", "settings store: file, sqlite or memory (overrides SETTINGS_BACKEND)")
	if err := cmdLine.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	loadDotEnv(*envFile)

	config := &AdminConfig{
		Port:                   getEnvWithDefault("PORT", "8090"),
		LogLevel:               getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:            getEnvWithDefault("ENVIRONMENT", "development"),
		SettingsBackend:        getEnvWithDefault("SETTINGS_BACKEND", "file"),
		SettingsPath:           getEnvWithDefault("SETTINGS_PATH", "data/aton_settings.json"),
		SessionTTL:             getEnvWithDefault("SESSION_TTL", "30m"),
		SessionCleanupInterval: getEnvWithDefault("SESSION_CLEANUP_INTERVAL", "5m"),
	}
	if *port != "" {
		config.Port = *port
	}
	if *backend != "" {
		config.SettingsBackend = *backend
	}

	utils.SetupLogging(config.LogLevel)

	slog.Info("Configuration loaded",
		"port", config.Port,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"settingsBackend", config.SettingsBackend,
		"settingsPath", config.SettingsPath,
		"sessionTTL", config.SessionTTL)

	return config, nil
}

// AccessKeyList splits the comma separated access keys
func (c *RelayConfig) AccessKeyList() []string {
	var keys []string
	for _, key := range strings.Split(c.AccessKeys, ",") {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

// SessionDurations parses the session TTL and cleanup interval
func (c *AdminConfig) SessionDurations() (ttl, cleanup time.Duration) {
	return parseDuration(c.SessionTTL, 30*time.Minute), parseDuration(c.SessionCleanupInterval, 5*time.Minute)
}

// IsDevelopment returns true if running in development environment
func (c *AdminConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadDotEnv loads a .env file if it exists.
// This will not override existing environment variables.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		slog.Warn("Could not load .env file, continuing with system environment variables only", "path", path, "error", err)
	} else {
		slog.Info("Successfully loaded .env file", "path", path)
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty is getEnvWithDefault for values where "" is meaningful
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration with a default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		slog.Warn("Invalid duration value, using default", "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}
