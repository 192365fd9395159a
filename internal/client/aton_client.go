package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"aton-catalog-admin/internal/settings"
)

// relayAPIPrefix is the path prefix the relay forwards to the upstream API
const relayAPIPrefix = "/api"

// APIError is returned for any non-2xx upstream response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "API error"
	}
	return fmt.Sprintf("HTTP %d • %s", e.StatusCode, msg)
}

// AtonClient talks to the ATON API, either directly or through the relay,
// using whatever connection settings are current at call time.
type AtonClient struct {
	settings   settings.Provider
	httpClient *http.Client
}

// NewAtonClient creates a new ATON client.
// No timeout is set on the default HTTP client; callers bound requests with ctx.
func NewAtonClient(provider settings.Provider, httpClient *http.Client) *AtonClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &AtonClient{
		settings:   provider,
		httpClient: httpClient,
	}
}

// BuildURL resolves a path against the relay or the direct base URL
func BuildURL(s settings.Settings, path string) string {
	if s.Mode == settings.ModeDirect {
		return strings.TrimRight(s.BaseURL, "/") + path
	}
	return strings.TrimRight(s.RelayURL, "/") + relayAPIPrefix + path
}

// ProductByIDPath fills the by-id endpoint template with the escaped id
func ProductByIDPath(s settings.Settings, id string) string {
	return strings.ReplaceAll(s.ProductByIDEndpoint, settings.IDPlaceholder, url.PathEscape(id))
}

// Do performs a request and returns the parsed response body: decoded JSON
// when the body parses, the raw text otherwise, nil when empty.
func (c *AtonClient) Do(ctx context.Context, method, path string, body any) (any, error) {
	cfg := c.settings.Current()
	target := BuildURL(cfg, path)

	var bodyReader io.Reader
	if body != nil && carriesBody(method) {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cfg.Token != "" {
		req.Header.Set(cfg.TokenHeader, cfg.TokenPrefix+cfg.Token)
	}

	slog.Debug("Calling ATON API", "method", method, "url", target, "mode", cfg.Mode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	data := parseBody(raw)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data),
		}
		slog.Debug("ATON API returned an error", "method", method, "url", target, "status", resp.StatusCode, "error", apiErr.Message)
		return nil, apiErr
	}

	return data, nil
}

// carriesBody reports whether a request body is sent for method
func carriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}

// parseBody decodes JSON, keeping numbers as json.Number, and falls back
// to the raw text when the body is not valid JSON.
func parseBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return string(raw)
	}
	// trailing garbage means this was not a single JSON document
	if _, err := dec.Token(); err != io.EOF {
		return string(raw)
	}
	return data
}

// errorMessage extracts a best-effort message from an error body
func errorMessage(data any) string {
	switch v := data.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		if msg := v["message"]; msg != nil && msg != "" {
			if s, ok := msg.(string); ok {
				return s
			}
			return fmt.Sprint(msg)
		}
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(encoded)
}
