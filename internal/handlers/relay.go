package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/textproto"
	"strings"

	"aton-catalog-admin/internal/config"
	"aton-catalog-admin/internal/middleware"
	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/telemetry"
)

// RelayPrefix is stripped from incoming paths before forwarding
const RelayPrefix = "/api"

// hopHeaders are connection-scoped and never forwarded
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// RelayUpstream is where the relay forwards to and the credential it injects
type RelayUpstream struct {
	BaseURL     string
	TokenHeader string
	TokenPrefix string
	Token       string
}

// UpstreamFromConfig builds the relay upstream from the process configuration
func UpstreamFromConfig(cfg *config.RelayConfig) RelayUpstream {
	return RelayUpstream{
		BaseURL:     cfg.UpstreamBaseURL,
		TokenHeader: cfg.TokenHeader,
		TokenPrefix: cfg.TokenPrefix,
		Token:       cfg.Token,
	}
}

// RelayHandler forwards /api/* to the upstream API with the credential attached
type RelayHandler struct {
	upstream   RelayUpstream
	httpClient *http.Client
	telemetry  *telemetry.RelayTelemetry
}

// NewRelayHandler creates a relay handler. Redirects from the upstream are
// handed back to the caller instead of being followed. tel may be nil.
func NewRelayHandler(upstream RelayUpstream, httpClient *http.Client, tel *telemetry.RelayTelemetry) *RelayHandler {
	c := &http.Client{}
	if httpClient != nil {
		copied := *httpClient
		c = &copied
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	if upstream.TokenHeader == "" {
		upstream.TokenHeader = "Authorization"
	}

	return &RelayHandler{
		upstream:   upstream,
		httpClient: c,
		telemetry:  tel,
	}
}

// ServeHTTP handles ANY /api/* - forwards the request and streams the response back
func (h *RelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := h.targetURL(r)

	var body io.Reader
	if carriesBody(r.Method) {
		body = r.Body
	}

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		h.fail(w, r, target, err)
		return
	}
	if body != nil {
		outReq.ContentLength = r.ContentLength
	}
	outReq.Header = forwardHeaders(r.Header)
	if outReq.Header.Get("Content-Type") == "" {
		outReq.Header.Set("Content-Type", "application/json")
	}
	outReq.Header.Set(h.upstream.TokenHeader, h.upstream.TokenPrefix+h.upstream.Token)

	resp, err := h.httpClient.Do(outReq)
	if err != nil {
		h.fail(w, r, target, err)
		return
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	if location := resp.Header.Get("Location"); location != "" {
		w.Header().Set("Location", location)
	}
	w.WriteHeader(resp.StatusCode)

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		slog.Warn("Relay response copy interrupted",
			"method", r.Method,
			"target", target,
			"bytes", written,
			"error", err)
		return
	}

	slog.Debug("Request relayed",
		"method", r.Method,
		"target", target,
		"status", resp.StatusCode,
		"bytes", written,
		"remote_addr", r.RemoteAddr)
}

// targetURL maps /api<rest>?<query> onto the upstream base URL
func (h *RelayHandler) targetURL(r *http.Request) string {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), RelayPrefix)
	if r.URL.RawQuery != "" || r.URL.ForceQuery {
		rest += "?" + r.URL.RawQuery
	}
	return strings.TrimRight(h.upstream.BaseURL, "/") + rest
}

func (h *RelayHandler) fail(w http.ResponseWriter, r *http.Request, target string, err error) {
	slog.Error("Relay request failed",
		"method", r.Method,
		"target", target,
		"remote_addr", r.RemoteAddr,
		"error", err)

	if h.telemetry != nil {
		h.telemetry.RegisterUpstreamFailure(r.Context(), r.Method, telemetry.GetEndpointFromPath(r.URL.Path))
	}

	writeJSONResponse(w, http.StatusInternalServerError, models.RelayErrorResponse{
		Message: "relay error",
		Error:   err.Error(),
	})
}

// forwardHeaders copies caller headers minus hop-by-hop ones, Host,
// Content-Length, Accept-Encoding and the relay access key.
func forwardHeaders(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}

	for _, field := range in.Values("Connection") {
		for _, name := range strings.Split(field, ",") {
			if name = textproto.TrimString(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		out.Del(name)
	}
	out.Del("Host")
	out.Del("Content-Length")
	// the transport negotiates its own compression and decodes it
	out.Del("Accept-Encoding")
	out.Del(middleware.AccessKeyHeader)

	return out
}

func carriesBody(method string) bool {
	return method != http.MethodGet && method != http.MethodHead
}
