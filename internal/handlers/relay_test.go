package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type upstreamCall struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type fakeUpstream struct {
	*httptest.Server
	mu    sync.Mutex
	calls []upstreamCall
}

func (f *fakeUpstream) Calls() []upstreamCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]upstreamCall(nil), f.calls...)
}

// newFakeUpstream records every request and answers with handler
func newFakeUpstream(t *testing.T, handler http.HandlerFunc) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, upstreamCall{
			Method: r.Method,
			Path:   r.URL.EscapedPath(),
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		f.mu.Unlock()
		handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestRelay(baseURL string) *RelayHandler {
	return NewRelayHandler(RelayUpstream{
		BaseURL:     baseURL,
		TokenHeader: "Authorization",
		TokenPrefix: "Bearer ",
		Token:       "secret",
	}, nil, nil)
}

func TestRelay_DeleteForwardsWithCredential(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{"deleted":5}`))
	relay := newTestRelay(up.URL)

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/produtos/5", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"deleted":5}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	calls := up.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodDelete, calls[0].Method)
	assert.Equal(t, "/produtos/5", calls[0].Path)
	assert.Equal(t, "Bearer secret", calls[0].Header.Get("Authorization"))
	assert.Equal(t, "application/json", calls[0].Header.Get("Content-Type"))
}

func TestRelay_StatusAndBodyVerbatim(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "short and stout")
	})
	relay := newTestRelay(up.URL)

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/produtos", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestRelay_MissingContentTypeDefaultsToJSON(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = io.WriteString(w, "[]")
	})
	relay := newTestRelay(up.URL)

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/produtos", nil))

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "[]", rec.Body.String())
}

func TestRelay_QueryAndEscapedPathPreserved(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `[]`))
	relay := newTestRelay(up.URL + "/")

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/produtos/a%2Fb?q=caneca+azul&page=2", nil))

	calls := up.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/produtos/a%2Fb", calls[0].Path)
	assert.Equal(t, "q=caneca+azul&page=2", calls[0].Query)
}

func TestRelay_BodyForwardedUnmodified(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusCreated, `{"id":9}`))
	relay := newTestRelay(up.URL)

	payload := `{"nome":"Caneca","preco":19.9}`
	req := httptest.NewRequest(http.MethodPost, "/api/produtos", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	calls := up.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, payload, calls[0].Body)
	assert.Equal(t, "application/json", calls[0].Header.Get("Content-Type"))
}

func TestRelay_HeaderRules(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{}`))
	relay := newTestRelay(up.URL)

	req := httptest.NewRequest(http.MethodPut, "/api/produtos/1", strings.NewReader(`<x/>`))
	req.Header.Set("Authorization", "Bearer caller-supplied")
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("X-Trace", "abc")
	req.Header.Set("X-API-Key", "relay-key")
	req.Header.Set("Connection", "X-Drop-Me")
	req.Header.Set("X-Drop-Me", "1")
	req.Header.Set("Proxy-Authorization", "Basic xyz")

	relay.ServeHTTP(httptest.NewRecorder(), req)

	calls := up.Calls()
	require.Len(t, calls, 1)
	h := calls[0].Header
	assert.Equal(t, "Bearer secret", h.Get("Authorization"))
	assert.Equal(t, "application/xml", h.Get("Content-Type"))
	assert.Equal(t, "abc", h.Get("X-Trace"))
	assert.Empty(t, h.Get("X-API-Key"))
	assert.Empty(t, h.Get("X-Drop-Me"))
	assert.Empty(t, h.Get("Proxy-Authorization"))
}

func TestRelay_CustomCredentialHeader(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{}`))
	relay := NewRelayHandler(RelayUpstream{BaseURL: up.URL, TokenHeader: "X-Token", Token: "t0k"}, nil, nil)

	relay.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/produtos", nil))

	calls := up.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "t0k", calls[0].Header.Get("X-Token"))
	assert.Empty(t, calls[0].Header.Get("Authorization"))
}

func TestRelay_RedirectIsNotFollowed(t *testing.T) {
	up := newFakeUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/elsewhere" {
			jsonReply(http.StatusOK, `{"followed":true}`)(w, r)
			return
		}
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	relay := newTestRelay(up.URL)

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/produtos", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/elsewhere", rec.Header().Get("Location"))
	assert.Len(t, up.Calls(), 1)
}

func TestRelay_UnreachableUpstream(t *testing.T) {
	up := newFakeUpstream(t, jsonReply(http.StatusOK, `{}`))
	baseURL := up.URL
	up.Close()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tel, err := telemetry.NewRelayTelemetry(provider.Meter(telemetry.MeterName))
	require.NoError(t, err)

	relay := NewRelayHandler(RelayUpstream{BaseURL: baseURL, Token: "secret"}, nil, tel)

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/produtos/5", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body models.RelayErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "relay error", body.Message)
	assert.NotEmpty(t, body.Error)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	found := false
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == "relay_upstream_failures_total" {
				found = true
			}
		}
	}
	assert.True(t, found, "upstream failure is counted")
}

func TestRelay_MissingBaseURLFails(t *testing.T) {
	relay := newTestRelay("")

	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/produtos", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"message":"relay error"`)
}

func TestForwardHeaders_NilInput(t *testing.T) {
	out := forwardHeaders(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler("aton-relay").Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"aton-relay"}`, rec.Body.String())
}
