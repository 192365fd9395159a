package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"aton-catalog-admin/internal/client"
	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/services"
	"aton-catalog-admin/internal/settings"
	"aton-catalog-admin/internal/utils"

	"github.com/go-chi/chi/v5"
)

// AdminAPIHandler exposes the catalog operations as JSON under /admin
type AdminAPIHandler struct {
	sessions *SessionStore
	settings *settings.Manager
}

// NewAdminAPIHandler creates a new admin API handler
func NewAdminAPIHandler(sessions *SessionStore, manager *settings.Manager) *AdminAPIHandler {
	return &AdminAPIHandler{
		sessions: sessions,
		settings: manager,
	}
}

// Routes mounts the admin API on a chi router
func (h *AdminAPIHandler) Routes(r chi.Router) {
	r.Get("/products", h.ListProducts)
	r.Post("/products", h.CreateProduct)
	r.Get("/products/{id}", h.GetProduct)
	r.Put("/products/{id}", h.UpdateProduct)
	r.Delete("/products/{id}", h.DeleteProduct)
	r.Get("/products/{id}/raw", h.RawProduct)
	r.Get("/settings", h.GetSettings)
	r.Put("/settings", h.UpdateSettings)
}

// ListProducts handles GET /admin/products[?q=] - list or search
func (h *AdminAPIHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)

	listing, err := svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, listing)
}

// GetProduct handles GET /admin/products/{id}
func (h *AdminAPIHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)

	product, err := svc.Get(r.Context(), productID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, product)
}

// RawProduct handles GET /admin/products/{id}/raw - the working-copy record as
// received from the upstream, indented for copying
func (h *AdminAPIHandler) RawProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)
	id := productID(r)

	raw, ok := svc.Raw(id)
	if !ok {
		writeErrorResponse(w, http.StatusNotFound, "not_found",
			fmt.Sprintf("Product %s is not in the current listing", id), nil)
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to encode product", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// CreateProduct handles POST /admin/products - body is a draft keyed by upstream field names
func (h *AdminAPIHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	svc := h.sessions.Service(w, r)
	result, err := svc.Create(r.Context(), draft)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUpstreamResult(w, http.StatusCreated, result)
}

// UpdateProduct handles PUT /admin/products/{id}
func (h *AdminAPIHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	draft, ok := decodeDraft(w, r)
	if !ok {
		return
	}

	svc := h.sessions.Service(w, r)
	result, err := svc.Update(r.Context(), productID(r), draft)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUpstreamResult(w, http.StatusOK, result)
}

// DeleteProduct handles DELETE /admin/products/{id}
func (h *AdminAPIHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)

	result, err := svc.Delete(r.Context(), productID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeUpstreamResult(w, http.StatusOK, result)
}

// GetSettings handles GET /admin/settings - the token is masked
func (h *AdminAPIHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	current := h.settings.Current()
	current.Token = utils.MaskSecret(current.Token)
	writeJSONResponse(w, http.StatusOK, current)
}

// UpdateSettings handles PUT /admin/settings. Keys missing from the body keep
// their current value.
func (h *AdminAPIHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var changes map[string]string
	if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
		slog.Warn("Invalid JSON in settings request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return
	}

	if mode, ok := changes[settings.KeyMode]; ok {
		if _, valid := settings.ParseMode(mode); !valid {
			writeErrorResponse(w, http.StatusBadRequest, "validation_error", "Invalid settings",
				[]models.ErrorDetail{{Field: settings.KeyMode, Issue: "must be relay or direct"}})
			return
		}
	}

	current := h.settings.Current()
	merged := current.ToMap()
	for key, value := range changes {
		merged[key] = value
	}
	// a token echoed back from GET is the masked form, not a new value
	if token, ok := changes[settings.KeyToken]; ok && current.Token != "" && token == utils.MaskSecret(current.Token) {
		merged[settings.KeyToken] = current.Token
	}

	updated, err := h.settings.Update(r.Context(), settings.FromMap(merged))
	if err != nil {
		slog.Error("Failed to save settings", "error", err)
		writeErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to save settings", nil)
		return
	}

	updated.Token = utils.MaskSecret(updated.Token)
	writeJSONResponse(w, http.StatusOK, updated)
}

// productID returns the {id} route parameter decoded. chi matches on the raw
// path when one is set, which leaves escapes such as %2F in the parameter.
func productID(r *http.Request) string {
	id := chi.URLParam(r, "id")
	if r.URL.RawPath == "" {
		return id
	}
	if unescaped, err := url.PathUnescape(id); err == nil {
		return unescaped
	}
	return id
}

func decodeDraft(w http.ResponseWriter, r *http.Request) (models.Draft, bool) {
	var draft models.Draft
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&draft); err != nil {
		slog.Warn("Invalid JSON in product request", "error", err, "remote_addr", r.RemoteAddr)
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid JSON", nil)
		return nil, false
	}
	return draft, true
}

// writeUpstreamResult echoes the upstream response body, or 204 when it had none
func writeUpstreamResult(w http.ResponseWriter, statusCode int, result any) {
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSONResponse(w, statusCode, result)
}

// writeServiceError maps catalog errors onto the admin API error envelope
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *client.APIError

	switch {
	case errors.Is(err, services.ErrNameRequired):
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", "Invalid product",
			[]models.ErrorDetail{{Field: models.DraftFieldName, Issue: err.Error()}})
	case errors.Is(err, services.ErrIDRequired):
		writeErrorResponse(w, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.As(err, &apiErr):
		slog.Warn("Upstream rejected request",
			"method", r.Method,
			"path", r.URL.Path,
			"upstream_status", apiErr.StatusCode,
			"error", err)
		writeErrorResponse(w, http.StatusBadGateway, "upstream_error", apiErr.Error(), nil)
	default:
		slog.Error("Upstream request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err)
		writeErrorResponse(w, http.StatusBadGateway, "upstream_unreachable", err.Error(), nil)
	}
}
