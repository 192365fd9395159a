package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"aton-catalog-admin/internal/client"
	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/services"
	"aton-catalog-admin/internal/settings"
	"aton-catalog-admin/internal/utils"
	"aton-catalog-admin/web"

	"github.com/go-chi/chi/v5"
)

// Status chip texts
const (
	statusOK          = "OK"
	statusLocalFilter = "Filtro local (API sem busca)"
	statusConfigure   = "Configure a conexão (⚙️)"
	statusError       = "Erro"
)

// UIHandler serves the server-rendered admin pages
type UIHandler struct {
	sessions  *SessionStore
	settings  *settings.Manager
	templates *template.Template
}

type productRow struct {
	ID    string
	Path  string
	Name  string
	SKU   string
	EAN   string
	Price string
	Stock string
}

type listPage struct {
	Title      string
	Query      string
	Rows       []productRow
	Count      int
	Status     string
	StatusKind string
	Error      string
}

type formPage struct {
	Title  string
	Action string
	ID     string
	Path   string
	Form   models.ProductForm
	Error  string
}

type settingsPage struct {
	Title    string
	Settings settings.Settings
	Error    string
}

// NewUIHandler parses the embedded templates and creates the UI handler
func NewUIHandler(sessions *SessionStore, manager *settings.Manager) (*UIHandler, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &UIHandler{
		sessions:  sessions,
		settings:  manager,
		templates: tmpl,
	}, nil
}

// Routes mounts the UI pages on a chi router
func (h *UIHandler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/products/new", h.NewProduct)
	r.Post("/products", h.CreateProduct)
	r.Get("/products/{id}/edit", h.EditProduct)
	r.Post("/products/{id}", h.UpdateProduct)
	r.Post("/products/{id}/delete", h.DeleteProduct)
	r.Get("/settings", h.Settings)
	r.Post("/settings", h.SaveSettings)
}

// Index handles GET / - product table with optional ?q= search
func (h *UIHandler) Index(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)
	query := r.URL.Query()

	page := listPage{
		Title:      "Produtos",
		Query:      query.Get("q"),
		Status:     statusOK,
		StatusKind: "ok",
	}

	listing, err := svc.Search(r.Context(), page.Query)
	if err != nil {
		// keep showing what the session already has
		listing = models.Listing{Items: svc.Cached()}
		listing.Count = len(listing.Items)
		page.StatusKind = "err"
		page.Status = statusError
		page.Error = userMessage(err)
		if listing.Count == 0 {
			page.Status = statusConfigure
		}
	} else if listing.LocalFilter {
		page.Status = statusLocalFilter
	}

	if flash := query.Get("status"); flash != "" && err == nil && !listing.LocalFilter {
		page.Status = flash
	}
	if flash := query.Get("error"); flash != "" {
		page.Error = flash
		page.StatusKind = "err"
	}

	page.Rows = make([]productRow, 0, len(listing.Items))
	for _, p := range listing.Items {
		page.Rows = append(page.Rows, newProductRow(p))
	}
	page.Count = len(page.Rows)

	h.render(w, http.StatusOK, "list.html", page)
}

// NewProduct handles GET /products/new
func (h *UIHandler) NewProduct(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "form.html", formPage{Title: "Novo produto", Action: "/products"})
}

// CreateProduct handles POST /products
func (h *UIHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)
	form := readProductForm(r)

	if _, err := svc.Create(r.Context(), services.DraftFromForm(form)); err != nil {
		h.render(w, statusFor(err), "form.html", formPage{
			Title:  "Novo produto",
			Action: "/products",
			Form:   form,
			Error:  userMessage(err),
		})
		return
	}

	redirectWithStatus(w, r, "status", "Produto criado")
}

// EditProduct handles GET /products/{id}/edit
func (h *UIHandler) EditProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)
	id := productID(r)

	product, err := svc.Get(r.Context(), id)
	if err != nil {
		redirectWithStatus(w, r, "error", userMessage(err))
		return
	}

	h.render(w, http.StatusOK, "form.html", formPage{
		Title:  "Editar produto #" + id,
		Action: "/products/" + url.PathEscape(id),
		ID:     id,
		Path:   url.PathEscape(id),
		Form:   services.FormFromProduct(product),
	})
}

// UpdateProduct handles POST /products/{id}
func (h *UIHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)
	id := productID(r)
	form := readProductForm(r)

	if _, err := svc.Update(r.Context(), id, services.DraftFromForm(form)); err != nil {
		h.render(w, statusFor(err), "form.html", formPage{
			Title:  "Editar produto #" + id,
			Action: "/products/" + url.PathEscape(id),
			ID:     id,
			Path:   url.PathEscape(id),
			Form:   form,
			Error:  userMessage(err),
		})
		return
	}

	redirectWithStatus(w, r, "status", "Produto salvo")
}

// DeleteProduct handles POST /products/{id}/delete
func (h *UIHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	svc := h.sessions.Service(w, r)
	id := productID(r)

	if _, err := svc.Delete(r.Context(), id); err != nil {
		redirectWithStatus(w, r, "error", userMessage(err))
		return
	}

	redirectWithStatus(w, r, "status", fmt.Sprintf("Produto #%s excluído", id))
}

// Settings handles GET /settings
func (h *UIHandler) Settings(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "settings.html", settingsPage{
		Title:    "Configurações",
		Settings: h.settings.Current(),
	})
}

// SaveSettings handles POST /settings - saves and goes back to the list, which reloads it
func (h *UIHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "bad_request", "Invalid form", nil)
		return
	}

	values := h.settings.Current().ToMap()
	for key := range values {
		if _, sent := r.PostForm[key]; sent {
			values[key] = r.PostForm.Get(key)
		}
	}

	submitted := settings.FromMap(values)
	if _, err := h.settings.Update(r.Context(), submitted); err != nil {
		slog.Error("Failed to save settings", "error", err)
		h.render(w, http.StatusInternalServerError, "settings.html", settingsPage{
			Title:    "Configurações",
			Settings: submitted,
			Error:    "Não foi possível salvar as configurações.",
		})
		return
	}

	redirectWithStatus(w, r, "status", "Configurações salvas")
}

func (h *UIHandler) render(w http.ResponseWriter, statusCode int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("Template error", "template", name, "error", err)
	}
}

func readProductForm(r *http.Request) models.ProductForm {
	return models.ProductForm{
		Name:  r.PostFormValue("name"),
		SKU:   r.PostFormValue("sku"),
		EAN:   r.PostFormValue("ean"),
		Price: r.PostFormValue("price"),
		Stock: r.PostFormValue("stock"),
		Notes: r.PostFormValue("notes"),
	}
}

func newProductRow(p models.Product) productRow {
	row := productRow{
		ID:    p.IDString(),
		Path:  url.PathEscape(p.IDString()),
		Name:  p.NameString(),
		SKU:   p.SKUString(),
		EAN:   p.EANString(),
		Price: "-",
		Stock: "-",
	}
	if p.Price != nil {
		row.Price = utils.FormatBRL(*p.Price)
	}
	if p.Stock != nil {
		row.Stock = utils.FormatQuantity(*p.Stock)
	}
	return row
}

func redirectWithStatus(w http.ResponseWriter, r *http.Request, key, message string) {
	http.Redirect(w, r, "/?"+url.Values{key: []string{message}}.Encode(), http.StatusSeeOther)
}

// userMessage is the text shown to the operator for a catalog error
func userMessage(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, services.ErrNameRequired):
		return "Nome é obrigatório."
	case errors.Is(err, services.ErrIDRequired):
		return "Produto sem identificador."
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return err.Error()
	}
}

func statusFor(err error) int {
	if errors.Is(err, services.ErrNameRequired) || errors.Is(err, services.ErrIDRequired) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
