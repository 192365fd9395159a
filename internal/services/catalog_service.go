package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"aton-catalog-admin/internal/client"
	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/normalize"
	"aton-catalog-admin/internal/settings"
)

var (
	// ErrNameRequired is returned by Create and Update before any network call
	ErrNameRequired = errors.New("product name is required")
	// ErrIDRequired is returned when a by-id operation gets an empty id
	ErrIDRequired = errors.New("product id is required")
)

// Transport performs a request against the ATON API and returns the parsed body
type Transport interface {
	Do(ctx context.Context, method, path string, body any) (any, error)
}

// CatalogService handles product CRUD against the ATON API and owns the
// working copy of the last successfully listed products for one session.
type CatalogService struct {
	transport Transport
	settings  settings.Provider

	mu      sync.RWMutex
	working []any
}

// NewCatalogService creates a new catalog service instance
func NewCatalogService(transport Transport, provider settings.Provider) *CatalogService {
	return &CatalogService{
		transport: transport,
		settings:  provider,
	}
}

// List fetches the products endpoint and replaces the working copy
func (s *CatalogService) List(ctx context.Context) (models.Listing, error) {
	cfg := s.settings.Current()

	payload, err := s.transport.Do(ctx, http.MethodGet, cfg.ProductsEndpoint, nil)
	if err != nil {
		slog.Error("Failed to list products", "endpoint", cfg.ProductsEndpoint, "error", err)
		return models.Listing{}, fmt.Errorf("list products: %w", err)
	}

	items := normalize.List(payload)
	s.replaceWorking(items)

	slog.Info("Products listed", "count", len(items))
	return newListing(items, false), nil
}

// Search asks the upstream to filter by query. An empty query is a List.
// When the upstream call fails the working copy is filtered locally instead
// and the result is flagged with LocalFilter; the working copy is kept.
func (s *CatalogService) Search(ctx context.Context, query string) (models.Listing, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return s.List(ctx)
	}

	cfg := s.settings.Current()
	path := SearchPath(cfg, q)

	payload, err := s.transport.Do(ctx, http.MethodGet, path, nil)
	if err == nil {
		items := normalize.List(payload)
		s.replaceWorking(items)
		slog.Info("Products searched upstream", "query", q, "count", len(items))
		return newListing(items, false), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.Listing{}, fmt.Errorf("search products: %w", ctxErr)
	}

	filtered := s.filterWorking(q)
	slog.Warn("Upstream search failed, filtering working copy locally",
		"query", q,
		"matches", len(filtered),
		"error", err)

	return newListing(filtered, true), nil
}

// Get fetches a single product by id
func (s *CatalogService) Get(ctx context.Context, id string) (models.Product, error) {
	if id == "" {
		return models.Product{}, ErrIDRequired
	}

	cfg := s.settings.Current()
	payload, err := s.transport.Do(ctx, http.MethodGet, client.ProductByIDPath(cfg, id), nil)
	if err != nil {
		return models.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}

	product := normalize.Product(payload)
	if product.ID == nil {
		requested := id
		product.ID = &requested
	}
	return product, nil
}

// Create posts a new product
func (s *CatalogService) Create(ctx context.Context, draft models.Draft) (any, error) {
	body, err := prepareDraft(draft)
	if err != nil {
		return nil, err
	}

	cfg := s.settings.Current()
	resp, err := s.transport.Do(ctx, http.MethodPost, cfg.ProductsEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	slog.Info("Product created", "name", body[models.DraftFieldName])
	return resp, nil
}

// Update replaces a product by id
func (s *CatalogService) Update(ctx context.Context, id string, draft models.Draft) (any, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	body, err := prepareDraft(draft)
	if err != nil {
		return nil, err
	}

	cfg := s.settings.Current()
	resp, err := s.transport.Do(ctx, http.MethodPut, client.ProductByIDPath(cfg, id), body)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}

	slog.Info("Product updated", "product_id", id)
	return resp, nil
}

// Delete removes a product by id
func (s *CatalogService) Delete(ctx context.Context, id string) (any, error) {
	if id == "" {
		return nil, ErrIDRequired
	}

	cfg := s.settings.Current()
	resp, err := s.transport.Do(ctx, http.MethodDelete, client.ProductByIDPath(cfg, id), nil)
	if err != nil {
		return nil, fmt.Errorf("delete product %s: %w", id, err)
	}

	slog.Info("Product deleted", "product_id", id)
	return resp, nil
}

// Cached returns the canonical view of the working copy
func (s *CatalogService) Cached() []models.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.working))
	for _, item := range s.working {
		products = append(products, normalize.Product(item))
	}
	return products
}

// Raw returns the raw working-copy record whose canonical id is id
func (s *CatalogService) Raw(id string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.working {
		if normalize.Product(item).IDString() == id {
			return item, true
		}
	}
	return nil, false
}

// Discard drops the working copy
func (s *CatalogService) Discard() {
	s.replaceWorking(nil)
}

func (s *CatalogService) replaceWorking(items []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = items
}

func (s *CatalogService) filterWorking(q string) []any {
	needle := strings.ToLower(q)

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]any, 0)
	for _, item := range s.working {
		if strings.Contains(strings.ToLower(normalize.Text(item)), needle) {
			matches = append(matches, item)
		}
	}
	return matches
}

// SearchPath appends the search parameter to the products endpoint
func SearchPath(cfg settings.Settings, q string) string {
	sep := "?"
	if strings.Contains(cfg.ProductsEndpoint, "?") {
		sep = "&"
	}
	return cfg.ProductsEndpoint + sep + url.Values{cfg.SearchParam: []string{q}}.Encode()
}

func newListing(items []any, local bool) models.Listing {
	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		products = append(products, normalize.Product(item))
	}
	return models.Listing{
		Items:       products,
		Count:       len(products),
		LocalFilter: local,
	}
}
