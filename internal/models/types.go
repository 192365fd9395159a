package models

// ErrorResponse represents the standard error response format
type ErrorResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// RelayErrorResponse is the fixed body returned when the upstream cannot be reached
type RelayErrorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Product is the canonical view of an upstream product record.
// Every field is optional; a nil field was absent from the upstream payload.
type Product struct {
	ID    *string  `json:"id,omitempty"`
	Name  *string  `json:"name,omitempty"`
	SKU   *string  `json:"sku,omitempty"`
	EAN   *string  `json:"ean,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Stock *float64 `json:"stock,omitempty"`
	Notes *string  `json:"notes,omitempty"`
}

// IDString returns the identifier or "" when absent
func (p Product) IDString() string {
	return deref(p.ID)
}

// NameString returns the name or "" when absent
func (p Product) NameString() string {
	return deref(p.Name)
}

// SKUString returns the SKU or "" when absent
func (p Product) SKUString() string {
	return deref(p.SKU)
}

// EANString returns the EAN or "" when absent
func (p Product) EANString() string {
	return deref(p.EAN)
}

// NotesString returns the notes or "" when absent
func (p Product) NotesString() string {
	return deref(p.Notes)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Listing is the result of a list or search operation
type Listing struct {
	Items []Product `json:"items"`
	Count int       `json:"count"`
	// LocalFilter is set when the upstream search failed and the items
	// were filtered from the session working copy instead.
	LocalFilter bool `json:"localFilter"`
}

// Draft is the outgoing create/update body keyed by upstream field names
type Draft map[string]any

// Upstream field names used in outgoing drafts
const (
	DraftFieldName  = "nome"
	DraftFieldSKU   = "sku"
	DraftFieldEAN   = "ean"
	DraftFieldPrice = "preco"
	DraftFieldStock = "estoque"
	DraftFieldNotes = "obs"
)

// ProductForm carries the raw text typed into the product form
type ProductForm struct {
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	EAN   string `json:"ean"`
	Price string `json:"price"`
	Stock string `json:"stock"`
	Notes string `json:"notes"`
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service,omitempty"`
	Version string `json:"version,omitempty"`
}
