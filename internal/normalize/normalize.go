// Package normalize turns loosely shaped upstream payloads into canonical
// product records. Nothing in here returns an error: a payload that does not
// match a known shape yields an empty list or an absent field.
package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"aton-catalog-admin/internal/models"
)

// listWrapperKeys are probed in order when the payload is not a bare array
var listWrapperKeys = []string{"data", "items", "result"}

// Alias tables, highest priority first
var (
	IDAliases    = []string{"id", "ID", "codigo"}
	NameAliases  = []string{"nome", "name", "descricao"}
	SKUAliases   = []string{"sku", "SKU", "referencia"}
	EANAliases   = []string{"ean", "EAN", "codigoBarras"}
	PriceAliases = []string{"preco", "price", "valor"}
	StockAliases = []string{"estoque", "stock", "saldo"}
	NotesAliases = []string{"obs", "observacao", "notes"}
)

// List extracts the record sequence from a list payload.
// A bare array is returned as is.
func List(payload any) []any {
	switch v := payload.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range listWrapperKeys {
			if items, ok := v[key].([]any); ok {
				return items
			}
		}
	}
	return []any{}
}

// Product builds the canonical view of a single raw record
func Product(raw any) models.Product {
	record, ok := raw.(map[string]any)
	if !ok {
		return models.Product{}
	}

	p := models.Product{
		ID:    stringField(record, IDAliases),
		Name:  stringField(record, NameAliases),
		SKU:   stringField(record, SKUAliases),
		EAN:   stringField(record, EANAliases),
		Notes: stringField(record, NotesAliases),
	}

	if v, ok := Lookup(record, PriceAliases); ok {
		if n, ok := Number(v); ok {
			p.Price = &n
		}
	}
	if v, ok := Lookup(record, StockAliases); ok {
		if n, ok := Number(v); ok {
			p.Stock = &n
		}
	}

	return p
}

// Products normalizes a list payload into canonical records
func Products(payload any) []models.Product {
	items := List(payload)
	products := make([]models.Product, 0, len(items))
	for _, item := range items {
		products = append(products, Product(item))
	}
	return products
}

// Lookup returns the first alias present on the record with a non-null value
func Lookup(record map[string]any, aliases []string) (any, bool) {
	for _, alias := range aliases {
		if v, ok := record[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func stringField(record map[string]any, aliases []string) *string {
	v, ok := Lookup(record, aliases)
	if !ok {
		return nil
	}
	s := String(v)
	return &s
}

// String renders a scalar JSON value as text
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// Number coerces a JSON value to a finite number.
// Malformed input reports false instead of failing.
func Number(v any) (float64, bool) {
	var n float64
	switch t := v.(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// Text serializes a raw record for substring matching.
// HTML characters are left unescaped so a search for "&" finds "&".
func Text(raw any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
