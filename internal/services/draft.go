package services

import (
	"strings"

	"aton-catalog-admin/internal/models"
	"aton-catalog-admin/internal/normalize"
)

// DraftFromForm builds an outgoing draft from form input. Text is trimmed
// and numeric fields that do not parse are left out.
func DraftFromForm(form models.ProductForm) models.Draft {
	draft := models.Draft{
		models.DraftFieldName:  strings.TrimSpace(form.Name),
		models.DraftFieldSKU:   strings.TrimSpace(form.SKU),
		models.DraftFieldEAN:   strings.TrimSpace(form.EAN),
		models.DraftFieldNotes: strings.TrimSpace(form.Notes),
	}

	if n, ok := normalize.Number(form.Price); ok {
		draft[models.DraftFieldPrice] = n
	}
	if n, ok := normalize.Number(form.Stock); ok {
		draft[models.DraftFieldStock] = n
	}

	return StripEmpty(draft)
}

// FormFromProduct fills the form with the values of a canonical product
func FormFromProduct(p models.Product) models.ProductForm {
	form := models.ProductForm{
		Name:  p.NameString(),
		SKU:   p.SKUString(),
		EAN:   p.EANString(),
		Notes: p.NotesString(),
	}
	if p.Price != nil {
		form.Price = normalize.String(*p.Price)
	}
	if p.Stock != nil {
		form.Stock = normalize.String(*p.Stock)
	}
	return form
}

// StripEmpty returns a copy of the draft without null or empty-string values
func StripEmpty(draft models.Draft) models.Draft {
	stripped := make(models.Draft, len(draft))
	for key, value := range draft {
		if value == nil {
			continue
		}
		if s, ok := value.(string); ok && s == "" {
			continue
		}
		stripped[key] = value
	}
	return stripped
}

// ValidateDraft checks the only required field, the product name
func ValidateDraft(draft models.Draft) error {
	name, _ := draft[models.DraftFieldName].(string)
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return nil
}

func prepareDraft(draft models.Draft) (models.Draft, error) {
	body := StripEmpty(draft)
	if err := ValidateDraft(body); err != nil {
		return nil, err
	}
	return body, nil
}
