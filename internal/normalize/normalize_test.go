package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestList_BareArrayIsReturnedUnchanged(t *testing.T) {
	payload := []any{map[string]any{"id": "1"}, "odd", nil}

	result := List(payload)

	require.Len(t, result, 3)
	assert.Equal(t, payload, result)
	// same backing array
	assert.Same(t, &payload[0], &result[0])
}

func TestList_Wrappers(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected int
	}{
		{"data wrapper", `{"data":[{"id":1},{"id":2}]}`, 2},
		{"items wrapper", `{"items":[{"id":1}]}`, 1},
		{"result wrapper", `{"result":[{"id":1},{"id":2},{"id":3}]}`, 3},
		{"data wins over items", `{"items":[{"id":1}],"data":[{"id":1},{"id":2}]}`, 2},
		{"non-array data falls through to items", `{"data":{"id":1},"items":[{"id":2}]}`, 1},
		{"unknown wrapper", `{"produtos":[{"id":1}]}`, 0},
		{"scalar payload", `42`, 0},
		{"string payload", `"not json list"`, 0},
		{"null payload", `null`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := List(decode(t, tt.body))
			assert.NotNil(t, result)
			assert.Len(t, result, tt.expected)
		})
	}
}

func TestList_WrappedSequenceIsExactlyTheInnerSlice(t *testing.T) {
	inner := []any{map[string]any{"id": "a"}}
	result := List(map[string]any{"items": inner})
	assert.Equal(t, inner, result)
}

func TestProduct_AliasPriority(t *testing.T) {
	p := Product(decode(t, `{"ID": 7, "codigo": 9}`))
	require.NotNil(t, p.ID)
	assert.Equal(t, "7", *p.ID)

	p = Product(decode(t, `{"id": "a", "ID": "b", "codigo": "c"}`))
	assert.Equal(t, "a", *p.ID)

	p = Product(decode(t, `{"id": null, "codigo": "c"}`))
	assert.Equal(t, "c", *p.ID)

	p = Product(decode(t, `{"name": "Second", "descricao": "Third"}`))
	assert.Equal(t, "Second", *p.Name)

	p = Product(decode(t, `{"referencia": "REF-1", "codigoBarras": "789", "saldo": 3, "valor": "2.5", "observacao": "frágil"}`))
	assert.Equal(t, "REF-1", *p.SKU)
	assert.Equal(t, "789", *p.EAN)
	assert.Equal(t, 3.0, *p.Stock)
	assert.Equal(t, 2.5, *p.Price)
	assert.Equal(t, "frágil", *p.Notes)
}

func TestProduct_EmptyStringIsPresent(t *testing.T) {
	p := Product(decode(t, `{"nome": "", "name": "Fallback"}`))
	require.NotNil(t, p.Name)
	assert.Equal(t, "", *p.Name)
}

func TestProduct_MissingFieldsAreAbsent(t *testing.T) {
	p := Product(decode(t, `{"id": 1, "preco": "abc", "estoque": ""}`))

	assert.Equal(t, "1", *p.ID)
	assert.Nil(t, p.Name)
	assert.Nil(t, p.SKU)
	assert.Nil(t, p.EAN)
	assert.Nil(t, p.Price)
	assert.Nil(t, p.Stock)
	assert.Nil(t, p.Notes)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(data))
}

func TestProduct_NonObjectIsEmpty(t *testing.T) {
	assert.Equal(t, Product("text"), Product(nil))
	assert.Nil(t, Product([]any{1}).ID)
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
		ok    bool
	}{
		{"empty string", "", 0, false},
		{"nil", nil, 0, false},
		{"text", "abc", 0, false},
		{"whitespace", "   ", 0, false},
		{"decimal string", "12.5", 12.5, true},
		{"padded string", " 7 ", 7, true},
		{"json number", json.Number("19.90"), 19.9, true},
		{"float", 3.0, 3, true},
		{"zero", "0", 0, true},
		{"negative", "-4", -4, true},
		{"nan text", "NaN", 0, false},
		{"infinity text", "Inf", 0, false},
		{"bool", true, 0, false},
		{"object", map[string]any{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Number(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "1", String(json.Number("1")))
	assert.Equal(t, "1", String(1.0))
	assert.Equal(t, "1.5", String(1.5))
	assert.Equal(t, "true", String(true))
	assert.Equal(t, "abc", String("abc"))
	assert.Equal(t, `{"a":1}`, String(map[string]any{"a": 1}))
}

func TestProducts_Scenario(t *testing.T) {
	payload := decode(t, `{"items":[{"id":1,"nome":"Caneca","preco":"19.90"}]}`)

	products := Products(payload)

	require.Len(t, products, 1)
	data, err := json.Marshal(products[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","name":"Caneca","price":19.9}`, string(data))
}

func TestText_DoesNotEscapeHTML(t *testing.T) {
	text := Text(map[string]any{"nome": "Tom & Jerry <shoe>"})
	assert.Equal(t, `{"nome":"Tom & Jerry <shoe>"}`, text)
}
