package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders an amount the way pt-BR displays reais, e.g. "R$ 1.234,50"
func FormatBRL(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	return sign + "R$ " + groupThousands(whole) + "," + cents
}

// FormatQuantity renders a stock quantity in pt-BR, dropping a zero fraction
func FormatQuantity(quantity float64) string {
	d := decimal.NewFromFloat(quantity)
	whole, frac, _ := strings.Cut(d.Abs().String(), ".")

	out := groupThousands(whole)
	if frac != "" {
		out += "," + frac
	}
	if d.IsNegative() {
		out = "-" + out
	}
	return out
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
