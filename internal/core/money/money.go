// Package money converts extracted amount text into integer minor units
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in minor currency units
type Cents int64

var hundred = decimal.NewFromInt(100)

// Parse accepts German ("1.234,56"), plain ("1234.56") and symbol decorated ("1.234,56 €") amounts
func Parse(s string) (Cents, error) {
	raw := strings.TrimSpace(s)
	raw = strings.NewReplacer("€", "", "EUR", "", " ", "", " ", "").Replace(raw)
	if raw == "" {
		return 0, fmt.Errorf("amount %q: empty", s)
	}

	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")
	switch {
	case lastComma > lastDot:
		// comma is the decimal separator, dots group thousands
		raw = strings.ReplaceAll(raw, ".", "")
		raw = strings.Replace(raw, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		raw = strings.ReplaceAll(raw, ",", "")
	case lastDot >= 0 && strings.Count(raw, ".") > 1:
		// only grouping dots eg 1.234.567
		raw = strings.ReplaceAll(raw, ".", "")
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q: more than two decimals", s)
	}
	return Cents(minor.IntPart()), nil
}

// Format renders c in German notation, eg 123456 -> "1.234,56"
func (c Cents) Format() string {
	d := decimal.New(int64(c), -2)
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

// Decimal returns c in major units
func (c Cents) Decimal() decimal.Decimal { return decimal.New(int64(c), -2) }

// FromFloat rounds a major unit float as returned by remote APIs to the nearest cent
func FromFloat(f float64) Cents {
	return Cents(decimal.NewFromFloat(f).Mul(hundred).Round(0).IntPart())
}
