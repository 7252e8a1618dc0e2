// Package money holds the fixed-precision arithmetic used for every monetary
// field on an order. Values are shopspring decimals; float64 never appears in
// a calculation.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits money is rounded to.
const Places = 2

// ErrInvalidAmount is returned when a string cannot be parsed as money.
var ErrInvalidAmount = errors.New("invalid monetary amount")

var hundred = decimal.NewFromInt(100)

// Parse converts a decimal string such as "12.50" into a Decimal.
// An empty string parses as zero.
func Parse(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Round rounds half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// LineTotal is unit_price * qty - discount + surcharge.
func LineTotal(unitPrice decimal.Decimal, qty int32, discount, surcharge decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt32(qty)).Sub(discount).Add(surcharge)
}

// EffectiveUnitPrice spreads a line total back over its quantity. A zero
// quantity falls back to the raw unit price.
func EffectiveUnitPrice(lineTotal, unitPrice decimal.Decimal, qty int32) decimal.Decimal {
	if qty == 0 {
		return unitPrice
	}
	return Round(lineTotal.Div(decimal.NewFromInt32(qty)))
}

// OriginalTotal reverses the order level adjustments applied to total.
func OriginalTotal(total, discount, surcharge decimal.Decimal) decimal.Decimal {
	return total.Add(discount).Sub(surcharge)
}

// OrderTotal is subtotal - discount + surcharge + tax.
func OrderTotal(subtotal, discount, surcharge, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(surcharge).Add(tax)
}

// Remaining is max(0, total - paid).
func Remaining(total, paid decimal.Decimal) decimal.Decimal {
	r := total.Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// Percent returns pct percent of base, rounded to two places.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}
